// Package metrics exports sync run metrics in the Prometheus format.
package metrics

import (
	gosync "sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/klauern/assetsync/internal/sync"
)

const namespace = "assetsync"

// Metrics collects run metrics on a private registry. It implements
// sync.Reporter so it can be attached to a run directly.
type Metrics struct {
	registry *prometheus.Registry

	filesFetched     prometheus.Counter
	bytesTransferred prometheus.Counter
	retries          prometheus.Counter
	failures         *prometheus.CounterVec
	runDuration      prometheus.Gauge
	lastRunSuccess   prometheus.Gauge

	mu       gosync.Mutex
	started  time.Time
	inFlight map[string]uint64
	now      func() time.Time
}

var _ sync.Reporter = (*Metrics)(nil)

// New creates a metrics collector with every metric registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inFlight: make(map[string]uint64),
		now:      time.Now,

		filesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_fetched_total",
			Help:      "Total number of files downloaded and verified",
		}),
		bytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_transferred_total",
			Help:      "Total bytes of verified downloads",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of download attempts after the first",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Total number of failed artifacts by error kind",
		}, []string{"kind"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last sync run in seconds",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "Whether the last sync run succeeded (1) or failed (0)",
		}),
	}

	m.registry.MustRegister(
		m.filesFetched,
		m.bytesTransferred,
		m.retries,
		m.failures,
		m.runDuration,
		m.lastRunSuccess,
	)
	return m
}

// Registry returns the registry holding the collected metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) OnStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = m.now()
}

func (m *Metrics) OnStep(sync.Phase) {}

func (m *Metrics) OnFileStep(path string, ev sync.FileEvent) {
	switch ev.Kind {
	case sync.FileDownloading:
		m.mu.Lock()
		m.inFlight[path] = ev.Current
		m.mu.Unlock()
	case sync.FileRetrying:
		m.retries.Inc()
		m.forget(path)
	case sync.FileFailed:
		kind := sync.KindOf(ev.Err)
		if kind == "" {
			kind = "unknown"
		}
		m.failures.WithLabelValues(string(kind)).Inc()
		m.forget(path)
	}
}

func (m *Metrics) OnFileCompleted(path string, _ sync.Stats) {
	m.mu.Lock()
	n := m.inFlight[path]
	delete(m.inFlight, path)
	m.mu.Unlock()

	m.filesFetched.Inc()
	m.bytesTransferred.Add(float64(n))
}

func (m *Metrics) OnFinish(err error) {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	if !started.IsZero() {
		m.runDuration.Set(m.now().Sub(started).Seconds())
	}
	if err != nil {
		m.lastRunSuccess.Set(0)
		return
	}
	m.lastRunSuccess.Set(1)
}

func (m *Metrics) forget(path string) {
	m.mu.Lock()
	delete(m.inFlight, path)
	m.mu.Unlock()
}
