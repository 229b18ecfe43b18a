package sync

import (
	"sync/atomic"
)

// Stats is a point-in-time copy of a run's counters.
type Stats struct {
	TotalBytes       uint64
	BytesTransferred uint64
	TotalFiles       int
	FilesCompleted   int
}

// Percent returns transferred bytes as a percentage of the total, or 100
// when nothing needs transferring.
func (s Stats) Percent() float64 {
	if s.TotalBytes == 0 {
		return 100
	}
	return float64(s.BytesTransferred) / float64(s.TotalBytes) * 100
}

// Progress holds the counters of one run. It is created from the plan
// and shared by pointer with every worker; all updates are atomic.
type Progress struct {
	totalBytes       atomic.Uint64
	bytesTransferred atomic.Int64
	totalFiles       atomic.Int64
	filesCompleted   atomic.Int64
}

// NewProgress returns counters sized for the Fetch tasks in tasks.
func NewProgress(tasks []Task) *Progress {
	p := &Progress{}
	for _, t := range tasks {
		if t.Decision != DecisionFetch {
			continue
		}
		p.totalBytes.Add(t.Artifact.Size)
		p.totalFiles.Add(1)
	}
	return p
}

// AddBytes records n transferred bytes. A negative n rolls back bytes
// from a failed attempt.
func (p *Progress) AddBytes(n int64) {
	p.bytesTransferred.Add(n)
}

// CompleteFile records one verified file and returns the updated stats.
func (p *Progress) CompleteFile() Stats {
	p.filesCompleted.Add(1)
	return p.Snapshot()
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() Stats {
	transferred := p.bytesTransferred.Load()
	if transferred < 0 {
		transferred = 0
	}
	return Stats{
		TotalBytes:       p.totalBytes.Load(),
		BytesTransferred: uint64(transferred),
		TotalFiles:       int(p.totalFiles.Load()),
		FilesCompleted:   int(p.filesCompleted.Load()),
	}
}
