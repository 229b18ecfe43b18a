// Package sync reconciles a local artifact tree with a manifest's
// artifact descriptors. Each artifact is a file downloaded from a URL and
// verified by SHA-1, a directory, or a symlink, optionally guarded by
// platform rules.
//
// # Running a sync
//
// A Syncer plans and executes the work for one root directory:
//
//	s := sync.New(sync.Options{
//	    Root:        "/opt/runtime",
//	    Platform:    model.HostPlatform(),
//	    Concurrency: 16,
//	    Reporter:    sync.NewLogReporter(nil),
//	})
//	result, err := s.Sync(ctx, artifacts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(result.Summary())
//
// # Planning
//
// Plan filters artifacts with the rule evaluator and classifies each one:
//   - DecisionSkip: the file exists with the expected digest, or the symlink exists
//   - DecisionFetch: the file is missing or its digest differs
//   - DecisionMaterialize: directories, and symlinks that are missing
//
// Planning never changes the tree, so Plan doubles as a dry run.
//
// # Fetching
//
// Each file is downloaded in up to five attempts with a fixed pause between
// them. Transport failures and digest mismatches are retried; the partial
// file is deleted before the next attempt. Local filesystem errors stop the
// artifact immediately.
//
// # Progress Reporting
//
// A Reporter receives run phases and per-artifact events. Events arrive from
// several workers at once:
//
//	OnStart
//	OnStep(PhaseManifest), OnStep(PhaseChecking), OnStep(PhaseDownloading)
//	OnFileStep(...) and OnFileCompleted(...) per artifact
//	OnStep(PhaseDone) on success
//	OnFinish(err)
//
// Counters live in a Progress value owned by the run and read through
// Snapshot.
//
// # Errors
//
// Every error returned by the package is a *Error classified by ErrorKind.
// Use errors.Is with the sentinels (ErrRetriesExhausted, ErrLocalIO, ...)
// or KindOf to inspect it.
package sync
