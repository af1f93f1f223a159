// Package preflight checks that codesync can run on this machine before a
// sync is attempted.
//
// The package validates:
//   - Free disk space in the data directory (preferences and logs)
//   - Write permissions in the data directory
//   - File descriptor limits (concurrent uploads and file watches)
//   - The version control backend (git on PATH for the exec backend)
//   - Remote reachability
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithDataDir(dir), preflight.WithProber(client))
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
