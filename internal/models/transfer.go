package models

import (
	"fmt"
	"time"
)

// TransferOutcome is the terminal state of one orchestration run. Exactly one
// outcome is produced per run and each maps to one user-facing message.
type TransferOutcome string

const (
	NoOpSameBranch       TransferOutcome = "noop_same_branch"
	NoOpNoSourceBranches TransferOutcome = "noop_no_source_branches"
	NoOpInvalidBranch    TransferOutcome = "noop_invalid_branch"
	DumpFailed           TransferOutcome = "dump_failed"
	RestoreSkippedNoDump TransferOutcome = "restore_skipped_no_dump"
	RestoreSucceeded     TransferOutcome = "restore_succeeded"
	RestoreFailed        TransferOutcome = "restore_failed"
)

// TransferReport summarizes one orchestration run.
type TransferReport struct {
	Outcome      TransferOutcome
	Database     string
	Destination  string
	FailedBranch string // branch whose dump failed, for DumpFailed
	Duration     time.Duration
}

// Message renders the user-facing summary for the terminal state.
func (r TransferReport) Message() string {
	switch r.Outcome {
	case NoOpSameBranch:
		return "Already on this branch; database left untouched."
	case NoOpNoSourceBranches:
		return "Could not tell which branch was left; database left untouched."
	case NoOpInvalidBranch:
		return "Not on a branch; database left untouched."
	case DumpFailed:
		return fmt.Sprintf("Saving the state of %s on branch '%s' failed! The database was left untouched.",
			r.Database, r.FailedBranch)
	case RestoreSkippedNoDump:
		return fmt.Sprintf("No DB dump for %s on branch '%s' was found!\n"+
			"Run your migrations and seeds to build this branch's database from scratch.",
			r.Database, r.Destination)
	case RestoreSucceeded:
		return fmt.Sprintf("Restored %s to its state on branch '%s'.", r.Database, r.Destination)
	case RestoreFailed:
		return fmt.Sprintf("Restoring %s for branch '%s' failed! The database may be in an inconsistent state.",
			r.Database, r.Destination)
	}
	return string(r.Outcome)
}

// WatcherHandle identifies the discovered watcher processes. A zero CorePID
// means no watcher is running and coordinator operations are no-ops.
type WatcherHandle struct {
	CorePID      int
	FormatterPID int
}

// DumpResult holds the result of one dump operation.
type DumpResult struct {
	Branch   string
	Path     string
	Duration time.Duration
	Error    error
}

// RestoreStep records one step of a multi-step restore sequence.
type RestoreStep struct {
	Name  string
	Error error
}

// RestoreResult holds the result of one restore operation. Steps exposes the
// per-step outcomes of best-effort sequences; Error reflects only the final
// import step.
type RestoreResult struct {
	Branch   string
	Path     string
	Steps    []RestoreStep
	Duration time.Duration
	Error    error
}
