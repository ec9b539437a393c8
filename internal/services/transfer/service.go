// Package transfer orchestrates the branch-switch state transfer: dump the
// branches being left, pause the watcher, restore the branch being entered,
// resume the watcher.
package transfer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fgeck/branchsnap/internal/models"
	"github.com/fgeck/branchsnap/internal/services/snapshot"
)

// Request carries the branch endpoints of one checkout event.
type Request struct {
	// SourceCandidates are the branches that pointed at the previous HEAD,
	// in order. All of them are dumped so the snapshot is consistent no
	// matter which of them the developer considered current.
	SourceCandidates []string
	Destination      string
}

// Coordinator is the watcher handshake the orchestrator drives around the
// restore window.
type Coordinator interface {
	Pause(ctx context.Context)
	Resume(ctx context.Context)
}

// Service defines the interface for the branch transfer orchestrator.
type Service interface {
	Run(ctx context.Context, req Request) (*models.TransferReport, error)
}

// Impl implements the transfer Service interface.
type Impl struct {
	cfg         models.TransferConfig
	adapter     snapshot.Adapter
	coordinator Coordinator
	logger      zerolog.Logger
}

// New creates a new transfer service.
func New(logger zerolog.Logger, cfg models.TransferConfig, adapter snapshot.Adapter, coordinator Coordinator) *Impl {
	return &Impl{
		cfg:         cfg,
		adapter:     adapter,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Run executes one state transfer and produces exactly one terminal outcome.
// Degenerate inputs short-circuit before any command runs.
func (s *Impl) Run(ctx context.Context, req Request) (*models.TransferReport, error) {
	start := time.Now()
	report := &models.TransferReport{
		Database:    s.cfg.Database.Name,
		Destination: req.Destination,
	}

	if outcome, done := s.gate(req); done {
		report.Outcome = outcome
		report.Duration = time.Since(start)
		return report, nil
	}

	// Dump phase: sequential, short-circuit on the first failure so a run
	// never leaves some source branches snapshotted and others not.
	for _, branch := range req.SourceCandidates {
		result, err := s.adapter.Dump(ctx, branch)
		if err != nil {
			return nil, err
		}
		if result.Error != nil {
			s.logger.Error().Err(result.Error).Str("branch", branch).Msg("dump failed")
			report.Outcome = models.DumpFailed
			report.FailedBranch = branch
			report.Duration = time.Since(start)
			return report, nil
		}
	}

	// First visit to this branch: nothing to restore, live database stays.
	if !s.adapter.DumpExists(req.Destination) {
		report.Outcome = models.RestoreSkippedNoDump
		report.Duration = time.Since(start)
		return report, nil
	}

	// Restore window. Resume is deferred so a failed restore never leaves
	// the watcher paused.
	s.coordinator.Pause(ctx)
	defer s.coordinator.Resume(ctx)

	result, err := s.adapter.Restore(ctx, req.Destination)
	if err != nil {
		return nil, err
	}
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Str("branch", req.Destination).Msg("restore failed")
		report.Outcome = models.RestoreFailed
		report.Duration = time.Since(start)
		return report, nil
	}

	s.adapter.TerminateTestConnections(ctx)

	report.Outcome = models.RestoreSucceeded
	report.Duration = time.Since(start)
	return report, nil
}

// gate filters degenerate checkout events. Returns the terminal outcome and
// true when the run must stop without executing any command.
func (s *Impl) gate(req Request) (models.TransferOutcome, bool) {
	if req.Destination == "" {
		return models.NoOpInvalidBranch, true
	}
	if len(req.SourceCandidates) == 0 {
		return models.NoOpNoSourceBranches, true
	}
	for _, branch := range req.SourceCandidates {
		if branch == "" {
			return models.NoOpInvalidBranch, true
		}
		if branch == req.Destination {
			return models.NoOpSameBranch, true
		}
	}
	return "", false
}
