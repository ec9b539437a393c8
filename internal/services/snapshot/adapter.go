package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/fgeck/branchsnap/internal/execshell"
	"github.com/fgeck/branchsnap/internal/models"
)

// Adapter is the engine-specific capability set for moving database state in
// and out of per-branch dump files. Dump and Restore never raise on command
// failure; the failure lands in the result's Error field.
type Adapter interface {
	Dump(ctx context.Context, branch string) (*models.DumpResult, error)
	Restore(ctx context.Context, branch string) (*models.RestoreResult, error)
	DumpExists(branch string) bool
	// TerminateTestConnections drops lingering connections to the sibling
	// test database after a restore. Best-effort; engines without a server-side
	// termination facility implement it as a no-op.
	TerminateTestConnections(ctx context.Context)
}

// UnsupportedEngineError is returned when the configured database engine is
// not one of the known adapters.
type UnsupportedEngineError struct {
	Engine string
}

func (e *UnsupportedEngineError) Error() string {
	return fmt.Sprintf("unsupported database engine: %q", e.Engine)
}

// NewAdapter selects the adapter for the configured engine. This is the only
// place engine selection happens; callers never branch on engine themselves.
func NewAdapter(cfg models.TransferConfig, logger zerolog.Logger, progress io.Writer) (Adapter, error) {
	return NewAdapterWithExecutor(cfg, logger, progress, &execshell.DefaultExecutor{})
}

// NewAdapterWithExecutor is NewAdapter with a custom executor (for testing).
func NewAdapterWithExecutor(
	cfg models.TransferConfig,
	logger zerolog.Logger,
	progress io.Writer,
	executor execshell.CommandExecutor,
) (Adapter, error) {
	switch cfg.Database.Engine {
	case models.EnginePostgres:
		return newPostgresAdapter(cfg, logger, progress, executor), nil
	case models.EngineMySQL:
		return newMySQLAdapter(cfg, logger, progress, executor), nil
	default:
		return nil, &UnsupportedEngineError{Engine: cfg.Database.Engine}
	}
}

// dumpExists is the shared pure filesystem check.
func dumpExists(namer DumpFileNamer, database, branch string) bool {
	_, err := os.Stat(namer.Path(database, branch))
	return err == nil
}

// progress line helpers shared by the adapters. The hook's UX is plain
// line-buffered text on stdout, separate from the structured log.
func printSaving(w io.Writer, branch string) {
	fmt.Fprintf(w, "Saving state of database on '%s' branch... ", branch)
}

func printRestoring(w io.Writer, branch string) {
	fmt.Fprintf(w, "Restoring state of database on '%s' branch... ", branch)
}

func printVerdict(w io.Writer, err error) {
	if err != nil {
		fmt.Fprintln(w, "failed!")
		return
	}
	fmt.Fprintln(w, "done!")
}
