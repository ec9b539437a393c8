package snapshot

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fgeck/branchsnap/internal/execshell"
	"github.com/fgeck/branchsnap/internal/models"
)

// mysqlAdapter dumps and restores a MySQL database with mysqldump/mysql.
// There is no connection-draining sequence: the server's own locking
// semantics cover the import.
type mysqlAdapter struct {
	cfg      models.TransferConfig
	namer    DumpFileNamer
	executor execshell.CommandExecutor
	logger   zerolog.Logger
	progress io.Writer
}

func newMySQLAdapter(
	cfg models.TransferConfig,
	logger zerolog.Logger,
	progress io.Writer,
	executor execshell.CommandExecutor,
) *mysqlAdapter {
	return &mysqlAdapter{
		cfg:      cfg,
		namer:    DumpFileNamer{Dir: cfg.Dump.Dir},
		executor: executor,
		logger:   logger,
		progress: progress,
	}
}

func (a *mysqlAdapter) buildEnv() []string {
	env := []string{}
	if a.cfg.Database.Password != "" {
		// MYSQL_PWD keeps the password off the process list.
		env = append(env, "MYSQL_PWD="+a.cfg.Database.Password)
	}
	return env
}

func (a *mysqlAdapter) connArgs() []string {
	args := []string{
		"-h", a.cfg.Database.Host,
		"-P", strconv.Itoa(a.cfg.Database.Port),
	}
	if a.cfg.Database.Username != "" {
		args = append(args, "-u", a.cfg.Database.Username)
	}
	return args
}

// Dump exports the whole database to the branch's dump file via mysqldump.
func (a *mysqlAdapter) Dump(ctx context.Context, branch string) (*models.DumpResult, error) {
	db := a.cfg.Database.Name
	result := &models.DumpResult{
		Branch: branch,
		Path:   a.namer.Path(db, branch),
	}
	start := time.Now()

	a.logger.Info().
		Str("database", db).
		Str("branch", branch).
		Str("path", result.Path).
		Msg("dumping database state")
	printSaving(a.progress, branch)

	args := append(a.connArgs(), "--result-file="+result.Path, db)
	output, err := a.executor.ExecuteWithEnv(ctx, a.buildEnv(), "mysqldump", args...)
	if err != nil {
		result.Error = fmt.Errorf("mysqldump failed: %w, output: %s", err, string(output))
		result.Duration = time.Since(start)
		printVerdict(a.progress, result.Error)
		return result, nil //nolint:nilerr // error is stored in result struct by design
	}

	if a.cfg.Dump.Compress {
		if err := compressFile(result.Path); err != nil {
			result.Error = err
			result.Duration = time.Since(start)
			printVerdict(a.progress, result.Error)
			return result, nil
		}
	}

	result.Duration = time.Since(start)
	printVerdict(a.progress, nil)

	a.logger.Info().
		Str("database", db).
		Str("branch", branch).
		Dur("duration", result.Duration).
		Msg("dump completed")
	return result, nil
}

// Restore imports the branch's dump into the live database via the mysql
// client reading the dump file on stdin.
func (a *mysqlAdapter) Restore(ctx context.Context, branch string) (*models.RestoreResult, error) {
	db := a.cfg.Database.Name
	result := &models.RestoreResult{
		Branch: branch,
		Path:   a.namer.Path(db, branch),
	}
	start := time.Now()

	a.logger.Info().
		Str("database", db).
		Str("branch", branch).
		Str("path", result.Path).
		Msg("restoring database state")
	printRestoring(a.progress, branch)

	importPath := result.Path
	if isCompressed(importPath) {
		plain, cleanup, err := decompressToTemp(importPath)
		if err != nil {
			result.Error = err
			result.Duration = time.Since(start)
			printVerdict(a.progress, result.Error)
			return result, nil
		}
		defer cleanup()
		importPath = plain
	}

	args := append(a.connArgs(), db)
	output, err := a.executor.ExecuteWithInput(ctx, a.buildEnv(), importPath, "mysql", args...)
	result.Steps = append(result.Steps, models.RestoreStep{Name: "import", Error: err})
	if err != nil {
		result.Error = fmt.Errorf("mysql import failed: %w, output: %s", err, string(output))
	}

	result.Duration = time.Since(start)
	printVerdict(a.progress, result.Error)

	if result.Error == nil {
		a.logger.Info().
			Str("database", db).
			Str("branch", branch).
			Dur("duration", result.Duration).
			Msg("restore completed")
	}
	return result, nil
}

// DumpExists reports whether a dump for the branch is on disk.
func (a *mysqlAdapter) DumpExists(branch string) bool {
	return dumpExists(a.namer, a.cfg.Database.Name, branch)
}

// TerminateTestConnections is a no-op for MySQL.
func (a *mysqlAdapter) TerminateTestConnections(_ context.Context) {}
