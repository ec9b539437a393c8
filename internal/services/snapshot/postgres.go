package snapshot

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fgeck/branchsnap/internal/execshell"
	"github.com/fgeck/branchsnap/internal/models"
)

// maintenanceDatabase is the database psql connects to while the target
// database is being dropped and recreated.
const maintenanceDatabase = "postgres"

// postgresAdapter dumps and restores a PostgreSQL database with pg_dump/psql.
type postgresAdapter struct {
	cfg      models.TransferConfig
	namer    DumpFileNamer
	executor execshell.CommandExecutor
	logger   zerolog.Logger
	progress io.Writer
}

func newPostgresAdapter(
	cfg models.TransferConfig,
	logger zerolog.Logger,
	progress io.Writer,
	executor execshell.CommandExecutor,
) *postgresAdapter {
	return &postgresAdapter{
		cfg:      cfg,
		namer:    DumpFileNamer{Dir: cfg.Dump.Dir},
		executor: executor,
		logger:   logger,
		progress: progress,
	}
}

func (a *postgresAdapter) buildEnv() []string {
	env := []string{}
	if a.cfg.Database.Password != "" {
		env = append(env, "PGPASSWORD="+a.cfg.Database.Password)
	}
	return env
}

func (a *postgresAdapter) connArgs() []string {
	args := []string{
		"-h", a.cfg.Database.Host,
		"-p", strconv.Itoa(a.cfg.Database.Port),
	}
	if a.cfg.Database.Username != "" {
		args = append(args, "-U", a.cfg.Database.Username)
	}
	return args
}

// runSQL executes a single statement via psql against the maintenance
// database, so it works while the target database refuses connections.
func (a *postgresAdapter) runSQL(ctx context.Context, sql string) error {
	args := append(a.connArgs(), "-d", maintenanceDatabase, "-c", sql)
	output, err := a.executor.ExecuteWithEnv(ctx, a.buildEnv(), "psql", args...)
	if err != nil {
		return fmt.Errorf("psql failed: %w, output: %s", err, string(output))
	}
	return nil
}

// quoteIdent quotes a SQL identifier, doubling embedded double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a SQL string literal, doubling embedded single quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (a *postgresAdapter) terminateSQL(database string) string {
	return fmt.Sprintf(
		"SELECT pg_terminate_backend(pg_stat_activity.pid) FROM pg_stat_activity "+
			"WHERE pg_stat_activity.datname = %s AND pid <> pg_backend_pid()",
		quoteLiteral(database),
	)
}

// Dump exports the whole database to the branch's dump file via pg_dump.
func (a *postgresAdapter) Dump(ctx context.Context, branch string) (*models.DumpResult, error) {
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

	args := append(a.connArgs(), "-d", db, "-f", result.Path)
	output, err := a.executor.ExecuteWithEnv(ctx, a.buildEnv(), "pg_dump", args...)
	if err != nil {
		result.Error = fmt.Errorf("pg_dump failed: %w, output: %s", err, string(output))
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

// Restore replaces the live database with the branch's dump. A live server
// may hold open connections that block DROP DATABASE, so backends are
// terminated before the drop and again after it, since connections can be
// re-established between steps. Steps 1-7 are best-effort; only the final
// import determines the result.
func (a *postgresAdapter) Restore(ctx context.Context, branch string) (*models.RestoreResult, error) {
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

	step := func(name, sql string) {
		err := a.runSQL(ctx, sql)
		result.Steps = append(result.Steps, models.RestoreStep{Name: name, Error: err})
		if err != nil {
			a.logger.Warn().Err(err).Str("step", name).Msg("restore preparation step failed")
		}
	}

	step("disallow_connections", fmt.Sprintf(
		"UPDATE pg_database SET datallowconn = false WHERE datname = %s", quoteLiteral(db)))
	step("terminate_connections", a.terminateSQL(db))
	step("drop_database", "DROP DATABASE "+quoteIdent(db))
	step("terminate_connections", a.terminateSQL(db))
	step("create_database", "CREATE DATABASE "+quoteIdent(db))
	step("terminate_connections", a.terminateSQL(db))
	step("allow_connections", fmt.Sprintf(
		"UPDATE pg_database SET datallowconn = true WHERE datname = %s", quoteLiteral(db)))

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

	args := append(a.connArgs(), "-d", db, "-f", importPath)
	output, err := a.executor.ExecuteWithEnv(ctx, a.buildEnv(), "psql", args...)
	result.Steps = append(result.Steps, models.RestoreStep{Name: "import", Error: err})
	if err != nil {
		result.Error = fmt.Errorf("psql import failed: %w, output: %s", err, string(output))
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
func (a *postgresAdapter) DumpExists(branch string) bool {
	return dumpExists(a.namer, a.cfg.Database.Name, branch)
}

// TerminateTestConnections drops lingering connections to the sibling test
// database. A watcher that ran tests before the pause can hold them open.
func (a *postgresAdapter) TerminateTestConnections(ctx context.Context) {
	testDB := a.cfg.TestDatabaseName()
	if testDB == "" {
		return
	}
	if err := a.runSQL(ctx, a.terminateSQL(testDB)); err != nil {
		a.logger.Warn().Err(err).Str("database", testDB).Msg("terminating test database connections failed")
	}
}
