package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDump_InvokesPgDump(t *testing.T) {
	dumpDir := t.TempDir()
	executor := &mockExecutor{}
	adapter := newPostgresAdapter(postgresConfig(dumpDir), testLogger(), io.Discard, executor)

	result, err := adapter.Dump(context.Background(), "feature/login")

	require.NoError(t, err)
	require.NoError(t, result.Error)
	require.Len(t, executor.calls, 1)

	call := executor.calls[0]
	assert.Equal(t, "pg_dump", call.name)
	assert.Equal(t, "localhost", argValue(call.args, "-h"))
	assert.Equal(t, "5432", argValue(call.args, "-p"))
	assert.Equal(t, "postgres", argValue(call.args, "-U"))
	assert.Equal(t, "myapp_development", argValue(call.args, "-d"))
	assert.Equal(t, adapter.namer.Path("myapp_development", "feature/login"), argValue(call.args, "-f"))
	assert.Contains(t, call.env, "PGPASSWORD=secret")
}

func TestPostgresDump_FailureGoesIntoResult(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(name string, args []string) ([]byte, error) {
			return []byte("connection refused"), errors.New("exit status 1")
		},
	}
	adapter := newPostgresAdapter(postgresConfig(t.TempDir()), testLogger(), io.Discard, executor)

	result, err := adapter.Dump(context.Background(), "main")

	require.NoError(t, err, "command failure must not surface as an error return")
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "pg_dump failed")
	assert.Contains(t, result.Error.Error(), "connection refused")
}

func TestPostgresRestore_StepSequence(t *testing.T) {
	executor := &mockExecutor{}
	adapter := newPostgresAdapter(postgresConfig(t.TempDir()), testLogger(), io.Discard, executor)

	result, err := adapter.Restore(context.Background(), "main")

	require.NoError(t, err)
	require.NoError(t, result.Error)

	wantSteps := []string{
		"disallow_connections",
		"terminate_connections",
		"drop_database",
		"terminate_connections",
		"create_database",
		"terminate_connections",
		"allow_connections",
		"import",
	}
	require.Len(t, result.Steps, len(wantSteps))
	for i, step := range result.Steps {
		assert.Equal(t, wantSteps[i], step.Name, "step %d", i)
	}

	// Every command goes through psql, and everything but the final import
	// targets the maintenance database.
	require.Len(t, executor.calls, len(wantSteps))
	var drops, creates int
	for i, call := range executor.calls {
		assert.Equal(t, "psql", call.name)
		if i < len(wantSteps)-1 {
			assert.Equal(t, maintenanceDatabase, argValue(call.args, "-d"))
		}
		sql := argValue(call.args, "-c")
		if strings.HasPrefix(sql, "DROP DATABASE") {
			drops++
		}
		if strings.HasPrefix(sql, "CREATE DATABASE") {
			creates++
		}
	}
	assert.Equal(t, 1, drops, "exactly one DROP DATABASE")
	assert.Equal(t, 1, creates, "exactly one CREATE DATABASE")

	importCall := executor.calls[len(executor.calls)-1]
	assert.Equal(t, "myapp_development", argValue(importCall.args, "-d"))
	assert.NotEmpty(t, argValue(importCall.args, "-f"))
}

func TestPostgresRestore_PreparationFailuresAreBestEffort(t *testing.T) {
	// Every psql call but the import fails; the restore still succeeds
	// because only the import step determines the result.
	executor := &mockExecutor{}
	executor.executeFunc = func(name string, args []string) ([]byte, error) {
		if argValue(args, "-c") != "" {
			return []byte("database is being accessed"), errors.New("exit status 1")
		}
		return nil, nil
	}
	adapter := newPostgresAdapter(postgresConfig(t.TempDir()), testLogger(), io.Discard, executor)

	result, err := adapter.Restore(context.Background(), "main")

	require.NoError(t, err)
	assert.NoError(t, result.Error)
	for _, step := range result.Steps[:len(result.Steps)-1] {
		assert.Error(t, step.Error, "step %s recorded its failure", step.Name)
	}
	assert.NoError(t, result.Steps[len(result.Steps)-1].Error)
}

func TestPostgresRestore_ImportFailure(t *testing.T) {
	executor := &mockExecutor{}
	executor.executeFunc = func(name string, args []string) ([]byte, error) {
		if argValue(args, "-f") != "" {
			return []byte("syntax error"), errors.New("exit status 3")
		}
		return nil, nil
	}
	var progress bytes.Buffer
	adapter := newPostgresAdapter(postgresConfig(t.TempDir()), testLogger(), &progress, executor)

	result, err := adapter.Restore(context.Background(), "main")

	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "psql import failed")
	assert.Contains(t, progress.String(), "failed!")
}

func TestPostgresRestore_QuotesDatabaseName(t *testing.T) {
	// Identifiers double embedded double quotes, literals double embedded
	// single quotes; Go's %q escaping would produce invalid SQL for both.
	cfg := postgresConfig(t.TempDir())
	cfg.Database.Name = `o'we"ird`
	executor := &mockExecutor{}
	adapter := newPostgresAdapter(cfg, testLogger(), io.Discard, executor)

	_, err := adapter.Restore(context.Background(), "main")
	require.NoError(t, err)

	var sqls []string
	for _, call := range executor.calls {
		if sql := argValue(call.args, "-c"); sql != "" {
			sqls = append(sqls, sql)
		}
	}
	joined := strings.Join(sqls, "\n")
	assert.Contains(t, joined, `DROP DATABASE "o'we""ird"`)
	assert.Contains(t, joined, `CREATE DATABASE "o'we""ird"`)
	assert.Contains(t, joined, `datname = 'o''we"ird'`)
	assert.NotContains(t, joined, `\"`, "no Go-style escaping leaks into SQL")
}

func TestPostgresTerminateTestConnections(t *testing.T) {
	executor := &mockExecutor{}
	adapter := newPostgresAdapter(postgresConfig(t.TempDir()), testLogger(), io.Discard, executor)

	adapter.TerminateTestConnections(context.Background())

	require.Len(t, executor.calls, 1)
	sql := argValue(executor.calls[0].args, "-c")
	assert.Contains(t, sql, "pg_terminate_backend")
	assert.Contains(t, sql, "myapp_test")
}

func TestPostgresTerminateTestConnections_NoTokenIsNoOp(t *testing.T) {
	cfg := postgresConfig(t.TempDir())
	cfg.Database.Name = "standalone_db"
	executor := &mockExecutor{}
	adapter := newPostgresAdapter(cfg, testLogger(), io.Discard, executor)

	adapter.TerminateTestConnections(context.Background())

	assert.Empty(t, executor.calls)
}
