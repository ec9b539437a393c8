package snapshot

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgeck/branchsnap/internal/models"
)

// execCall records one command dispatched to the mock executor.
type execCall struct {
	name      string
	args      []string
	env       []string
	inputPath string
}

type mockExecutor struct {
	calls       []execCall
	executeFunc func(name string, args []string) ([]byte, error)
	inputFunc   func(inputPath, name string, args []string) ([]byte, error)
}

func (m *mockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, execCall{name: name, args: args})
	if m.executeFunc != nil {
		return m.executeFunc(name, args)
	}
	return nil, nil
}

func (m *mockExecutor) ExecuteWithEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, execCall{name: name, args: args, env: env})
	if m.executeFunc != nil {
		return m.executeFunc(name, args)
	}
	return nil, nil
}

func (m *mockExecutor) ExecuteWithInput(ctx context.Context, env []string, inputPath string, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, execCall{name: name, args: args, env: env, inputPath: inputPath})
	if m.inputFunc != nil {
		return m.inputFunc(inputPath, name, args)
	}
	return nil, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func postgresConfig(dumpDir string) models.TransferConfig {
	return models.TransferConfig{
		Database: models.DatabaseConfig{
			Engine:   models.EnginePostgres,
			Name:     "myapp_development",
			Host:     "localhost",
			Port:     5432,
			Username: "postgres",
			Password: "secret",
		},
		Dump: models.DumpSettings{Dir: dumpDir},
		Env:  models.EnvSettings{Token: "development", TestToken: "test"},
	}
}

func mysqlConfig(dumpDir string) models.TransferConfig {
	return models.TransferConfig{
		Database: models.DatabaseConfig{
			Engine:   models.EngineMySQL,
			Name:     "shop_development",
			Host:     "localhost",
			Port:     3306,
			Username: "root",
			Password: "secret",
		},
		Dump: models.DumpSettings{Dir: dumpDir},
		Env:  models.EnvSettings{Token: "development", TestToken: "test"},
	}
}

// argValue returns the argument following the given flag, or "".
func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestNewAdapter_SelectsEngine(t *testing.T) {
	pg, err := NewAdapter(postgresConfig(t.TempDir()), testLogger(), io.Discard)
	require.NoError(t, err)
	assert.IsType(t, &postgresAdapter{}, pg)

	my, err := NewAdapter(mysqlConfig(t.TempDir()), testLogger(), io.Discard)
	require.NoError(t, err)
	assert.IsType(t, &mysqlAdapter{}, my)
}

func TestNewAdapter_UnsupportedEngine(t *testing.T) {
	cfg := postgresConfig(t.TempDir())
	cfg.Database.Engine = "oracle"

	adapter, err := NewAdapter(cfg, testLogger(), io.Discard)

	assert.Nil(t, adapter)
	require.Error(t, err)
	var unsupported *UnsupportedEngineError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "oracle", unsupported.Engine)
	assert.Contains(t, err.Error(), "oracle")
}

func TestAdapter_DumpRestoreRoundTrip(t *testing.T) {
	// A fake engine that writes a fixed byte sequence on dump and reads it
	// back on restore, instead of shelling to a real server.
	dumpDir := t.TempDir()
	content := []byte("-- branch state --\nINSERT INTO users VALUES (1);\n")

	var restored []byte
	executor := &mockExecutor{
		executeFunc: func(name string, args []string) ([]byte, error) {
			switch name {
			case "pg_dump":
				return nil, os.WriteFile(argValue(args, "-f"), content, 0o600)
			case "psql":
				if path := argValue(args, "-f"); path != "" {
					data, err := os.ReadFile(path)
					if err != nil {
						return nil, err
					}
					restored = data
				}
				return nil, nil
			}
			return nil, nil
		},
	}

	adapter, err := NewAdapterWithExecutor(postgresConfig(dumpDir), testLogger(), io.Discard, executor)
	require.NoError(t, err)

	assert.False(t, adapter.DumpExists("main"), "no dump before the first dump")

	dumpResult, err := adapter.Dump(context.Background(), "main")
	require.NoError(t, err)
	require.NoError(t, dumpResult.Error)
	assert.True(t, adapter.DumpExists("main"))

	restoreResult, err := adapter.Restore(context.Background(), "main")
	require.NoError(t, err)
	require.NoError(t, restoreResult.Error)
	assert.Equal(t, content, restored)
}

func TestAdapter_CompressedRoundTrip(t *testing.T) {
	dumpDir := t.TempDir()
	content := []byte("CREATE TABLE things (id integer);\n")
	cfg := postgresConfig(dumpDir)
	cfg.Dump.Compress = true

	var restored []byte
	executor := &mockExecutor{
		executeFunc: func(name string, args []string) ([]byte, error) {
			switch name {
			case "pg_dump":
				return nil, os.WriteFile(argValue(args, "-f"), content, 0o600)
			case "psql":
				if path := argValue(args, "-f"); path != "" {
					data, err := os.ReadFile(path)
					if err != nil {
						return nil, err
					}
					restored = data
				}
				return nil, nil
			}
			return nil, nil
		},
	}

	adapter, err := NewAdapterWithExecutor(cfg, testLogger(), io.Discard, executor)
	require.NoError(t, err)

	dumpResult, err := adapter.Dump(context.Background(), "main")
	require.NoError(t, err)
	require.NoError(t, dumpResult.Error)

	// The on-disk dump is a zstd stream under the canonical name.
	assert.True(t, isCompressed(dumpResult.Path))
	assert.True(t, adapter.DumpExists("main"))

	// Restore transparently decompresses before the import.
	restoreResult, err := adapter.Restore(context.Background(), "main")
	require.NoError(t, err)
	require.NoError(t, restoreResult.Error)
	assert.Equal(t, content, restored)
}

func TestAdapter_ProgressLines(t *testing.T) {
	dumpDir := t.TempDir()
	executor := &mockExecutor{
		executeFunc: func(name string, args []string) ([]byte, error) {
			if name == "pg_dump" {
				return nil, os.WriteFile(argValue(args, "-f"), []byte("x"), 0o600)
			}
			return nil, nil
		},
	}

	var progress bytes.Buffer
	adapter, err := NewAdapterWithExecutor(postgresConfig(dumpDir), testLogger(), &progress, executor)
	require.NoError(t, err)

	_, err = adapter.Dump(context.Background(), "feature/login")
	require.NoError(t, err)
	assert.Equal(t, "Saving state of database on 'feature/login' branch... done!\n", progress.String())

	progress.Reset()
	_, err = adapter.Restore(context.Background(), "feature/login")
	require.NoError(t, err)
	assert.Equal(t, "Restoring state of database on 'feature/login' branch... done!\n", progress.String())
}
