// Package models contains the data structures used throughout branchsnap.
package models

import "strings"

// Database engine identifiers.
const (
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
)

// TransferConfig holds the complete configuration for a branch-switch run.
type TransferConfig struct {
	Database DatabaseConfig
	Dump     DumpSettings
	Watcher  *WatcherConfig // nil if not configured
	Env      EnvSettings
}

// DatabaseConfig identifies the live database whose state follows branches.
type DatabaseConfig struct {
	Engine   string // "postgres" or "mysql"
	Name     string
	Host     string
	Port     int
	Username string
	Password string // optional
}

// DumpSettings controls where dump files live and how they are stored.
type DumpSettings struct {
	Dir      string
	Compress bool // zstd-compress dumps after a successful export
}

// WatcherConfig describes the external test-watcher process that must be
// paused around a restore.
type WatcherConfig struct {
	Marker          string // substring matched against the process list
	FormatterMarker string // optional marker for the output-formatter child
}

// EnvSettings names the environment token embedded in the database name, used
// to derive the sibling test database ("myapp_development" -> "myapp_test").
type EnvSettings struct {
	Token     string
	TestToken string
}

// TestDatabaseName derives the sibling test database from the primary name.
// Returns "" when the primary name does not contain the environment token.
func (c TransferConfig) TestDatabaseName() string {
	if c.Env.Token == "" || c.Env.TestToken == "" {
		return ""
	}
	if !strings.Contains(c.Database.Name, c.Env.Token) {
		return ""
	}
	return strings.Replace(c.Database.Name, c.Env.Token, c.Env.TestToken, 1)
}
