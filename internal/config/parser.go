// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/fgeck/branchsnap/internal/models"
)

// DefaultDumpDir is where per-branch dump files live unless configured.
const DefaultDumpDir = ".branchsnap"

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.TransferConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.TransferConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.TransferConfig, error) {
	cfg := &models.TransferConfig{}

	// Parse database config (required).
	cfg.Database = models.DatabaseConfig{
		Engine:   p.v.GetString("database.engine"),
		Name:     p.v.GetString("database.name"),
		Host:     p.v.GetString("database.host"),
		Port:     p.v.GetInt("database.port"),
		Username: p.expandEnv(p.v.GetString("database.username")),
		Password: p.expandEnv(p.v.GetString("database.password")),
	}

	if cfg.Database.Engine == "" {
		return nil, fmt.Errorf("database.engine is required")
	}
	if cfg.Database.Engine != models.EnginePostgres && cfg.Database.Engine != models.EngineMySQL {
		return nil, fmt.Errorf("database.engine must be one of: postgres, mysql")
	}
	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("database.name is required")
	}

	// Engine-specific defaults.
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		switch cfg.Database.Engine {
		case models.EnginePostgres:
			cfg.Database.Port = 5432
		case models.EngineMySQL:
			cfg.Database.Port = 3306
		}
	}
	if cfg.Database.Username == "" {
		switch cfg.Database.Engine {
		case models.EnginePostgres:
			cfg.Database.Username = "postgres"
		case models.EngineMySQL:
			cfg.Database.Username = "root"
		}
	}

	// Parse dump settings.
	cfg.Dump = models.DumpSettings{
		Dir:      p.expandEnv(p.v.GetString("dump.dir")),
		Compress: p.v.GetBool("dump.compress"),
	}
	if cfg.Dump.Dir == "" {
		cfg.Dump.Dir = DefaultDumpDir
	}

	// Parse optional watcher config.
	if p.v.IsSet("watcher") {
		cfg.Watcher = &models.WatcherConfig{
			Marker:          p.v.GetString("watcher.marker"),
			FormatterMarker: p.v.GetString("watcher.formatter_marker"),
		}

		if cfg.Watcher.Marker == "" {
			return nil, fmt.Errorf("watcher.marker is required when watcher is configured")
		}
	}

	// Parse environment token mapping.
	cfg.Env = models.EnvSettings{
		Token:     p.v.GetString("environment.token"),
		TestToken: p.v.GetString("environment.test_token"),
	}
	if cfg.Env.Token == "" {
		cfg.Env.Token = "development"
	}
	if cfg.Env.TestToken == "" {
		cfg.Env.TestToken = "test"
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.TransferConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Database.Engine == "" {
		return fmt.Errorf("database.engine is required")
	}

	if cfg.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}

	if cfg.Dump.Dir == "" {
		return fmt.Errorf("dump.dir is required")
	}

	return nil
}
