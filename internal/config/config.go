package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"trackline/internal/health"
)

// Config models trackline.yml, the per-workspace settings file.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		// AllowDevTokens enables the unauthenticated dev token endpoint.
		// Never set in a deployed workspace.
		AllowDevTokens bool `yaml:"allow_dev_tokens"`
	} `yaml:"auth"`
	Health struct {
		OverdueGraceHours int `yaml:"overdue_grace_hours"`
		CriticalBlockers  int `yaml:"critical_blockers"`
	} `yaml:"health"`
	Blobs struct {
		Dir string `yaml:"dir"`
	} `yaml:"blobs"`
	Logger struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logger"`
}

// Default returns the config used when no trackline.yml exists yet.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Auth.AllowDevTokens = true
	th := health.Default()
	cfg.Health.OverdueGraceHours = int(th.OverdueGrace / time.Hour)
	cfg.Health.CriticalBlockers = th.CriticalBlockers
	cfg.Logger.Level = "info"
	cfg.Logger.Format = "console"
	return cfg
}

// Load reads trackline.yml from the workspace, falling back to defaults when
// the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", Path(workspace), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Health.OverdueGraceHours < 0 {
		return fmt.Errorf("config.health.overdue_grace_hours must not be negative")
	}
	if c.Health.CriticalBlockers < 1 {
		return fmt.Errorf("config.health.critical_blockers must be at least 1")
	}
	switch c.Logger.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config.logger.format must be console or json")
	}
	return nil
}

// Thresholds converts the health section for the evaluator.
func (c *Config) Thresholds() health.Thresholds {
	return health.Thresholds{
		OverdueGrace:     time.Duration(c.Health.OverdueGraceHours) * time.Hour,
		CriticalBlockers: c.Health.CriticalBlockers,
	}
}

// BlobDir resolves the attachment directory for a workspace.
func (c *Config) BlobDir(workspace string) string {
	if c.Blobs.Dir != "" {
		return c.Blobs.Dir
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".trackline", "blobs")
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "trackline.yml")
}

// Save writes the config back to the workspace.
func (c *Config) Save(workspace string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(workspace), data, 0o644)
}
