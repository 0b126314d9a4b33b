// Package config loads the optional pgbulk.yaml file the CLI reads from the
// working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// Defaults are fallbacks for upsert flags that were not given.
type Defaults struct {
	Schema      string `yaml:"schema,omitempty"`
	OnConflict  string `yaml:"on_conflict,omitempty"`
	When        string `yaml:"when,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"`
	Pushgateway string `yaml:"pushgateway,omitempty"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Defaults   Defaults         `yaml:"defaults"`
}

const ConfigFileName = "pgbulk.yaml"

// Load reads pgbulk.yaml from dir.
func Load(dir string) (*ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads and validates a config file at an explicit path.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w: %w", filepath.Base(path), pgbulk.ErrInvalidOptions, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late, mid-run.
func (c *ProjectConfig) Validate() error {
	var errs []error

	if c.Connection.Port < 0 || c.Connection.Port > 65535 {
		errs = append(errs, fmt.Errorf("connection.port %d out of range: %w", c.Connection.Port, pgbulk.ErrInvalidOptions))
	}
	if _, err := pgbulk.ParseAuthMethod(c.Connection.AuthMethod); err != nil {
		errs = append(errs, fmt.Errorf("connection.auth_method: %w", err))
	}
	if c.Defaults.OnConflict != "" {
		if _, err := pgbulk.ParseConflictAction(c.Defaults.OnConflict); err != nil {
			errs = append(errs, fmt.Errorf("defaults.on_conflict: %w", err))
		}
	}
	if _, err := c.Defaults.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// TimeoutDuration parses the timeout default; zero means unset.
func (d Defaults) TimeoutDuration() (time.Duration, error) {
	if d.Timeout == "" {
		return 0, nil
	}
	v, err := time.ParseDuration(d.Timeout)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("defaults.timeout %q is not a positive duration: %w", d.Timeout, pgbulk.ErrInvalidOptions)
	}
	return v, nil
}
