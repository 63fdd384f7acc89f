// Package bridgeconfig loads the proxy's JSON configuration file: the
// server registry overrides and the per-driver SQL provisioning settings.
package bridgeconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"lspwsbridge/internal/serverselect"
)

// ServerEntry is one named entry of the config file's "servers" map.
type ServerEntry struct {
	Command []string `json:"command"`
}

// SQLConfig is the admin connection info for one SQL driver, used by the
// provisioner (internal/sqlprovision) to create scratch databases.
type SQLConfig struct {
	Host          string `json:"host"`
	Port          uint16 `json:"port"`
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
	Proto         string `json:"proto,omitempty"`
}

// Config is the proxy's JSON configuration file, parsed after ${VAR}
// environment expansion.
type Config struct {
	NotFoundError bool                   `json:"not_found_error"`
	Servers       map[string]ServerEntry `json:"servers"`
	SQL           map[string]SQLConfig   `json:"sql"`
}

// Load reads path, expands ${VAR} references against the process
// environment (a missing variable expands to the empty string, never an
// error), and parses the result as JSON.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bridgeconfig: reading %s: %w", path, err)
	}

	expanded := os.Expand(string(raw), os.Getenv)

	var cfg Config
	if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("bridgeconfig: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Registry builds a serverselect.Registry from the config's named servers
// plus the command lines given on the CLI's `--`-delimited argv groups.
func (c *Config) Registry(startup []serverselect.Command) *serverselect.Registry {
	named := make(map[string]serverselect.Command, len(c.Servers))
	for name, entry := range c.Servers {
		named[name] = serverselect.Command(entry.Command)
	}

	return &serverselect.Registry{
		Named:      named,
		Startup:    startup,
		StrictName: c.NotFoundError,
	}
}

// SQLDriver looks up the admin connection settings for driver, returning
// ok=false if the config has no "sql" entry for it (or no config at all).
func (c *Config) SQLDriver(driver string) (SQLConfig, bool) {
	if c == nil || c.SQL == nil {
		return SQLConfig{}, false
	}
	cfg, ok := c.SQL[driver]
	return cfg, ok
}
