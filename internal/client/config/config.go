package config

import "time"

// Config holds runtime settings for the registry client.
//
// Fields:
//   - ServerEndpointAddr: base URL of the remote store gateway.
//   - PingURL: URL probed by the connectivity monitor; when empty, the
//     gateway's health endpoint is used.
//   - OnlineCheckInterval: how often the client probes reachability.
//   - DatabasePath: path of the local sqlite database backing offline
//     storage.
type Config struct {
	ServerEndpointAddr  string
	PingURL             string
	OnlineCheckInterval time.Duration
	DatabasePath        string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.PingURL = ""
	c.OnlineCheckInterval = 5 * time.Second
	c.DatabasePath = "registros.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
