package config

import "time"

// Realtime modes.
const (
	ModeAuto = "auto"
	ModePush = "push"
	ModePoll = "poll"
)

// Config holds runtime settings for the QuickChat terminal client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - LiveBaseURL: ws:// or wss:// base of the live change endpoint.
//   - PollInterval: how often the polling feed refetches history.
//   - DatabasePath: file of the local key/value store.
//   - RealtimeMode: one of ModeAuto, ModePush, ModePoll.
//   - AccountSecret: secret used for every identifier on this device.
type Config struct {
	ServerEndpointAddr string
	LiveBaseURL        string
	PollInterval       time.Duration
	DatabasePath       string
	RealtimeMode       string
	AccountSecret      string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.LiveBaseURL = "ws://127.0.0.1:8080"
	c.PollInterval = 3 * time.Second
	c.DatabasePath = "quickchat.db"
	c.RealtimeMode = ModeAuto
	c.AccountSecret = "quickchat-device"
}

// LoadConfig applies defaults, then the JSON file (if any), then flags.
// Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
