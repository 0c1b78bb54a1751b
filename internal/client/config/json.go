package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/quickchat/internal/flagx"
	"github.com/dmitrijs2005/quickchat/internal/timex"
)

// JsonConfig is the on-disk form of Config. PollInterval accepts "3s" or
// integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	LiveBaseURL        string         `json:"live_base_url"`
	PollInterval       timex.Duration `json:"poll_interval"`
	DatabasePath       string         `json:"database_path"`
	RealtimeMode       string         `json:"realtime_mode"`
	AccountSecret      string         `json:"account_secret"`
}

// parseJson overlays values from the file named by -c/-config. Keys absent
// from the file keep their current values. An unreadable or malformed file
// panics.
func parseJson(cfg *Config) {
	path := flagx.JSONConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.LiveBaseURL, jc.LiveBaseURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.RealtimeMode, jc.RealtimeMode)
	setString(&cfg.AccountSecret, jc.AccountSecret)

	if jc.PollInterval.Duration > 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
