package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. Only the flags
// listed in the package doc are looked at. A non-positive poll interval or an
// unknown realtime mode panics.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-i", "-d", "-m", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.LiveBaseURL, "w", cfg.LiveBaseURL, "live endpoint base URL")
	pollInterval := fs.Int("i", int(cfg.PollInterval.Seconds()), "polling interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.RealtimeMode, "m", cfg.RealtimeMode, "realtime mode (auto, push, poll)")
	fs.StringVar(&cfg.AccountSecret, "s", cfg.AccountSecret, "account secret")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *pollInterval <= 0 {
		panic(fmt.Errorf("poll interval must be positive, got %d", *pollInterval))
	}
	cfg.PollInterval = time.Duration(*pollInterval) * time.Second

	if err := validMode(cfg.RealtimeMode); err != nil {
		panic(err)
	}
}

func validMode(m string) error {
	switch m {
	case ModeAuto, ModePush, ModePoll:
		return nil
	}
	return fmt.Errorf("unknown realtime mode %q", m)
}
