// Package config loads runtime configuration for the QuickChat terminal
// client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-w string   base URL of the live websocket endpoint
//	-i int      polling interval (seconds)
//	-d string   path of the local database
//	-m string   realtime mode: auto, push or poll
//	-s string   account secret of this device
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "live_base_url": "ws://127.0.0.1:8080",
//	  "poll_interval": "3s",
//	  "database_path": "quickchat.db",
//	  "realtime_mode": "auto",
//	  "account_secret": "..."
//	}
package config
