// Package config loads FleetGate configuration via Viper and builds the
// process-wide Zap logger from it.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables.
// When configPath is empty, fleetgate.yaml is searched in ., ./configs,
// and /etc/fleetgate. Environment overrides use the FG_ prefix,
// e.g. FG_SERVER_PORT=9090.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/fleetgate.db")

	// Agent channel defaults
	v.SetDefault("agent.path", "/agent")
	v.SetDefault("agent.max_message_bytes", 1<<20)
	v.SetDefault("agent.write_queue_size", 64)
	v.SetDefault("agent.write_timeout", "10s")

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h")

	// Session defaults
	v.SetDefault("sessions.inactivity_threshold", "30m")
	v.SetDefault("sessions.sweep_interval", "5m")

	// License defaults (development edition)
	v.SetDefault("license.max_devices", 25)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("fleetgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fleetgate")
	}

	v.SetEnvPrefix("FG")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
