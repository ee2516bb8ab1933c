package config

import (
	"testing"

	"github.com/spf13/viper"
)

// TestNewLogger verifies logger construction for each level/format combination.
func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "json info", level: "info", format: "json"},
		{name: "console debug", level: "debug", format: "console"},
		{name: "default format", level: "warn", format: ""},
		{name: "invalid level", level: "loud", format: "json", wantErr: true},
		{name: "invalid format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("logging.level", tt.level)
			v.Set("logging.format", tt.format)

			logger, err := NewLogger(v)
			if tt.wantErr {
				if err == nil {
					t.Error("NewLogger() returned nil error, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger() error: %v", err)
			}
			if logger == nil {
				t.Error("NewLogger() returned nil logger")
			}
		})
	}
}

// TestLoadDefaults verifies that Load supplies sane defaults without a config file.
func TestLoadDefaults(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := v.GetInt("server.port"); got != 8080 {
		t.Errorf("server.port = %d, want 8080", got)
	}
	if got := v.GetString("agent.path"); got != "/agent" {
		t.Errorf("agent.path = %q, want %q", got, "/agent")
	}
	if got := v.GetInt("license.max_devices"); got != 25 {
		t.Errorf("license.max_devices = %d, want 25", got)
	}
}
