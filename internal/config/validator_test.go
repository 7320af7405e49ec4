package config

import (
	"strings"
	"testing"
)

// validConfig returns a defaulted Config that passes validation.
func validConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_DefaultConfig(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad bind address",
			mutate:  func(c *Config) { c.Server.BindAddresses = []string{"localhost"} },
			wantErr: "must be a valid host:port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "must be one of",
		},
		{
			name:    "bad request timeout",
			mutate:  func(c *Config) { c.Server.RequestTimeout = "soon" },
			wantErr: "must be a duration",
		},
		{
			name:    "negative read timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = "-1s" },
			wantErr: "must be a duration",
		},
		{
			name:    "negative max connections",
			mutate:  func(c *Config) { c.Server.MaxConnections = -1 },
			wantErr: "must be at least 0",
		},
		{
			name:    "negative batch concurrency",
			mutate:  func(c *Config) { c.Server.BatchConcurrency = -2 },
			wantErr: "must be at least 0",
		},
		{
			name:    "unknown cors mode",
			mutate:  func(c *Config) { c.Cors.Mode = "some" },
			wantErr: "must be one of",
		},
		{
			name:    "cors only without origins",
			mutate:  func(c *Config) { c.Cors.Mode = "only" },
			wantErr: "requires at least one origin",
		},
		{
			name: "hosts only without hosts",
			mutate: func(c *Config) {
				c.AllowedHosts.Mode = "only"
				c.AllowedHosts.Hosts = nil
			},
			wantErr: "requires at least one host",
		},
		{
			name:    "empty host entry",
			mutate:  func(c *Config) { c.AllowedHosts.Hosts = []string{""} },
			wantErr: "is required",
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
			},
			wantErr: "requires an endpoint",
		},
		{
			name:    "sample ratio above one",
			mutate:  func(c *Config) { c.Tracing.SampleRatio = 1.5 },
			wantErr: "must be at most 1",
		},
		{
			name:    "bad metrics address",
			mutate:  func(c *Config) { c.Metrics.Addr = "nowhere" },
			wantErr: "must be a valid host:port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ZeroDurations(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Server.RequestTimeout = "0s"
	cfg.Server.ReadTimeout = "0"
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero durations should be valid: %v", err)
	}
}
