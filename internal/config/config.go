// Package config provides configuration types for the rpcgate server.
//
// The schema mirrors the transport's options: where the server binds,
// which hosts and origins it accepts, how long calls may run, and which
// operational endpoints are exposed next to it. TLS is not configurable;
// terminate it in a reverse proxy.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for rpcgate.
type Config struct {
	// Server configures the JSON-RPC listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Cors configures which request origins are echoed back.
	Cors CorsConfig `yaml:"cors" mapstructure:"cors"`

	// AllowedHosts configures the Host header whitelist.
	AllowedHosts AllowedHostsConfig `yaml:"allowed_hosts" mapstructure:"allowed_hosts"`

	// Metrics configures the operations endpoint (/health, /metrics).
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Tracing configures per-call spans.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// DevMode enables development features (debug logging, allow-all hosts).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the JSON-RPC listener.
type ServerConfig struct {
	// BindAddresses are the addresses to listen on.
	// Defaults to ["127.0.0.1:8545"] (localhost only) if empty.
	BindAddresses []string `yaml:"bind_addresses" mapstructure:"bind_addresses" validate:"omitempty,dive,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// RequestTimeout bounds each dispatched request (e.g., "30s").
	// "0s" disables the bound. Default: "30s".
	RequestTimeout string `yaml:"request_timeout" mapstructure:"request_timeout" validate:"omitempty,duration"`

	// ReadTimeout bounds reading a request head and body. Default: "30s".
	ReadTimeout string `yaml:"read_timeout" mapstructure:"read_timeout" validate:"omitempty,duration"`

	// ShutdownTimeout is how long a graceful stop waits for in-flight
	// requests before closing them. Default: "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty,duration"`

	// MaxBodyBytes caps request bodies. Default: 5MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gte=0"`

	// MaxConnections caps concurrently served connections. 0 means no cap.
	MaxConnections int `yaml:"max_connections" mapstructure:"max_connections" validate:"gte=0"`

	// BatchConcurrency caps how many calls of one batch run at once.
	// 0 selects the default of 32.
	BatchConcurrency int `yaml:"batch_concurrency" mapstructure:"batch_concurrency" validate:"gte=0"`

	// StrictContentType accepts only the exact value "application/json".
	StrictContentType bool `yaml:"strict_content_type" mapstructure:"strict_content_type"`
}

// CorsConfig configures the CORS policy.
type CorsConfig struct {
	// Mode is "disabled", "all" or "only". Default: "disabled".
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=disabled all only"`

	// Origins lists the accepted origins when Mode is "only".
	Origins []string `yaml:"origins" mapstructure:"origins" validate:"omitempty,dive,required"`
}

// AllowedHostsConfig configures the Host header whitelist.
type AllowedHostsConfig struct {
	// Mode is "all" or "only". Default: "only" with hosts
	// ["localhost", "127.0.0.1"]. The bound addresses and localhost on
	// the bound port are always accepted in "only" mode.
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=all only"`

	// Hosts lists extra accepted Host values (host or host:port).
	// A "*" entry accepts every host.
	Hosts []string `yaml:"hosts" mapstructure:"hosts" validate:"omitempty,dive,required"`
}

// MetricsConfig configures the operations endpoint.
type MetricsConfig struct {
	// Enabled starts the operations server. Default: true.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Addr is the operations listen address. Default: "127.0.0.1:9545".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// TracingConfig configures per-call spans and OpenTelemetry metrics.
type TracingConfig struct {
	// Enabled installs a tracer provider. Default: false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Exporter is "stdout" or "otlp". Default: "stdout".
	Exporter string `yaml:"exporter" mapstructure:"exporter" validate:"omitempty,oneof=stdout otlp"`

	// Endpoint is the OTLP/HTTP collector address (host:port), required
	// for the otlp exporter.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`

	// Insecure sends OTLP over plain HTTP.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`

	// SampleRatio is the fraction of root spans sampled. Default: 1.
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio" validate:"gte=0,lte=1"`

	// Metrics also exports OpenTelemetry call metrics to stdout.
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`
}

// SetDevDefaults applies permissive defaults for development mode.
// It is a no-op when DevMode is false.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
	// Explicit modes from the file or the environment win.
	if !viper.IsSet("allowed_hosts.mode") {
		c.AllowedHosts.Mode = "all"
	}
	if !viper.IsSet("cors.mode") {
		c.Cors.Mode = "all"
	}
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	// Bind to localhost only. Network access needs an explicit address.
	if len(c.Server.BindAddresses) == 0 {
		c.Server.BindAddresses = []string{"127.0.0.1:8545"}
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = "30s"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 5 << 20
	}

	if c.Cors.Mode == "" {
		c.Cors.Mode = "disabled"
	}
	if c.AllowedHosts.Mode == "" {
		c.AllowedHosts.Mode = "only"
		if len(c.AllowedHosts.Hosts) == 0 {
			c.AllowedHosts.Hosts = []string{"localhost", "127.0.0.1"}
		}
	}

	// viper.IsSet distinguishes "not set" from an explicit false.
	if !viper.IsSet("metrics.enabled") {
		c.Metrics.Enabled = true
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9545"
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if !viper.IsSet("tracing.sample_ratio") && c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

// ShutdownGrace returns the parsed shutdown timeout.
func (c *Config) ShutdownGrace() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// parseDuration parses s, falling back to def when s is empty or invalid.
// Validate rejects invalid values before they reach here.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
