package config

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Sentinel-Gate/rpcgate/pkg/rpchttp"
)

// CorsPolicy returns the transport CORS policy for the configured mode.
func (c *Config) CorsPolicy() rpchttp.CorsPolicy {
	switch c.Cors.Mode {
	case "all":
		return rpchttp.CorsAllowAll()
	case "only":
		return rpchttp.CorsAllowOnly(c.Cors.Origins...)
	default:
		return rpchttp.CorsDisabled()
	}
}

// HostWhitelist returns the transport host whitelist. A "*" entry in
// hosts switches to allow-all.
func (c *Config) HostWhitelist() rpchttp.HostWhitelist {
	if c.AllowedHosts.Mode == "all" || slices.Contains(c.AllowedHosts.Hosts, "*") {
		return rpchttp.AllowAllHosts()
	}
	return rpchttp.AllowOnlyHosts(c.AllowedHosts.Hosts...)
}

// LogLevel returns the slog level for server.log_level.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ServerOptions converts the configuration into transport options.
// Logger, metrics and tracing are wired by the caller.
func (c *Config) ServerOptions() []rpchttp.Option {
	opts := []rpchttp.Option{
		rpchttp.WithCors(c.CorsPolicy()),
		rpchttp.WithAllowedHosts(c.HostWhitelist()),
		rpchttp.WithRequestTimeout(parseDuration(c.Server.RequestTimeout, 30*time.Second)),
		rpchttp.WithReadTimeout(parseDuration(c.Server.ReadTimeout, 30*time.Second)),
		rpchttp.WithMaxConnections(c.Server.MaxConnections),
		rpchttp.WithBatchConcurrency(c.Server.BatchConcurrency),
	}
	for _, addr := range c.Server.BindAddresses {
		opts = append(opts, rpchttp.WithBindAddress(addr))
	}
	if c.Server.MaxBodyBytes > 0 {
		opts = append(opts, rpchttp.WithMaxBodyBytes(c.Server.MaxBodyBytes))
	}
	if c.Server.StrictContentType {
		opts = append(opts, rpchttp.WithStrictContentType())
	}
	return opts
}
