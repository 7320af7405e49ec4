package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for rpcgate.yaml/.yml in standard locations.
// The search requires an explicit YAML extension so the rpcgate binary
// itself never matches.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// Name/type without search paths makes ReadInConfig return
		// ConfigFileNotFoundError, which callers tolerate.
		viper.SetConfigName("rpcgate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: RPCGATE_SERVER_LOG_LEVEL
	viper.SetEnvPrefix("RPCGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an rpcgate config file.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".rpcgate"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "rpcgate"))
		}
	} else {
		paths = append(paths, "/etc/rpcgate")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for rpcgate.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "rpcgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment variable support.
// Example: RPCGATE_SERVER_REQUEST_TIMEOUT overrides server.request_timeout
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.bind_addresses")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.request_timeout")
	_ = viper.BindEnv("server.read_timeout")
	_ = viper.BindEnv("server.shutdown_timeout")
	_ = viper.BindEnv("server.max_body_bytes")
	_ = viper.BindEnv("server.max_connections")
	_ = viper.BindEnv("server.batch_concurrency")
	_ = viper.BindEnv("server.strict_content_type")

	// Lists given through the environment are comma separated.
	_ = viper.BindEnv("cors.mode")
	_ = viper.BindEnv("cors.origins")
	_ = viper.BindEnv("allowed_hosts.mode")
	_ = viper.BindEnv("allowed_hosts.hosts")

	_ = viper.BindEnv("metrics.enabled")
	_ = viper.BindEnv("metrics.addr")
	_ = viper.BindEnv("tracing.enabled")
	_ = viper.BindEnv("tracing.exporter")
	_ = viper.BindEnv("tracing.endpoint")
	_ = viper.BindEnv("tracing.insecure")
	_ = viper.BindEnv("tracing.sample_ratio")
	_ = viper.BindEnv("tracing.metrics")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the validated Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file: run on environment variables and defaults.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
