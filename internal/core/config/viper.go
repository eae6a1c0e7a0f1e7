package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names bound by BindFlags. Flags win over env, env over file, file over defaults.
var flagKeys = map[string]string{
	"host":          "server.host",
	"port":          "server.port",
	"catalog":       "rules.catalog_file",
	"timeout":       "server.request_timeout",
	"max-conns":     "server.max_connections",
	"max-rule-size": "server.max_rule_bytes",
	"otlp-endpoint": "telemetry.otlp_endpoint",
}

// LoadConfig loads configuration from file, environment and any bound flags.
// flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*ServerConfig, error) {
	v := viper.New()

	def := DefaultServerConfig()
	v.SetDefault("server.host", def.Host)
	v.SetDefault("server.port", def.Port)
	v.SetDefault("server.max_connections", def.MaxConnections)
	v.SetDefault("server.request_timeout", def.RequestTimeout.String())
	v.SetDefault("server.max_rule_bytes", def.MaxRuleBytes)
	v.SetDefault("server.max_entity_bytes", def.MaxEntityBytes)
	v.SetDefault("rules.catalog_file", def.CatalogFile)
	v.SetDefault("telemetry.otlp_endpoint", def.MetricsEndpoint)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		MaxConnections: v.GetInt("server.max_connections"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		MaxRuleBytes:   v.GetInt("server.max_rule_bytes"),
		MaxEntityBytes: v.GetInt("server.max_entity_bytes"),
		CatalogFile:    v.GetString("rules.catalog_file"),

		MetricsEndpoint: v.GetString("telemetry.otlp_endpoint"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxRuleBytes <= 0 {
		return fmt.Errorf("max_rule_bytes must be positive, got %d", cfg.MaxRuleBytes)
	}
	if cfg.MaxEntityBytes <= 0 {
		return fmt.Errorf("max_entity_bytes must be positive, got %d", cfg.MaxEntityBytes)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets. InConfig looks at
// the file alone; IsSet would also see RK_HMAC_SECRET through AutomaticEnv.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use RK_HMAC_SECRET environment variable)")
	}
	return nil
}
