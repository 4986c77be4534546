// Package config loads the matching engine's read-only configuration
// surface (spec.md §6) from environment variables and an optional file,
// via spf13/viper — attested across the pack (gochain, polymarket-mm,
// gocryptotrader) as the idiomatic way these repos load config; the
// teacher itself has no config layer at all.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full, read-once-at-startup configuration surface
// spec.md §6 names.
type Config struct {
	FixListenPort       int
	MarketDataPort      int
	PublishInterval     time.Duration
	Symbols             []string
	MaxDepthLevels      int
	VerboseMatchLog     bool
	WorkerPoolSize      int
	HeartbeatInterval   time.Duration
	SenderCompID        string
	TargetCompID        string
}

// Load reads configuration from environment variables prefixed
// MATCHENGINE_ and an optional YAML file at path (pass "" to skip the
// file), falling back to spec.md's documented defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("MATCHENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("fix_listen_port", 5001)
	v.SetDefault("market_data_port", 5002)
	v.SetDefault("publish_interval_ms", 100)
	v.SetDefault("symbols", "AAPL,MSFT,GOOGL,TSLA")
	v.SetDefault("max_depth_levels", 10)
	v.SetDefault("verbose_match_log", false)
	v.SetDefault("worker_pool_size", 4)
	v.SetDefault("heartbeat_interval_ms", 30000)
	v.SetDefault("sender_comp_id", "MATCHENGINE")
	v.SetDefault("target_comp_id", "CLIENT")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	symbols := splitSymbols(v.GetString("symbols"))

	return &Config{
		FixListenPort:     v.GetInt("fix_listen_port"),
		MarketDataPort:    v.GetInt("market_data_port"),
		PublishInterval:   time.Duration(v.GetInt("publish_interval_ms")) * time.Millisecond,
		Symbols:           symbols,
		MaxDepthLevels:    v.GetInt("max_depth_levels"),
		VerboseMatchLog:   v.GetBool("verbose_match_log"),
		WorkerPoolSize:    v.GetInt("worker_pool_size"),
		HeartbeatInterval: time.Duration(v.GetInt("heartbeat_interval_ms")) * time.Millisecond,
		SenderCompID:      v.GetString("sender_comp_id"),
		TargetCompID:      v.GetString("target_comp_id"),
	}, nil
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
