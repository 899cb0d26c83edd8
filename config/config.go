// Package config loads the gateway's environment-sourced configuration,
// following the defaults/validate layering shown in the pack's
// Projectsrxg-kalshi_v2 internal/config package (the teacher itself has no
// config-loading package: its utils/config.go configures an outbound HTTP
// client, a different concern).
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for every setting Load resolves.
const (
	DefaultGatewayHost       = "127.0.0.1"
	DefaultGatewayPort       = 4001
	DefaultListenHost        = "127.0.0.1"
	DefaultListenPort        = 5000
	DefaultPoolSize          = 8
	DefaultPollTimeoutIters  = 20
)

// Config is the gateway's fully resolved, immutable runtime configuration.
type Config struct {
	GatewayHost      string
	GatewayPort      int
	ListenHost       string
	ListenPort       int
	PoolSize         int
	PollTimeoutIters int
}

// Load reads every variable from the environment, substituting the
// documented default for anything unset.
func Load() (Config, error) {
	cfg := Config{
		GatewayHost:      getEnv("GATEWAY_HOST", DefaultGatewayHost),
		ListenHost:       getEnv("LISTEN_HOST", DefaultListenHost),
	}

	var err error
	if cfg.GatewayPort, err = getEnvInt("GATEWAY_PORT", DefaultGatewayPort); err != nil {
		return Config{}, err
	}
	if cfg.ListenPort, err = getEnvInt("LISTEN_PORT", DefaultListenPort); err != nil {
		return Config{}, err
	}
	if cfg.PoolSize, err = getEnvInt("POOL_SIZE", DefaultPoolSize); err != nil {
		return Config{}, err
	}
	if cfg.PollTimeoutIters, err = getEnvInt("POLL_TIMEOUT_ITERS", DefaultPollTimeoutIters); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the resolved Config is internally consistent: ports in
// range and a pool large enough to hold the reserved order client plus at
// least one read client.
func (c Config) Validate() error {
	if c.GatewayPort <= 0 || c.GatewayPort > 65535 {
		return fmt.Errorf("GATEWAY_PORT %d out of range", c.GatewayPort)
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("LISTEN_PORT %d out of range", c.ListenPort)
	}
	if c.PoolSize < 2 {
		return fmt.Errorf("POOL_SIZE %d must be at least 2 (1 reserved order client + >=1 read client)", c.PoolSize)
	}
	if c.PollTimeoutIters < 1 {
		return fmt.Errorf("POLL_TIMEOUT_ITERS %d must be at least 1", c.PollTimeoutIters)
	}
	return nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not an integer: %w", name, v, err)
	}
	return n, nil
}
