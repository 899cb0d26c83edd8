package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GatewayHost != DefaultGatewayHost || cfg.GatewayPort != DefaultGatewayPort {
		t.Fatalf("gateway addr = %s:%d, want %s:%d", cfg.GatewayHost, cfg.GatewayPort, DefaultGatewayHost, DefaultGatewayPort)
	}
	if cfg.PoolSize != DefaultPoolSize {
		t.Fatalf("PoolSize = %d, want %d", cfg.PoolSize, DefaultPoolSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_HOST", "10.0.0.5")
	t.Setenv("GATEWAY_PORT", "4002")
	t.Setenv("POOL_SIZE", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GatewayHost != "10.0.0.5" || cfg.GatewayPort != 4002 || cfg.PoolSize != 4 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidate_RejectsUndersizedPool(t *testing.T) {
	cfg := Config{GatewayHost: "h", GatewayPort: 1, ListenHost: "h", ListenPort: 1, PoolSize: 1, PollTimeoutIters: 20}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate should reject PoolSize=1")
	}
}

func TestLoad_RejectsNonIntegerPort(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a non-integer GATEWAY_PORT")
	}
}
