package db

import "testing"

func TestMongoDatabaseName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"mongodb://localhost:27017", DefaultDatabase},
		{"mongodb://localhost:27017/", DefaultDatabase},
		{"mongodb://localhost:27017/shop", "shop"},
		{"mongodb://user:pw@h1:27017,h2:27017/shop?replicaSet=rs0", "shop"},
		{"mongodb+srv://cluster.example.net/bench?retryWrites=true", "bench"},
		{"mongodb://localhost/admin", DefaultDatabase},
	}

	for _, tt := range tests {
		if got := MongoDatabaseName(tt.url); got != tt.want {
			t.Errorf("MongoDatabaseName(%q): expected %q, got %q", tt.url, tt.want, got)
		}
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()
	if cfg.MaxConns < cfg.MinConns {
		t.Errorf("Expected MaxConns >= MinConns, got %d < %d", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.MaxConnLifetime <= 0 {
		t.Error("MaxConnLifetime should be positive")
	}
}

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name     string
		maxConns int32
		want     int32
	}{
		{"explicit", 6, 6},
		{"one", 1, 1},
		{"zero selects default", 0, DefaultPoolConfig().MaxConns},
		{"negative selects default", -3, DefaultPoolConfig().MaxConns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := poolConfig("postgres://bench@localhost:5432/storebench", tt.maxConns)
			if err != nil {
				t.Fatalf("poolConfig failed: %v", err)
			}
			if cfg.MaxConns != tt.want {
				t.Errorf("Expected MaxConns %d, got %d", tt.want, cfg.MaxConns)
			}
			if cfg.MinConns > cfg.MaxConns {
				t.Errorf("Expected MinConns <= MaxConns, got %d > %d", cfg.MinConns, cfg.MaxConns)
			}
			if cfg.ConnConfig.Database != "storebench" {
				t.Errorf("Expected database storebench, got %s", cfg.ConnConfig.Database)
			}
		})
	}

	if _, err := poolConfig("postgres://bad host:port", 1); err == nil {
		t.Error("Expected error for invalid connection string, got nil")
	}
}
