package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.StreamAddr != ":9100" {
		t.Errorf("StreamAddr = %q, want %q", cfg.StreamAddr, ":9100")
	}
	if cfg.ScreenID != 0 {
		t.Errorf("ScreenID = %d, want 0", cfg.ScreenID)
	}
	if cfg.DBPath != "" {
		t.Errorf("DBPath = %q, want empty", cfg.DBPath)
	}
}

func TestLoad_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("DARPAN_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("DARPAN_STREAM_ADDR", "127.0.0.1:9101")
	t.Setenv("DARPAN_SCREEN_ID", "2")
	t.Setenv("DARPAN_DB_PATH", "/tmp/darpan.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, "127.0.0.1:9999")
	}
	if cfg.StreamAddr != "127.0.0.1:9101" {
		t.Errorf("StreamAddr = %q, want %q", cfg.StreamAddr, "127.0.0.1:9101")
	}
	if cfg.ScreenID != 2 {
		t.Errorf("ScreenID = %d, want 2", cfg.ScreenID)
	}
	if cfg.DBPath != "/tmp/darpan.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/darpan.db")
	}
}

func TestLoad_ValidationError(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("DARPAN_SCREEN_ID", "-1")

	cfg, err := Load()
	if err == nil {
		t.Fatalf("Load() = %+v, want validation error", cfg)
	}
}
