package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsFromEnv(t *testing.T) {
	os.Unsetenv("TEMPOKV_CONFIG_FILE")
	os.Setenv("TEMPOKV_ADDR", "127.0.0.1:7000")
	defer os.Unsetenv("TEMPOKV_ADDR")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ListenAddr != "127.0.0.1:7000" {
		t.Fatalf("ListenAddr = %q", c.ListenAddr)
	}
	if c.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout default = %v", c.ShutdownTimeout)
	}
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tempokv.yaml")
	body := "listen_addr: \"0.0.0.0:9999\"\nlog_level: \"debug\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	os.Setenv("TEMPOKV_CONFIG_FILE", path)
	defer os.Unsetenv("TEMPOKV_CONFIG_FILE")
	os.Setenv("TEMPOKV_ADMIN_ADDR", "0.0.0.0:6381")
	defer os.Unsetenv("TEMPOKV_ADMIN_ADDR")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ListenAddr != "0.0.0.0:9999" {
		t.Fatalf("ListenAddr = %q, want overlay value", c.ListenAddr)
	}
	if c.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want overlay value", c.LogLevel)
	}
	if c.AdminAddr != "0.0.0.0:6381" {
		t.Fatalf("AdminAddr = %q, want env value untouched by overlay", c.AdminAddr)
	}
}
