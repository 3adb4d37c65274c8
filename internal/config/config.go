// Package config loads tempokv's server settings from environment
// variables with defaults, optionally overlaid by a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything cmd/tempokvd needs to start the server.
type Config struct {
	Env string

	ListenAddr      string
	AdminAddr       string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration

	// MaxFrameBytes bounds a single request frame's declared length,
	// guarding against a client sending an unreasonable length prefix.
	MaxFrameBytes int

	// ExpirerTick caps a single timed wait of the expirer for a pending
	// deadline; with an empty heap it waits until signaled.
	ExpirerTick time.Duration

	LogLevel string
}

// fileOverlay is the optional YAML file shape; every field is a pointer so
// an absent key in the file leaves the env-derived default untouched.
type fileOverlay struct {
	Env             *string `yaml:"env"`
	ListenAddr      *string `yaml:"listen_addr"`
	AdminAddr       *string `yaml:"admin_addr"`
	ShutdownTimeout *string `yaml:"shutdown_timeout"`
	ReadTimeout     *string `yaml:"read_timeout"`
	WriteTimeout    *string `yaml:"write_timeout"`
	MaxFrameBytes   *int    `yaml:"max_frame_bytes"`
	ExpirerTick     *string `yaml:"expirer_tick"`
	LogLevel        *string `yaml:"log_level"`
}

// Load builds a Config from environment variables, then applies an
// optional YAML file named by the TEMPOKV_CONFIG_FILE env var on top.
// File values only replace a setting the file actually names; everything
// else keeps its environment-derived value.
func Load() (Config, error) {
	c := fromEnv()

	path := strings.TrimSpace(os.Getenv("TEMPOKV_CONFIG_FILE"))
	if path == "" {
		return c, nil
	}
	overlay, err := readOverlay(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	applyOverlay(&c, overlay)
	return c, nil
}

func fromEnv() Config {
	return Config{
		Env:             getenv("TEMPOKV_ENV", "local"),
		ListenAddr:      getenv("TEMPOKV_ADDR", "0.0.0.0:6380"),
		AdminAddr:       getenv("TEMPOKV_ADMIN_ADDR", "0.0.0.0:6381"),
		ShutdownTimeout: getenvDuration("TEMPOKV_SHUTDOWN_TIMEOUT", 10*time.Second),
		ReadTimeout:     getenvDuration("TEMPOKV_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getenvDuration("TEMPOKV_WRITE_TIMEOUT", 30*time.Second),
		MaxFrameBytes:   getenvInt("TEMPOKV_MAX_FRAME_BYTES", 1<<20),
		ExpirerTick:     getenvDuration("TEMPOKV_EXPIRER_TICK", 5*time.Second),
		LogLevel:        getenv("TEMPOKV_LOG_LEVEL", "info"),
	}
}

func readOverlay(path string) (fileOverlay, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return fileOverlay{}, err
	}
	var o fileOverlay
	if err := yaml.Unmarshal(b, &o); err != nil {
		return fileOverlay{}, err
	}
	return o, nil
}

func applyOverlay(c *Config, o fileOverlay) {
	if o.Env != nil {
		c.Env = strings.TrimSpace(*o.Env)
	}
	if o.ListenAddr != nil {
		c.ListenAddr = strings.TrimSpace(*o.ListenAddr)
	}
	if o.AdminAddr != nil {
		c.AdminAddr = strings.TrimSpace(*o.AdminAddr)
	}
	if o.ShutdownTimeout != nil {
		if d, err := time.ParseDuration(*o.ShutdownTimeout); err == nil {
			c.ShutdownTimeout = d
		}
	}
	if o.ReadTimeout != nil {
		if d, err := time.ParseDuration(*o.ReadTimeout); err == nil {
			c.ReadTimeout = d
		}
	}
	if o.WriteTimeout != nil {
		if d, err := time.ParseDuration(*o.WriteTimeout); err == nil {
			c.WriteTimeout = d
		}
	}
	if o.MaxFrameBytes != nil {
		c.MaxFrameBytes = *o.MaxFrameBytes
	}
	if o.ExpirerTick != nil {
		if d, err := time.ParseDuration(*o.ExpirerTick); err == nil {
			c.ExpirerTick = d
		}
	}
	if o.LogLevel != nil {
		c.LogLevel = strings.TrimSpace(*o.LogLevel)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
