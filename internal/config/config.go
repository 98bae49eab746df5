// Package config loads the server configuration file and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/parley/pkg/protocol"
	"github.com/aretw0/parley/pkg/runner"
)

// DefaultPath is read when no --config flag is given. Its absence is not an error.
const DefaultPath = "parley.yaml"

// Environment overrides.
const (
	EnvMaxInputSize = "PARLEY_MAX_INPUT_SIZE" // must match runner.EnvMaxInputSize
	EnvListen       = "PARLEY_LISTEN"
	EnvRedisAddr    = "PARLEY_REDIS_ADDR"
)

// Engine kinds.
const (
	EngineEcho    = "echo"
	EngineScript  = "script"
	EngineProcess = "process"
)

// Recorder kinds.
const (
	RecorderNone   = "none"
	RecorderMemory = "memory"
	RecorderRedis  = "redis"
)

type Config struct {
	// Listen is a TCP address. Empty means stdin/stdout.
	Listen   string         `yaml:"listen"`
	Engine   EngineConfig   `yaml:"engine"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Session  SessionConfig  `yaml:"session"`
	Recorder RecorderConfig `yaml:"recorder"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

type EngineConfig struct {
	Kind string `yaml:"kind"`
	// Options are decoded by the selected engine.
	Options map[string]any `yaml:"options"`
}

type ProtocolConfig struct {
	Framing     string `yaml:"framing"`
	Compat      bool   `yaml:"compat"`
	ExitKeyword string `yaml:"exit_keyword"`
	ReadyBanner string `yaml:"ready_banner"`
}

type SessionConfig struct {
	MaxInputSize int  `yaml:"max_input_size"`
	AutoApprove  bool `yaml:"auto_approve"`
}

type RecorderConfig struct {
	Kind  string      `yaml:"kind"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Engine: EngineConfig{Kind: EngineEcho},
		Protocol: ProtocolConfig{
			Framing:     string(protocol.FramingSentinel),
			ExitKeyword: runner.DefaultExitKeyword,
		},
		Session:  SessionConfig{MaxInputSize: runner.DefaultMaxInputSize},
		Recorder: RecorderConfig{Kind: RecorderNone},
		Log:      LogConfig{Format: "text"},
	}
}

// Load reads path over the defaults and applies environment overrides. An empty path reads
// DefaultPath if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg from the environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvMaxInputSize); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxInputSize, err)
		}
		cfg.Session.MaxInputSize = n
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		cfg.Listen = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		cfg.Recorder.Redis.Addr = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Engine.Kind {
	case EngineEcho, EngineScript, EngineProcess:
	default:
		return fmt.Errorf("unknown engine kind %q", c.Engine.Kind)
	}
	switch protocol.Framing(c.Protocol.Framing) {
	case protocol.FramingSentinel, protocol.FramingCBOR:
	default:
		return fmt.Errorf("unknown framing %q", c.Protocol.Framing)
	}
	if c.Protocol.Compat && protocol.Framing(c.Protocol.Framing) != protocol.FramingSentinel {
		return errors.New("compat mode needs sentinel framing")
	}
	if strings.TrimSpace(c.Protocol.ExitKeyword) == "" {
		return errors.New("exit keyword must not be empty")
	}
	if c.Session.MaxInputSize < 0 {
		return fmt.Errorf("negative max_input_size %d", c.Session.MaxInputSize)
	}
	switch c.Recorder.Kind {
	case "", RecorderNone, RecorderMemory:
	case RecorderRedis:
		if c.Recorder.Redis.Addr == "" {
			return errors.New("redis recorder needs an address")
		}
	default:
		return fmt.Errorf("unknown recorder kind %q", c.Recorder.Kind)
	}
	return nil
}
