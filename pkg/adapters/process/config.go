package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes the command run for every request.
type Config struct {
	Name    string            `yaml:"name" json:"name" mapstructure:"name"`
	Command string            `yaml:"command" json:"command" mapstructure:"command"`
	Args    []string          `yaml:"args" json:"args" mapstructure:"args"`
	Env     map[string]string `yaml:"env" json:"env" mapstructure:"env"`
	Dir     string            `yaml:"dir" json:"dir" mapstructure:"dir"`
	// Confirm, if set, is asked before each run. The request is its subject.
	Confirm             string        `yaml:"confirm" json:"confirm" mapstructure:"confirm"`
	ExplicitYesRequired bool          `yaml:"explicit_yes_required" json:"explicit_yes_required" mapstructure:"explicit_yes_required"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	// File points to a YAML or JSON file holding the rest of the configuration.
	File string `yaml:"-" json:"-" mapstructure:"file"`
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Command == "" {
		return errors.New("process engine needs a command")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.Timeout)
	}
	return nil
}

// DisplayName is Name, falling back to the command.
func (c Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return filepath.Base(c.Command)
}

// LoadConfig reads a configuration file (YAML or JSON).
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read process config: %w", err)
	}

	var cfg Config
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Resolve loads c.File, if set, with inline values taking precedence.
func (c Config) Resolve() (Config, error) {
	if c.File == "" {
		return c, nil
	}
	base, err := LoadConfig(c.File)
	if err != nil {
		return Config{}, err
	}
	if c.Name != "" {
		base.Name = c.Name
	}
	if c.Command != "" {
		base.Command = c.Command
		base.Args = c.Args
	}
	if c.Dir != "" {
		base.Dir = c.Dir
	}
	if c.Confirm != "" {
		base.Confirm = c.Confirm
		base.ExplicitYesRequired = c.ExplicitYesRequired
	}
	if c.Timeout != 0 {
		base.Timeout = c.Timeout
	}
	for k, v := range c.Env {
		if base.Env == nil {
			base.Env = make(map[string]string)
		}
		base.Env[k] = v
	}
	return base, nil
}
