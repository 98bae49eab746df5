package cli

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/pkg/adapters/process"
	"github.com/aretw0/parley/pkg/adapters/script"
	"github.com/aretw0/parley/pkg/engine"
)

// createEngineFactory resolves the configured engine kind. File-backed engines are loaded
// here so a broken script fails before anything is served.
func createEngineFactory(cfg config.EngineConfig) (engine.Factory, error) {
	switch cfg.Kind {
	case "", config.EngineEcho:
		return engine.NewEcho, nil

	case config.EngineScript:
		var opts script.Options
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("script engine options: %w", err)
		}
		if opts.Path == "" {
			return nil, errors.New("script engine needs options.path")
		}
		s, err := script.Load(opts.Path)
		if err != nil {
			return nil, err
		}
		return script.NewFactory(s), nil

	case config.EngineProcess:
		var pc process.Config
		if err := decodeOptions(cfg.Options, &pc); err != nil {
			return nil, fmt.Errorf("process engine options: %w", err)
		}
		return process.NewFactory(pc), nil

	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
	}
}

// decodeOptions maps the free-form engine options onto out. Durations may be written as
// strings ("30s") and unknown keys are errors.
func decodeOptions(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
