package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/plant"
)

// loadConfig builds the effective configuration: preset, then config file,
// then command line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		var err error
		cfg, err = config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("cycle-ms") {
		cfg.CycleTimeMs = cycleMs
	}
	if flags.Changed("cycles") {
		n, err := flags.GetInt("cycles")
		if err != nil {
			return nil, err
		}
		cfg.Cycles = n
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}
	if flags.Changed("addr") {
		cfg.HTTP.Addr = httpAddr
	}
	if flags.Changed("brokers") {
		cfg.Kafka.Brokers = brokers
	}
	if flags.Changed("mqtt") {
		cfg.MQTT.Broker = mqttURL
	}
	return cfg, cfg.Validate()
}

// newPlant builds the plant and applies the --set writes.
func newPlant(cfg *config.Config, logger *slog.Logger) (*plant.Plant, error) {
	p, err := plant.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	for _, s := range sets {
		id, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: want point=value", s)
		}
		if err := p.Write(strings.TrimSpace(id), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func presetName() string {
	if preset == "" {
		return "default"
	}
	return preset
}

func vesselHeight(cfg *config.Config) float64 {
	k := cfg.Separator.Constants
	return k.TotalVolume / k.Area
}
