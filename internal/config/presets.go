package config

import (
	"sort"

	"github.com/san-kum/fieldsim/internal/physics"
)

// Presets are overlays applied on top of DefaultConfig.
var Presets = map[string]func(*Config){
	"default": func(*Config) {},
	"choked_gas": func(c *Config) {
		c.Separator.Initial.Pressure = 400000
		c.Separator.Inputs.ValveGas = 60
	},
	"sticky_valve": func(c *Config) {
		c.Valve.ErrorModel.Enabled = true
		c.Valve.ErrorModel.StictionThreshold = 2.0
		c.Valve.ErrorModel.DeadTime = 0.5
		c.Valve.ErrorModel.Hysteresis = 1.0
		c.Valve.ErrorModel.PositionerError = 2.0
	},
	"flow_control": func(c *Config) {
		c.Valve.Inputs.Characteristic = physics.Linear
		c.Valve.Auto.Enabled = true
		c.Valve.Auto.Setpoint = 5.0
	},
	"esd_latching": func(c *Config) {
		c.Actuator.ESDLatching = true
		c.Actuator.TravelTimeMs = 2000
	},
	"transmitter_sine": func(c *Config) {
		c.Transmitter.SimulationActive = true
		c.Transmitter.SetSineWave(true)
	},
	"transmitter_overflow": func(c *Config) {
		c.Transmitter.SimulationActive = true
		c.Transmitter.SetOverflow(true)
	},
}

// GetPreset returns a fresh config with the named preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
