package transmitter

import (
	"fmt"
	"math"

	"github.com/san-kum/fieldsim/internal/dynamo"
)

const (
	WaveFrequency  = 0.1  // Hz
	SawtoothPeriod = 10.0 // s

	MinStepSize = 0.1
	MaxStepSize = 10.0
)

// Config is the writable side of a transmitter. The waveform and forcing
// flags come in exclusive pairs; use the setters to keep them consistent.
type Config struct {
	MinRange         float64 `yaml:"min_range"`
	MaxRange         float64 `yaml:"max_range"`
	MinScale         float64 `yaml:"min_scale"`
	MaxScale         float64 `yaml:"max_scale"`
	StepSize         float64 `yaml:"step_size"`
	SimulationActive bool    `yaml:"simulation_active"`
	SineWave         bool    `yaml:"sine_wave"`
	SawtoothWave     bool    `yaml:"sawtooth_wave"`
	Overflow         bool    `yaml:"overflow"`
	Underflow        bool    `yaml:"underflow"`
}

func DefaultConfig() Config {
	return Config{
		MinRange:     0,
		MaxRange:     100,
		MinScale:     -5,
		MaxScale:     105,
		StepSize:     1,
		SawtoothWave: true,
	}
}

func (c *Config) SetSineWave(on bool) {
	c.SineWave = on
	if on {
		c.SawtoothWave = false
	}
}

func (c *Config) SetSawtoothWave(on bool) {
	c.SawtoothWave = on
	if on {
		c.SineWave = false
	}
}

func (c *Config) SetOverflow(on bool) {
	c.Overflow = on
	if on {
		c.Underflow = false
	}
}

func (c *Config) SetUnderflow(on bool) {
	c.Underflow = on
	if on {
		c.Overflow = false
	}
}

func (c *Config) SetStepSize(v float64) error {
	if v < MinStepSize || v > MaxStepSize || math.IsNaN(v) {
		return fmt.Errorf("%w: step_size %g not in [%g, %g]", dynamo.ErrParameterBounds, v, MinStepSize, MaxStepSize)
	}
	c.StepSize = v
	return nil
}

func (c Config) Validate() error {
	if c.MaxRange <= c.MinRange {
		return fmt.Errorf("%w: max_range %g must exceed min_range %g", dynamo.ErrParameterBounds, c.MaxRange, c.MinRange)
	}
	if c.MaxScale <= c.MinScale {
		return fmt.Errorf("%w: max_scale %g must exceed min_scale %g", dynamo.ErrParameterBounds, c.MaxScale, c.MinScale)
	}
	if c.StepSize < MinStepSize || c.StepSize > MaxStepSize {
		return fmt.Errorf("%w: step_size %g not in [%g, %g]", dynamo.ErrParameterBounds, c.StepSize, MinStepSize, MaxStepSize)
	}
	if c.SineWave && c.SawtoothWave {
		return fmt.Errorf("%w: sine_wave and sawtooth_wave are exclusive", dynamo.ErrParameterBounds)
	}
	if c.Overflow && c.Underflow {
		return fmt.Errorf("%w: overflow and underflow are exclusive", dynamo.ErrParameterBounds)
	}
	return nil
}

// State is the published output. Increasing is the ramp direction.
type State struct {
	CurrentValue   float64 `json:"current_value"`
	SimulationTime float64 `json:"simulation_time"`
	Fault          bool    `json:"fault"`
	Increasing     bool    `json:"increasing"`
}

func NewState() State {
	return State{Increasing: true}
}

func Sine(minRange, maxRange, t float64) float64 {
	return minRange + (maxRange-minRange)/2*(1+math.Sin(2*math.Pi*WaveFrequency*t))
}

func Sawtooth(minRange, maxRange, t float64) float64 {
	phase := math.Mod(t, SawtoothPeriod) / SawtoothPeriod
	return minRange + (maxRange-minRange)*phase
}

// Update advances the generator by dt seconds. An inactive transmitter is
// left untouched.
func Update(st *State, cfg Config, dt float64) {
	if !cfg.SimulationActive {
		return
	}
	st.SimulationTime += dt

	switch {
	case cfg.Overflow:
		st.CurrentValue = cfg.MaxScale
	case cfg.Underflow:
		st.CurrentValue = cfg.MinScale
	case cfg.SineWave:
		st.CurrentValue = Sine(cfg.MinRange, cfg.MaxRange, st.SimulationTime)
	case cfg.SawtoothWave:
		st.CurrentValue = Sawtooth(cfg.MinRange, cfg.MaxRange, st.SimulationTime)
	default:
		ramp(st, cfg)
	}

	st.Fault = st.CurrentValue < cfg.MinScale || st.CurrentValue > cfg.MaxScale
}

func ramp(st *State, cfg Config) {
	if st.Increasing {
		st.CurrentValue += cfg.StepSize
		if st.CurrentValue >= cfg.MaxRange {
			st.CurrentValue = cfg.MaxRange
			st.Increasing = false
		}
		return
	}
	st.CurrentValue -= cfg.StepSize
	if st.CurrentValue <= cfg.MinRange {
		st.CurrentValue = cfg.MinRange
		st.Increasing = true
	}
}
