package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/integrators"
	"github.com/san-kum/fieldsim/internal/onoff"
	"github.com/san-kum/fieldsim/internal/physics"
	"github.com/san-kum/fieldsim/internal/transmitter"
)

const (
	DefaultCycles      = 3000
	DefaultHTTPAddr    = ":8080"
	DefaultLogLevel    = "info"
	DefaultEveryCycles = 10
	DefaultKp          = 2.0
	DefaultKi          = 5.0
	DefaultKd          = 0.0
)

type Config struct {
	CycleTimeMs int                `yaml:"cycle_time_ms"`
	Cycles      int                `yaml:"cycles"`
	Integrator  string             `yaml:"integrator"`
	Separator   SeparatorConfig    `yaml:"separator"`
	Valve       ValveConfig        `yaml:"valve"`
	Actuator    onoff.Config       `yaml:"actuator"`
	Transmitter transmitter.Config `yaml:"transmitter"`
	HTTP        HTTPConfig         `yaml:"http"`
	Kafka       KafkaConfig        `yaml:"kafka"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	Log         LogConfig          `yaml:"log"`
}

type SeparatorConfig struct {
	Constants physics.SeparatorConstants `yaml:"constants"`
	Inputs    physics.SeparatorConfig    `yaml:"config"`
	Initial   InitialConfig              `yaml:"initial"`
}

type InitialConfig struct {
	HOil     float64 `yaml:"h_oil"`
	HWater   float64 `yaml:"h_water"`
	Pressure float64 `yaml:"pressure"`
}

type ValveConfig struct {
	Inputs     physics.ValveConfig `yaml:"config"`
	ErrorModel ErrorModelConfig    `yaml:"error_model"`
	Auto       AutoConfig          `yaml:"auto"`
}

// ErrorModelConfig switches the instrumentation error stage. When disabled
// the valve follows the bare characteristic.
type ErrorModelConfig struct {
	Enabled                 bool `yaml:"enabled"`
	physics.ValveErrorModel `yaml:",inline"`
}

type AutoConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Setpoint float64 `yaml:"setpoint"`
	Kp       float64 `yaml:"kp"`
	Ki       float64 `yaml:"ki"`
	Kd       float64 `yaml:"kd"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// KafkaConfig enables telemetry publishing and command consumption when
// Brokers is non-empty.
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	TelemetryTopic string   `yaml:"telemetry_topic"`
	CommandTopic   string   `yaml:"command_topic"`
	GroupID        string   `yaml:"group_id"`
	EveryCycles    int      `yaml:"every_cycles"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// MQTTConfig enables the MQTT bridge when Broker is set, e.g.
// "tcp://localhost:1883".
type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	TelemetryTopic string `yaml:"telemetry_topic"`
	CommandTopic   string `yaml:"command_topic"`
	QoS            byte   `yaml:"qos"`
	EveryCycles    int    `yaml:"every_cycles"`
}

func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		CycleTimeMs: dynamo.DefaultCycleTimeMs,
		Cycles:      DefaultCycles,
		Integrator:  "euler",
		Separator: SeparatorConfig{
			Constants: physics.DefaultSeparatorConstants(),
			Inputs:    physics.DefaultSeparatorConfig(),
			Initial: InitialConfig{
				HOil:     physics.DefaultHOil,
				HWater:   physics.DefaultHWater,
				Pressure: physics.DefaultPressure,
			},
		},
		Valve: ValveConfig{
			Inputs:     physics.DefaultValveConfig(),
			ErrorModel: ErrorModelConfig{ValveErrorModel: physics.DefaultValveErrorModel()},
			Auto: AutoConfig{
				Kp: DefaultKp,
				Ki: DefaultKi,
				Kd: DefaultKd,
			},
		},
		Actuator:    onoff.DefaultConfig(),
		Transmitter: transmitter.DefaultConfig(),
		HTTP:        HTTPConfig{Addr: DefaultHTTPAddr},
		Kafka: KafkaConfig{
			TelemetryTopic: "fieldsim.telemetry",
			CommandTopic:   "fieldsim.commands",
			GroupID:        "fieldsim",
			EveryCycles:    DefaultEveryCycles,
		},
		MQTT: MQTTConfig{
			ClientID:       "fieldsim",
			TelemetryTopic: "fieldsim/telemetry",
			CommandTopic:   "fieldsim/commands",
			EveryCycles:    DefaultEveryCycles,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over base, which is modified, and validates
// the result.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func bounds(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{dynamo.ErrParameterBounds}, args...)...)
}

func (c *Config) Validate() error {
	if err := dynamo.ValidateCycleTime(c.CycleTimeMs); err != nil {
		return err
	}
	if c.Cycles < 0 {
		return bounds("cycles must not be negative, got %d", c.Cycles)
	}
	if _, err := integrators.New(c.Integrator); err != nil {
		return err
	}
	if err := c.validateSeparator(); err != nil {
		return err
	}
	if err := c.validateValve(); err != nil {
		return err
	}
	if err := c.Actuator.Validate(); err != nil {
		return fmt.Errorf("actuator: %w", err)
	}
	if err := c.Transmitter.Validate(); err != nil {
		return fmt.Errorf("transmitter: %w", err)
	}
	if c.Kafka.Enabled() && c.Kafka.EveryCycles < 1 {
		return bounds("kafka.every_cycles must be at least 1, got %d", c.Kafka.EveryCycles)
	}
	if c.MQTT.Enabled() {
		if c.MQTT.EveryCycles < 1 {
			return bounds("mqtt.every_cycles must be at least 1, got %d", c.MQTT.EveryCycles)
		}
		if c.MQTT.QoS > 2 {
			return bounds("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}
	return nil
}

// namedValue keeps validation order, and so the first reported error, stable.
type namedValue struct {
	name  string
	value float64
}

func (c *Config) validateSeparator() error {
	k := c.Separator.Constants
	positive := []namedValue{
		{"area", k.Area},
		{"total_volume", k.TotalVolume},
		{"cd", k.Cd},
		{"valve_area_liquid", k.ValveAreaLiquid},
		{"valve_area_gas", k.ValveAreaGas},
		{"ambient_pressure", k.AmbientPressure},
		{"molar_mass", k.MolarMass},
		{"gas_constant", k.GasConstant},
		{"temperature", k.Temperature},
		{"min_gas_volume", k.MinGasVolume},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return bounds("separator.constants.%s must be positive, got %g", p.name, p.value)
		}
	}
	if k.Gamma <= 1 {
		return bounds("separator.constants.gamma must exceed 1, got %g", k.Gamma)
	}
	if k.MaxPressure <= k.AmbientPressure {
		return bounds("separator.constants.max_pressure %g must exceed ambient %g", k.MaxPressure, k.AmbientPressure)
	}

	in := c.Separator.Inputs
	if in.QInOil < 0 || in.QInWater < 0 || in.QInGas < 0 {
		return bounds("separator inflows must not be negative")
	}
	openings := []namedValue{{"valve_oil", in.ValveOil}, {"valve_water", in.ValveWater}, {"valve_gas", in.ValveGas}}
	for _, o := range openings {
		if o.value < 0 || o.value > 100 {
			return bounds("separator.config.%s %g not in [0, 100]", o.name, o.value)
		}
	}

	start := c.Separator.Initial
	if start.HOil < 0 || start.HWater < 0 || start.HOil+start.HWater > k.TotalVolume/k.Area {
		return bounds("separator initial levels %g + %g exceed vessel", start.HOil, start.HWater)
	}
	if start.Pressure < k.AmbientPressure || start.Pressure > k.MaxPressure {
		return bounds("separator initial pressure %g not in [%g, %g]", start.Pressure, k.AmbientPressure, k.MaxPressure)
	}
	return nil
}

func (c *Config) validateValve() error {
	v := c.Valve.Inputs
	if v.ControlSignal < 0 || v.ControlSignal > 100 {
		return bounds("valve.config.control_signal %g not in [0, 100]", v.ControlSignal)
	}
	if v.UpstreamPressure <= 0 {
		return bounds("valve.config.upstream_pressure must be positive, got %g", v.UpstreamPressure)
	}
	if v.Kv <= 0 {
		return bounds("valve.config.kv must be positive, got %g", v.Kv)
	}
	em := c.Valve.ErrorModel
	if em.StictionThreshold < 0 || em.DeadTime < 0 || em.Hysteresis < 0 || em.PositionerError < 0 {
		return bounds("valve.error_model parameters must not be negative")
	}
	if c.Valve.Auto.Setpoint < 0 {
		return bounds("valve.auto.setpoint must not be negative, got %g", c.Valve.Auto.Setpoint)
	}
	return nil
}
