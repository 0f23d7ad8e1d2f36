package physics

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/fieldsim/internal/dynamo"
)

const (
	// Rangeability of the equal-percentage trim.
	Rangeability = 50.0
	// DownstreamPressure is the fixed outlet reference in bar.
	DownstreamPressure = 1.0

	DefaultControlSignal    = 50.0
	DefaultUpstreamPressure = 5.0 // bar
	DefaultKv               = 10.0
	DefaultStiction         = 0.5
)

type Characteristic int

const (
	Linear Characteristic = iota
	EqualPercentage
)

func (c Characteristic) String() string {
	switch c {
	case Linear:
		return "linear"
	case EqualPercentage:
		return "equal_percentage"
	default:
		return fmt.Sprintf("characteristic(%d)", int(c))
	}
}

func ParseCharacteristic(s string) (Characteristic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "0":
		return Linear, nil
	case "equal_percentage", "equal-percentage", "eq%", "1":
		return EqualPercentage, nil
	}
	return Linear, fmt.Errorf("unknown valve characteristic: %q", s)
}

func (c Characteristic) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Characteristic) UnmarshalText(b []byte) error {
	v, err := ParseCharacteristic(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

type ValveConfig struct {
	ControlSignal    float64        `yaml:"control_signal"`
	UpstreamPressure float64        `yaml:"upstream_pressure"`
	Kv               float64        `yaml:"kv"`
	Characteristic   Characteristic `yaml:"characteristic"`
}

func DefaultValveConfig() ValveConfig {
	return ValveConfig{
		ControlSignal:    DefaultControlSignal,
		UpstreamPressure: DefaultUpstreamPressure,
		Kv:               DefaultKv,
		Characteristic:   EqualPercentage,
	}
}

// ValveErrorModel injects instrument errors between the control signal and
// the trim. LastControlSignal and LastUpdateTime are carried between cycles.
type ValveErrorModel struct {
	StictionThreshold float64 `yaml:"stiction_threshold"`
	DeadTime          float64 `yaml:"dead_time"`
	Hysteresis        float64 `yaml:"hysteresis"`
	PositionerError   float64 `yaml:"positioner_error"`

	LastControlSignal float64 `yaml:"-"`
	LastUpdateTime    float64 `yaml:"-"`
}

func DefaultValveErrorModel() ValveErrorModel {
	return ValveErrorModel{
		StictionThreshold: DefaultStiction,
		LastControlSignal: DefaultControlSignal,
	}
}

type ValveState struct {
	Opening float64 `json:"valve_opening"`
	Flow    float64 `json:"flow"`
}

// CharacteristicFraction maps an opening in percent to the fraction of rated
// capacity.
func CharacteristicFraction(c Characteristic, opening float64) float64 {
	if c == EqualPercentage {
		return (math.Pow(Rangeability, opening/100.0) - 1.0) / (Rangeability - 1.0)
	}
	return opening / 100.0
}

// ValveFlow is kv·f·sqrt(Δp) against the fixed downstream reference. A
// negative pressure drop gives zero flow.
func ValveFlow(kv, fraction, upstream float64) float64 {
	dp := math.Max(upstream-DownstreamPressure, 0)
	return math.Max(kv*fraction*math.Sqrt(dp), 0)
}

// UpdateValve computes opening and flow from the control signal. now is the
// simulation clock in seconds and only matters for the dead-time gate. With
// em nil or all error terms zero the opening equals the clamped signal.
func UpdateValve(st *ValveState, cfg ValveConfig, em *ValveErrorModel, now float64) {
	signal := dynamo.Clamp(cfg.ControlSignal, 0, 100)

	opening := signal
	if em != nil {
		if now-em.LastUpdateTime < em.DeadTime {
			return
		}
		em.LastUpdateTime = now

		if math.Abs(signal-em.LastControlSignal) < em.StictionThreshold {
			signal = em.LastControlSignal
		}

		hysteresis := 0.0
		if signal > em.LastControlSignal {
			hysteresis = em.Hysteresis
		} else if signal < em.LastControlSignal {
			hysteresis = -em.Hysteresis
		}
		em.LastControlSignal = signal

		signal = dynamo.Clamp(signal+hysteresis, 0, 100)
		opening = dynamo.Clamp(signal*(1.0+em.PositionerError/100.0), 0, 100)
	}

	st.Opening = opening
	st.Flow = ValveFlow(cfg.Kv, CharacteristicFraction(cfg.Characteristic, opening), cfg.UpstreamPressure)
}
