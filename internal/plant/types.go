package plant

import (
	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/onoff"
	"github.com/san-kum/fieldsim/internal/physics"
	"github.com/san-kum/fieldsim/internal/transmitter"
)

// Snapshot is the published state of every unit after one cycle.
type Snapshot struct {
	Cycle       dynamo.Cycle           `json:"cycle"`
	Separator   physics.SeparatorState `json:"separator"`
	Valve       physics.ValveState     `json:"valve"`
	ValveSignal float64                `json:"valve_signal"`
	Actuator    onoff.Status           `json:"actuator"`
	Transmitter transmitter.State      `json:"transmitter"`
}

// SeriesPoints are the readable points recorded per cycle, in column order.
var SeriesPoints = []string{
	"separator.h_oil",
	"separator.h_water",
	"separator.pressure",
	"valve.control_signal",
	"valve.valve_opening",
	"valve.flow",
	"actuator.state",
	"actuator.valve_moving",
	"actuator.limit_switch_open",
	"actuator.limit_switch_close",
	"actuator.fault",
	"transmitter.current_value",
	"transmitter.fault",
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Value returns a recorded point as a number. Booleans are 0 or 1 and the
// actuator state is its ordinal.
func (s Snapshot) Value(id string) (float64, bool) {
	switch id {
	case "separator.h_oil":
		return s.Separator.HOil, true
	case "separator.h_water":
		return s.Separator.HWater, true
	case "separator.pressure":
		return s.Separator.Pressure, true
	case "valve.control_signal":
		return s.ValveSignal, true
	case "valve.valve_opening":
		return s.Valve.Opening, true
	case "valve.flow":
		return s.Valve.Flow, true
	case "actuator.state":
		return float64(s.Actuator.Current), true
	case "actuator.valve_moving":
		return b2f(s.Actuator.Moving), true
	case "actuator.limit_switch_open":
		return b2f(s.Actuator.LimitOpen), true
	case "actuator.limit_switch_close":
		return b2f(s.Actuator.LimitClosed), true
	case "actuator.fault":
		return b2f(s.Actuator.Fault), true
	case "transmitter.current_value":
		return s.Transmitter.CurrentValue, true
	case "transmitter.fault":
		return b2f(s.Transmitter.Fault), true
	}
	return 0, false
}

type Metric interface {
	Name() string
	Observe(s Snapshot)
	Value() float64
	Reset()
}

type Observer interface {
	OnCycle(s Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnCycle(s Snapshot) { f(s) }

type Result struct {
	Snapshots []Snapshot
	Metrics   map[string]float64
	Cycles    int
}
