package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

// System is a lumped model dX/dt = f(X, u, t). Equipment models with a
// continuous part express it this way so any Integrator can advance them.
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Bounded systems clamp a state into their valid domain in place. Multi-stage
// integrators project every intermediate state so Derive never sees a point
// the model cannot represent.
type Bounded interface {
	Project(x State)
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

const DefaultCycleTimeMs = 100

// Cycle is one tick of the host scheduler.
type Cycle struct {
	Index  int     `json:"index"`
	TimeMs uint32  `json:"time_ms"`
	Now    float64 `json:"now"`
}

func (c Cycle) Dt() float64 {
	return float64(c.TimeMs) / 1000.0
}

func ValidateCycleTime(ms int) error {
	if ms <= 0 {
		return fmt.Errorf("%w: cycle_time_ms must be positive, got %d", ErrInvalidCycle, ms)
	}
	return nil
}

func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
