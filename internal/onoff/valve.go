package onoff

import (
	"fmt"

	"github.com/san-kum/fieldsim/internal/dynamo"
)

type State int

const (
	Closed State = iota
	Opening
	Open
	Closing
	Fault
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Opening:
		return "OPENING"
	case Open:
		return "OPEN"
	case Closing:
		return "CLOSING"
	case Fault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func ParseState(name string) (State, error) {
	for s := Closed; s <= Fault; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return Fault, fmt.Errorf("unknown actuator state %q", name)
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Solenoid int

const (
	ESD Solenoid = iota // emergency shutdown
	PSD                 // process shutdown
	PCS                 // process control system
)

const MaxSolenoids = 3

func (s Solenoid) String() string {
	switch s {
	case ESD:
		return "esd"
	case PSD:
		return "psd"
	case PCS:
		return "pcs"
	default:
		return fmt.Sprintf("solenoid(%d)", int(s))
	}
}

const DefaultTravelTimeMs = 5000

type Config struct {
	SolenoidCount int    `yaml:"solenoid_count"`
	ESDLatching   bool   `yaml:"esd_latching"`
	TravelTimeMs  uint32 `yaml:"travel_time_ms"`
}

func DefaultConfig() Config {
	return Config{
		SolenoidCount: MaxSolenoids,
		TravelTimeMs:  DefaultTravelTimeMs,
	}
}

func (c Config) Validate() error {
	if c.SolenoidCount < 1 || c.SolenoidCount > MaxSolenoids {
		return fmt.Errorf("%w: solenoid_count %d not in [1, %d]", dynamo.ErrParameterBounds, c.SolenoidCount, MaxSolenoids)
	}
	if c.TravelTimeMs == 0 {
		return fmt.Errorf("%w: travel_time_ms must be positive", dynamo.ErrParameterBounds)
	}
	return nil
}

// Inputs are the commands seen by the actuator on one cycle. Reset is a
// pulse.
type Inputs struct {
	Solenoids [MaxSolenoids]bool
	Reset     bool
}

type Status struct {
	Current    State              `json:"state"`
	Target     State              `json:"target"`
	Timer      uint32             `json:"timer_ms"` // ms spent in the current transitional state
	ESDLatched bool               `json:"esd_latched"`
	Energized  [MaxSolenoids]bool `json:"energized"`

	Moving      bool `json:"valve_moving"`
	LimitOpen   bool `json:"limit_switch_open"`
	LimitClosed bool `json:"limit_switch_close"`
	Fault       bool `json:"fault"`
}

func NewStatus() Status {
	st := Status{Current: Closed, Target: Closed}
	derive(&st)
	return st
}

func allEnergized(in Inputs, n int) bool {
	for i := 0; i < n; i++ {
		if !in.Solenoids[i] {
			return false
		}
	}
	return true
}

func enter(st *Status, s State) {
	st.Current = s
	st.Timer = 0
}

func derive(st *Status) {
	st.Moving = st.Current == Opening || st.Current == Closing
	st.LimitOpen = st.Current == Open
	st.LimitClosed = st.Current == Closed
	if st.Current == Opening || st.Current == Open {
		st.Target = Open
	} else {
		st.Target = Closed
	}
}

// Transition computes the actuator status after elapsedMs with the given
// inputs. Motion always passes through Opening or Closing. The second
// result reports whether a reset pulse was consumed.
func Transition(st Status, cfg Config, in Inputs, elapsedMs uint32) (Status, bool) {
	next := st
	n := cfg.SolenoidCount
	if n < 1 || n > MaxSolenoids {
		n = MaxSolenoids
	}
	for i := range next.Energized {
		next.Energized[i] = i < n && in.Solenoids[i]
	}
	all := allEnergized(in, n)

	if in.Reset {
		next.ESDLatched = false
	}
	if cfg.ESDLatching && !in.Solenoids[ESD] && (st.Current == Opening || st.Current == Open) {
		next.ESDLatched = true
	}

	switch st.Current {
	case Closed:
		if all && !next.ESDLatched {
			enter(&next, Opening)
		}
	case Opening:
		next.Timer += elapsedMs
		if next.Timer >= cfg.TravelTimeMs {
			enter(&next, Open)
		}
	case Open:
		if !all {
			enter(&next, Closing)
		}
	case Closing:
		next.Timer += elapsedMs
		if next.Timer >= cfg.TravelTimeMs {
			enter(&next, Closed)
		}
	case Fault:
		if in.Reset {
			enter(&next, Closed)
			next.Fault = false
		}
	default:
		enter(&next, Fault)
		next.Fault = true
	}

	derive(&next)
	return next, in.Reset
}

// Valve holds one actuator's configuration, pending inputs and status.
type Valve struct {
	Config Config
	Inputs Inputs
	Status Status
}

func NewValve(cfg Config) *Valve {
	return &Valve{Config: cfg, Status: NewStatus()}
}

func (v *Valve) Update(cycleMs uint32) {
	next, consumed := Transition(v.Status, v.Config, v.Inputs, cycleMs)
	v.Status = next
	if consumed {
		v.Inputs.Reset = false
	}
}

func (v *Valve) SetTravelTime(ms int) error {
	if ms <= 0 {
		return fmt.Errorf("%w: travel_time_ms must be positive, got %d", dynamo.ErrParameterBounds, ms)
	}
	v.Config.TravelTimeMs = uint32(ms)
	return nil
}

func (v *Valve) SetSolenoid(s Solenoid, on bool) error {
	if s < 0 || int(s) >= MaxSolenoids {
		return fmt.Errorf("%w: %s", dynamo.ErrParameterBounds, s)
	}
	v.Inputs.Solenoids[s] = on
	return nil
}
