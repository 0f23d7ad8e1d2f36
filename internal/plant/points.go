package plant

import (
	"fmt"
	"math"

	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/onoff"
	"github.com/san-kum/fieldsim/internal/physics"
	"github.com/san-kum/fieldsim/internal/points"
)

func nonNegative(dst *float64) func(float64) error {
	return func(v float64) error {
		if v < 0 {
			return fmt.Errorf("%w: must not be negative", dynamo.ErrParameterBounds)
		}
		*dst = v
		return nil
	}
}

func positive(dst *float64) func(float64) error {
	return func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("%w: must be positive", dynamo.ErrParameterBounds)
		}
		*dst = v
		return nil
	}
}

func percent(dst *float64) func(float64) error {
	return func(v float64) error {
		*dst = dynamo.Clamp(v, 0, 100)
		return nil
	}
}

func getter(src *float64) func() float64 {
	return func() float64 { return *src }
}

func (p *Plant) registerPoints() {
	p.registerPlant()
	p.registerSeparator()
	p.registerValve()
	p.registerActuator()
	p.registerTransmitter()
}

func (p *Plant) registerPlant() {
	t := p.table
	t.Float(points.Point{ID: "plant.cycle_time_ms", Unit: "ms", Min: 1, Desc: "cycle period"}, &p.mu,
		func() float64 { return float64(p.cycleMs) },
		func(v float64) error {
			ms := int(math.Round(v))
			if err := dynamo.ValidateCycleTime(ms); err != nil {
				return err
			}
			p.cycleMs = ms
			return nil
		})
	t.Float(points.Point{ID: "plant.cycle", Desc: "completed cycles"}, &p.mu,
		func() float64 { return float64(p.cycle) }, nil)
	t.Float(points.Point{ID: "plant.time", Unit: "s", Desc: "simulation clock"}, &p.mu,
		func() float64 { return p.last.Cycle.Now }, nil)
}

func (p *Plant) registerSeparator() {
	t, u := p.table, &p.sep

	t.Float(points.Point{ID: "separator.h_oil", Unit: "m", Desc: "oil layer height"}, &u.mu,
		func() float64 { return u.st.HOil }, nil)
	t.Float(points.Point{ID: "separator.h_water", Unit: "m", Desc: "water layer height"}, &u.mu,
		func() float64 { return u.st.HWater }, nil)
	t.Float(points.Point{ID: "separator.pressure", Unit: "Pa", Desc: "vessel pressure"}, &u.mu,
		func() float64 { return u.st.Pressure }, nil)

	inflows := []struct {
		id, desc string
		dst      *float64
	}{
		{"separator.q_in_oil", "oil inflow", &u.cfg.QInOil},
		{"separator.q_in_water", "water inflow", &u.cfg.QInWater},
		{"separator.q_in_gas", "gas inflow at vessel conditions", &u.cfg.QInGas},
	}
	for _, f := range inflows {
		t.Float(points.Point{ID: f.id, Unit: "m3/s", Min: 0, Desc: f.desc}, &u.mu, getter(f.dst), nonNegative(f.dst))
	}

	openings := []struct {
		id, desc string
		dst      *float64
	}{
		{"separator.valve_oil", "oil outlet valve opening", &u.cfg.ValveOil},
		{"separator.valve_water", "water outlet valve opening", &u.cfg.ValveWater},
		{"separator.valve_gas", "gas outlet valve opening", &u.cfg.ValveGas},
	}
	for _, f := range openings {
		t.Float(points.Point{ID: f.id, Unit: "%", Min: 0, Max: 100, Desc: f.desc}, &u.mu, getter(f.dst), percent(f.dst))
	}
}

func (p *Plant) registerValve() {
	t, u := p.table, &p.vlv

	t.Float(points.Point{ID: "valve.valve_opening", Unit: "%", Min: 0, Max: 100, Desc: "actual valve position"}, &u.mu,
		func() float64 { return u.st.Opening }, nil)
	t.Float(points.Point{ID: "valve.flow", Unit: "m3/h", Min: 0, Desc: "flow through the valve"}, &u.mu,
		func() float64 { return u.st.Flow }, nil)

	t.Float(points.Point{ID: "valve.control_signal", Unit: "%", Min: 0, Max: 100, Desc: "commanded position"}, &u.mu,
		func() float64 { return u.cfg.ControlSignal },
		func(v float64) error {
			if u.auto {
				return fmt.Errorf("%w: valve is in auto mode", dynamo.ErrReadOnly)
			}
			u.cfg.ControlSignal = dynamo.Clamp(v, 0, 100)
			return nil
		})
	t.Float(points.Point{ID: "valve.upstream_pressure", Unit: "bar", Desc: "inlet pressure"}, &u.mu,
		getter(&u.cfg.UpstreamPressure), positive(&u.cfg.UpstreamPressure))
	t.Float(points.Point{ID: "valve.kv", Unit: "m3/h", Desc: "flow coefficient"}, &u.mu,
		getter(&u.cfg.Kv), positive(&u.cfg.Kv))
	t.Enum(points.Point{ID: "valve.valve_characteristic", Options: []string{"linear", "equal_percentage"}, Desc: "trim characteristic"}, &u.mu,
		func() string { return u.cfg.Characteristic.String() },
		func(v string) error {
			c, err := physics.ParseCharacteristic(v)
			if err != nil {
				return fmt.Errorf("%w: %v", dynamo.ErrParameterBounds, err)
			}
			u.cfg.Characteristic = c
			return nil
		})

	t.Bool(points.Point{ID: "valve.error_model_enabled", Desc: "apply instrumentation errors"}, &u.mu,
		func() bool { return u.errorsOn },
		func(v bool) error {
			if v && !u.errorsOn {
				u.em.LastControlSignal = u.cfg.ControlSignal
			}
			u.errorsOn = v
			return nil
		})
	errs := []struct {
		id, unit, desc string
		dst            *float64
	}{
		{"valve.stiction_threshold", "%", "smallest signal change that moves the valve", &u.em.StictionThreshold},
		{"valve.dead_time", "s", "delay between updates", &u.em.DeadTime},
		{"valve.hysteresis", "%", "directional offset", &u.em.Hysteresis},
		{"valve.positioner_error", "%", "positioner bias", &u.em.PositionerError},
	}
	for _, f := range errs {
		t.Float(points.Point{ID: f.id, Unit: f.unit, Min: 0, Desc: f.desc}, &u.mu, getter(f.dst), nonNegative(f.dst))
	}

	t.Bool(points.Point{ID: "valve.auto_mode", Desc: "flow loop drives the control signal"}, &u.mu,
		func() bool { return u.auto },
		func(v bool) error {
			if v && !u.auto {
				u.pid.Reset(u.cfg.ControlSignal)
			}
			u.auto = v
			return nil
		})
	t.Float(points.Point{ID: "valve.flow_setpoint", Unit: "m3/h", Min: 0, Desc: "flow loop setpoint"}, &u.mu,
		getter(&u.pid.Setpoint), nonNegative(&u.pid.Setpoint))
	for _, gain := range []string{"kp", "ki", "kd"} {
		t.Float(points.Point{ID: "valve.pid_" + gain, Min: 0, Desc: "flow loop gain " + gain}, &u.mu,
			func() float64 { return u.pid.GetParams()[gain] },
			func(v float64) error {
				if v < 0 {
					return fmt.Errorf("%w: must not be negative", dynamo.ErrParameterBounds)
				}
				u.pid.SetParam(gain, v)
				return nil
			})
	}
}

func (p *Plant) registerActuator() {
	t, u := p.table, &p.act
	v := u.valve

	states := []string{}
	for s := onoff.Closed; s <= onoff.Fault; s++ {
		states = append(states, s.String())
	}
	t.Enum(points.Point{ID: "actuator.state", Options: states, Desc: "actuator state"}, &u.mu,
		func() string { return v.Status.Current.String() }, nil)

	status := []struct {
		id, desc string
		get      func() bool
	}{
		{"actuator.valve_moving", "valve travelling", func() bool { return v.Status.Moving }},
		{"actuator.limit_switch_open", "open limit switch", func() bool { return v.Status.LimitOpen }},
		{"actuator.limit_switch_close", "closed limit switch", func() bool { return v.Status.LimitClosed }},
		{"actuator.fault", "actuator fault", func() bool { return v.Status.Fault }},
		{"actuator.esd_latched", "ESD trip latched", func() bool { return v.Status.ESDLatched }},
	}
	for _, f := range status {
		t.Bool(points.Point{ID: f.id, Desc: f.desc}, &u.mu, f.get, nil)
	}
	t.Float(points.Point{ID: "actuator.timer_ms", Unit: "ms", Desc: "time in current stroke"}, &u.mu,
		func() float64 { return float64(v.Status.Timer) }, nil)

	t.Float(points.Point{ID: "actuator.travel_time_ms", Unit: "ms", Min: 1, Desc: "stroke time"}, &u.mu,
		func() float64 { return float64(v.Config.TravelTimeMs) },
		func(ms float64) error {
			if ms > math.MaxUint32 {
				return fmt.Errorf("%w: travel time too large", dynamo.ErrParameterBounds)
			}
			return v.SetTravelTime(int(math.Round(ms)))
		})
	t.Bool(points.Point{ID: "actuator.esd_latching", Desc: "latch ESD trips until reset"}, &u.mu,
		func() bool { return v.Config.ESDLatching },
		func(b bool) error { v.Config.ESDLatching = b; return nil })

	for s := onoff.ESD; s <= onoff.PCS; s++ {
		t.Bool(points.Point{ID: "actuator.solenoid_" + s.String(), Desc: "solenoid command"}, &u.mu,
			func() bool { return v.Inputs.Solenoids[s] },
			func(b bool) error { return v.SetSolenoid(s, b) })
	}
	t.Bool(points.Point{ID: "actuator.reset", Desc: "reset pulse, consumed on the next cycle"}, &u.mu,
		func() bool { return v.Inputs.Reset },
		func(b bool) error { v.Inputs.Reset = b; return nil })
}

func (p *Plant) registerTransmitter() {
	t, u := p.table, &p.tx

	t.Float(points.Point{ID: "transmitter.current_value", Desc: "transmitter output"}, &u.mu,
		func() float64 { return u.st.CurrentValue }, nil)
	t.Bool(points.Point{ID: "transmitter.fault", Desc: "output outside scale"}, &u.mu,
		func() bool { return u.st.Fault }, nil)
	t.Float(points.Point{ID: "transmitter.simulation_time", Unit: "s", Desc: "generator clock"}, &u.mu,
		func() float64 { return u.st.SimulationTime }, nil)

	t.Float(points.Point{ID: "transmitter.step_size", Min: 0.1, Max: 10, Desc: "ramp increment per cycle"}, &u.mu,
		func() float64 { return u.cfg.StepSize }, u.cfg.SetStepSize)

	flags := []struct {
		id, desc string
		get      func() bool
		set      func(bool)
	}{
		{"transmitter.simulation_active", "generator running", func() bool { return u.cfg.SimulationActive }, func(b bool) { u.cfg.SimulationActive = b }},
		{"transmitter.sine_wave", "sine output, clears sawtooth", func() bool { return u.cfg.SineWave }, u.cfg.SetSineWave},
		{"transmitter.sawtooth_wave", "sawtooth output, clears sine", func() bool { return u.cfg.SawtoothWave }, u.cfg.SetSawtoothWave},
		{"transmitter.overflow", "force output to max scale, clears underflow", func() bool { return u.cfg.Overflow }, u.cfg.SetOverflow},
		{"transmitter.underflow", "force output to min scale, clears overflow", func() bool { return u.cfg.Underflow }, u.cfg.SetUnderflow},
	}
	for _, f := range flags {
		t.Bool(points.Point{ID: f.id, Desc: f.desc}, &u.mu, f.get, func(b bool) error { f.set(b); return nil })
	}
}
