package plant

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/control"
	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/integrators"
	"github.com/san-kum/fieldsim/internal/onoff"
	"github.com/san-kum/fieldsim/internal/physics"
	"github.com/san-kum/fieldsim/internal/points"
	"github.com/san-kum/fieldsim/internal/transmitter"
)

type separatorUnit struct {
	mu    sync.Mutex
	model *physics.Separator
	cfg   physics.SeparatorConfig
	st    physics.SeparatorState
}

type valveUnit struct {
	mu       sync.Mutex
	cfg      physics.ValveConfig
	em       physics.ValveErrorModel
	errorsOn bool
	auto     bool
	pid      *control.PID
	st       physics.ValveState
}

type actuatorUnit struct {
	mu    sync.Mutex
	valve *onoff.Valve
}

type transmitterUnit struct {
	mu  sync.Mutex
	cfg transmitter.Config
	st  transmitter.State
}

// Plant owns the four units and the cycle clock. Each unit has its own lock,
// taken by Step and by every point access.
type Plant struct {
	logger *slog.Logger

	sep separatorUnit
	vlv valveUnit
	act actuatorUnit
	tx  transmitterUnit

	table *points.Table

	// stepMu serializes Step and the metric/observer lists.
	stepMu    sync.Mutex
	metrics   []Metric
	observers []Observer

	// mu guards the clock and the last snapshot.
	mu      sync.RWMutex
	cycleMs int
	cycle   int
	last    Snapshot
}

func New(cfg *config.Config, logger *slog.Logger) (*Plant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	p := &Plant{
		logger:  logger,
		cycleMs: cfg.CycleTimeMs,
		table:   points.NewTable(),
	}

	p.sep.model = physics.NewSeparator(cfg.Separator.Constants, integ)
	p.sep.cfg = cfg.Separator.Inputs
	p.sep.st = p.sep.model.NewState(cfg.Separator.Initial.HOil, cfg.Separator.Initial.HWater, cfg.Separator.Initial.Pressure)

	p.vlv.cfg = cfg.Valve.Inputs
	// The trim starts where the signal points; the error model only acts from
	// the first cycle on.
	physics.UpdateValve(&p.vlv.st, p.vlv.cfg, nil, 0)
	p.vlv.em = cfg.Valve.ErrorModel.ValveErrorModel
	p.vlv.errorsOn = cfg.Valve.ErrorModel.Enabled
	a := cfg.Valve.Auto
	p.vlv.pid = control.NewPID(a.Kp, a.Ki, a.Kd, a.Setpoint)
	p.vlv.pid.Bias = cfg.Valve.Inputs.ControlSignal
	p.vlv.auto = a.Enabled

	p.act.valve = onoff.NewValve(cfg.Actuator)

	p.tx.cfg = cfg.Transmitter
	p.tx.st = transmitter.NewState()

	p.registerPoints()
	p.last = p.snapshot(dynamo.Cycle{TimeMs: uint32(p.cycleMs)})

	logger.Info("plant ready",
		"cycle_ms", p.cycleMs,
		"integrator", cfg.Integrator,
		"valve_errors", p.vlv.errorsOn,
		"valve_auto", p.vlv.auto,
		"points", len(p.table.List()))
	return p, nil
}

func (p *Plant) Table() *points.Table { return p.table }

func (p *Plant) Read(id string) (any, error) { return p.table.Read(id) }

func (p *Plant) Write(id string, v any) error {
	if err := p.table.Write(id, v); err != nil {
		p.logger.Warn("write rejected", "point", id, "value", v, "error", err)
		return err
	}
	p.logger.Debug("write", "point", id, "value", v)
	return nil
}

func (p *Plant) AddMetric(m Metric) {
	p.stepMu.Lock()
	defer p.stepMu.Unlock()
	p.metrics = append(p.metrics, m)
}

func (p *Plant) AddObserver(o Observer) {
	p.stepMu.Lock()
	defer p.stepMu.Unlock()
	p.observers = append(p.observers, o)
}

func (p *Plant) CycleTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Duration(p.cycleMs) * time.Millisecond
}

// MetricValues reports every registered metric by name.
func (p *Plant) MetricValues() map[string]float64 {
	p.stepMu.Lock()
	defer p.stepMu.Unlock()
	out := make(map[string]float64, len(p.metrics))
	for _, m := range p.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

// Last returns the snapshot published by the most recent Step.
func (p *Plant) Last() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// snapshot reads every unit without stepping it.
func (p *Plant) snapshot(c dynamo.Cycle) Snapshot {
	s := Snapshot{Cycle: c}
	p.sep.mu.Lock()
	s.Separator = p.sep.st
	p.sep.mu.Unlock()
	p.vlv.mu.Lock()
	s.Valve, s.ValveSignal = p.vlv.st, p.vlv.cfg.ControlSignal
	p.vlv.mu.Unlock()
	p.act.mu.Lock()
	s.Actuator = p.act.valve.Status
	p.act.mu.Unlock()
	p.tx.mu.Lock()
	s.Transmitter = p.tx.st
	p.tx.mu.Unlock()
	return s
}

// Step advances every unit by one cycle in a fixed order and notifies
// metrics and observers.
func (p *Plant) Step() Snapshot {
	p.stepMu.Lock()
	defer p.stepMu.Unlock()

	p.mu.Lock()
	p.cycle++
	c := dynamo.Cycle{
		Index:  p.cycle,
		TimeMs: uint32(p.cycleMs),
	}
	c.Now = p.last.Cycle.Now + c.Dt()
	p.mu.Unlock()

	s := Snapshot{Cycle: c}
	s.Separator = p.stepSeparator(c)
	s.Valve, s.ValveSignal = p.stepValve(c)
	s.Actuator = p.stepActuator(c)
	s.Transmitter = p.stepTransmitter(c)

	p.mu.Lock()
	p.last = s
	p.mu.Unlock()

	for _, m := range p.metrics {
		m.Observe(s)
	}
	for _, o := range p.observers {
		o.OnCycle(s)
	}
	return s
}

func (p *Plant) stepSeparator(c dynamo.Cycle) physics.SeparatorState {
	u := &p.sep
	u.mu.Lock()
	defer u.mu.Unlock()
	u.model.Update(&u.st, u.cfg, c.Dt())
	return u.st
}

func (p *Plant) stepValve(c dynamo.Cycle) (physics.ValveState, float64) {
	u := &p.vlv
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.auto {
		u.cfg.ControlSignal = u.pid.Compute(u.st.Flow, c.Now)
	}
	var em *physics.ValveErrorModel
	if u.errorsOn {
		em = &u.em
	}
	physics.UpdateValve(&u.st, u.cfg, em, c.Now)
	return u.st, u.cfg.ControlSignal
}

func (p *Plant) stepActuator(c dynamo.Cycle) onoff.Status {
	u := &p.act
	u.mu.Lock()
	defer u.mu.Unlock()
	prev := u.valve.Status
	u.valve.Update(c.TimeMs)
	next := u.valve.Status
	if next.Current != prev.Current {
		p.logger.Info("actuator transition", "cycle", c.Index, "from", prev.Current, "to", next.Current)
	}
	if next.ESDLatched && !prev.ESDLatched {
		p.logger.Warn("esd latched", "cycle", c.Index)
	}
	return next
}

func (p *Plant) stepTransmitter(c dynamo.Cycle) transmitter.State {
	u := &p.tx
	u.mu.Lock()
	defer u.mu.Unlock()
	prev := u.st.Fault
	transmitter.Update(&u.st, u.cfg, c.Dt())
	if u.st.Fault != prev {
		p.logger.Warn("transmitter fault changed", "cycle", c.Index, "fault", u.st.Fault, "value", u.st.CurrentValue)
	}
	return u.st
}

// Run steps the plant cycles times without pacing. Metrics are reset first
// and reported in the result.
func (p *Plant) Run(ctx context.Context, cycles int) (*Result, error) {
	if cycles < 0 {
		cycles = 0
	}
	p.stepMu.Lock()
	for _, m := range p.metrics {
		m.Reset()
	}
	p.stepMu.Unlock()

	result := &Result{
		Snapshots: make([]Snapshot, 0, cycles),
	}

	var err error
	for i := 0; i < cycles; i++ {
		select {
		case <-ctx.Done():
			err = ctx.Err()
		default:
		}
		if err != nil {
			break
		}
		result.Snapshots = append(result.Snapshots, p.Step())
		result.Cycles++
	}

	result.Metrics = p.MetricValues()

	p.logger.Info("run finished", "cycles", result.Cycles, "sim_time", p.Last().Cycle.Now)
	return result, err
}

// RunRealtime steps the plant once per cycle period until ctx is done. A
// change of plant.cycle_time_ms takes effect on the next tick.
func (p *Plant) RunRealtime(ctx context.Context) error {
	period := p.CycleTime()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	p.logger.Info("realtime loop started", "period", period)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("realtime loop stopped", "cycle", p.Last().Cycle.Index)
			return ctx.Err()
		case <-ticker.C:
			p.Step()
			if d := p.CycleTime(); d != period {
				period = d
				ticker.Reset(period)
				p.logger.Info("cycle period changed", "period", period)
			}
		}
	}
}
