package automation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/plant"
)

// Scenario defines a scripted sequence of point writes against a running
// plant.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Preset      string         `yaml:"preset"`
	Cycles      int            `yaml:"cycles"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep fires before the plant runs the given cycle. Write applies
// every value at once; Ramp spreads a numeric change over several cycles.
type ScenarioStep struct {
	Cycle int            `yaml:"cycle"`
	Write map[string]any `yaml:"write"`
	Ramp  *Ramp          `yaml:"ramp"`
}

type Ramp struct {
	Point  string  `yaml:"point"`
	From   float64 `yaml:"from"`
	To     float64 `yaml:"to"`
	Cycles int     `yaml:"cycles"`
}

// At returns the ramp value k cycles after it started.
func (r Ramp) At(k int) float64 {
	if r.Cycles <= 0 || k >= r.Cycles {
		return r.To
	}
	return r.From + (r.To-r.From)*float64(k)/float64(r.Cycles)
}

// Target is the part of the plant a scenario drives.
type Target interface {
	Write(id string, v any) error
	Step() plant.Snapshot
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if s.Cycles < 0 {
		return fmt.Errorf("%w: cycles must not be negative", dynamo.ErrParameterBounds)
	}
	if s.Preset != "" && config.GetPreset(s.Preset) == nil {
		return fmt.Errorf("unknown preset %q", s.Preset)
	}
	for i, st := range s.Steps {
		if st.Cycle < 1 {
			return fmt.Errorf("step %d: cycle must be at least 1, got %d", i+1, st.Cycle)
		}
		if len(st.Write) == 0 && st.Ramp == nil {
			return fmt.Errorf("step %d: nothing to do", i+1)
		}
		if st.Ramp != nil && (st.Ramp.Point == "" || st.Ramp.Cycles < 0) {
			return fmt.Errorf("step %d: invalid ramp", i+1)
		}
	}
	return nil
}

// Length is the number of cycles the scenario runs: Cycles when set,
// otherwise up to the end of the last step.
func (s *Scenario) Length() int {
	if s.Cycles > 0 {
		return s.Cycles
	}
	n := 0
	for _, st := range s.Steps {
		end := st.Cycle
		if st.Ramp != nil {
			end += st.Ramp.Cycles
		}
		n = max(n, end)
	}
	return n
}

type write struct {
	order int
	point string
	value any
}

// schedule expands the steps into per-cycle writes, in file order within a
// cycle.
func (s *Scenario) schedule() map[int][]write {
	out := make(map[int][]write)
	order := 0
	for _, st := range s.Steps {
		ids := make([]string, 0, len(st.Write))
		for id := range st.Write {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out[st.Cycle] = append(out[st.Cycle], write{order, id, st.Write[id]})
			order++
		}
		if r := st.Ramp; r != nil {
			for k := 0; k <= r.Cycles; k++ {
				c := st.Cycle + k
				out[c] = append(out[c], write{order, r.Point, r.At(k)})
			}
			order++
		}
	}
	for _, ws := range out {
		sort.SliceStable(ws, func(i, j int) bool { return ws[i].order < ws[j].order })
	}
	return out
}

// RunScenario executes the scenario against p. A rejected write stops the
// run and is returned with the cycle it belonged to.
func RunScenario(ctx context.Context, scenario *Scenario, p Target, logger *slog.Logger) ([]plant.Snapshot, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	n := scenario.Length()
	sched := scenario.schedule()
	snaps := make([]plant.Snapshot, 0, n)

	logger.Info("scenario started", "name", scenario.Name, "cycles", n, "steps", len(scenario.Steps))
	for c := 1; c <= n; c++ {
		select {
		case <-ctx.Done():
			return snaps, ctx.Err()
		default:
		}
		for _, w := range sched[c] {
			if err := p.Write(w.point, w.value); err != nil {
				return snaps, fmt.Errorf("cycle %d: %w", c, err)
			}
			logger.Debug("scenario write", "cycle", c, "point", w.point, "value", w.value)
		}
		snaps = append(snaps, p.Step())
	}
	logger.Info("scenario finished", "name", scenario.Name)
	return snaps, nil
}

// ParameterSweep runs a fresh plant for each value of one writable point and
// records where another point ends up.
type ParameterSweep struct {
	Point    string
	Min      float64
	Max      float64
	NumSteps int
	Cycles   int
	Observe  string
}

// SweepResult holds the outcome of one sweep value.
type SweepResult struct {
	Value float64
	Final float64
	Drift float64
}

// RunSweep runs one plant per sweep value, in parallel. Results are in
// value order.
func RunSweep(ctx context.Context, sweep *ParameterSweep, base *config.Config, logger *slog.Logger) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs at least one step", dynamo.ErrParameterBounds)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, sweep.NumSteps)
	errs := make([]error, sweep.NumSteps)
	dynamo.ParallelFor(sweep.NumSteps, 1, func(start, end int) {
		for i := start; i < end; i++ {
			val := sweep.Min + float64(i)*paramStep
			results[i], errs[i] = sweepOne(ctx, sweep, base, val)
			if errs[i] == nil {
				logger.Info("sweep", "step", i+1, "of", sweep.NumSteps, sweep.Point, val, sweep.Observe, results[i].Final)
			}
		}
	})

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func sweepOne(ctx context.Context, sweep *ParameterSweep, base *config.Config, val float64) (SweepResult, error) {
	cfg := *base
	p, err := plant.New(&cfg, nil)
	if err != nil {
		return SweepResult{}, err
	}
	if err := p.Write(sweep.Point, val); err != nil {
		return SweepResult{}, err
	}

	var prev, drift float64
	p.AddObserver(plant.ObserverFunc(func(s plant.Snapshot) {
		v, _ := s.Value(sweep.Observe)
		drift = math.Abs(v - prev)
		prev = v
	}))
	if _, err := p.Run(ctx, sweep.Cycles); err != nil {
		return SweepResult{}, err
	}

	final, ok := p.Last().Value(sweep.Observe)
	if !ok {
		return SweepResult{}, &dynamo.PointError{Point: sweep.Observe, Wrapped: dynamo.ErrUnknownPoint}
	}
	return SweepResult{Value: val, Final: final, Drift: drift}, nil
}

// MonteCarloConfig perturbs the separator inflows of the base configuration.
type MonteCarloConfig struct {
	Perturbation float64
	NumTrials    int
	Cycles       int
	Seed         int64
}

// MonteCarloResult holds one trial.
type MonteCarloResult struct {
	TrialID  int
	QInOil   float64
	QInWater float64
	QInGas   float64
	Final    plant.Snapshot
	Stable   bool // vessel neither overfilled nor drained
}

// RunMonteCarlo draws every trial's inflows from one seeded source, then
// runs the trials in parallel. The same seed gives the same results.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, base *config.Config, logger *slog.Logger) ([]MonteCarloResult, error) {
	if mc.NumTrials < 0 {
		return nil, fmt.Errorf("%w: negative trial count", dynamo.ErrParameterBounds)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	k := base.Separator.Constants
	height := k.TotalVolume / k.Area

	perturb := func(q float64) float64 {
		return math.Max(0, q*(1+(rng.Float64()-0.5)*2*mc.Perturbation))
	}
	results := make([]MonteCarloResult, mc.NumTrials)
	for trial := range results {
		in := base.Separator.Inputs
		results[trial] = MonteCarloResult{
			TrialID:  trial,
			QInOil:   perturb(in.QInOil),
			QInWater: perturb(in.QInWater),
			QInGas:   perturb(in.QInGas),
		}
	}

	errs := make([]error, mc.NumTrials)
	var done atomic.Int64
	dynamo.ParallelFor(mc.NumTrials, 1, func(start, end int) {
		for i := start; i < end; i++ {
			r := &results[i]
			cfg := *base
			in := &cfg.Separator.Inputs
			in.QInOil, in.QInWater, in.QInGas = r.QInOil, r.QInWater, r.QInGas

			p, err := plant.New(&cfg, nil)
			if err == nil {
				_, err = p.Run(ctx, mc.Cycles)
			}
			if err != nil {
				errs[i] = err
				continue
			}

			r.Final = p.Last()
			liquid := r.Final.Separator.HOil + r.Final.Separator.HWater
			r.Stable = liquid > 0 && liquid < height

			if n := done.Add(1); n%10 == 0 {
				logger.Info("monte carlo", "done", n, "of", mc.NumTrials)
			}
		}
	})

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
