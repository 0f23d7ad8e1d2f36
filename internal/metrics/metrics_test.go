package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/fieldsim/internal/onoff"
	"github.com/san-kum/fieldsim/internal/physics"
	"github.com/san-kum/fieldsim/internal/plant"
	"github.com/san-kum/fieldsim/internal/transmitter"
)

func levelSnap(h float64) plant.Snapshot {
	return plant.Snapshot{Separator: physics.SeparatorState{HOil: h}}
}

func TestDriftWindow(t *testing.T) {
	d := NewDrift("separator.h_oil", 3)
	if d.Name() != "drift:separator.h_oil" {
		t.Errorf("name = %q", d.Name())
	}
	if d.Value() != 0 {
		t.Errorf("empty drift = %v, want 0", d.Value())
	}

	for _, h := range []float64{1, 3, 3.5, 3.6, 3.65} {
		d.Observe(levelSnap(h))
	}
	// deltas 2, 0.5, 0.1, 0.05; the window keeps the last three
	if math.Abs(d.Value()-0.5) > 1e-9 {
		t.Errorf("drift = %v, want 0.5", d.Value())
	}

	d.Observe(levelSnap(3.66))
	d.Observe(levelSnap(3.66))
	if math.Abs(d.Value()-0.05) > 1e-9 {
		t.Errorf("drift = %v, want 0.05", d.Value())
	}

	d.Reset()
	d.Observe(levelSnap(10))
	if d.Value() != 0 {
		t.Errorf("drift after reset = %v, want 0", d.Value())
	}
}

func TestDriftUnknownPoint(t *testing.T) {
	d := NewDrift("separator.nothing", 0)
	d.Observe(levelSnap(1))
	d.Observe(levelSnap(2))
	if d.Value() != 0 {
		t.Errorf("drift = %v, want 0", d.Value())
	}
}

func TestValveTravel(t *testing.T) {
	v := NewValveTravel()
	for _, o := range []float64{0, 10, 5, 5} {
		v.Observe(plant.Snapshot{Valve: physics.ValveState{Opening: o}})
	}
	if math.Abs(v.Value()-5) > 1e-9 {
		t.Errorf("travel = %v, want 5", v.Value())
	}
	v.Reset()
	if v.Value() != 0 {
		t.Errorf("travel after reset = %v", v.Value())
	}
}

func TestFaultRatio(t *testing.T) {
	f := NewFaultRatio()
	for _, fault := range []bool{true, false, false, true} {
		f.Observe(plant.Snapshot{Transmitter: transmitter.State{Fault: fault}})
	}
	if f.Value() != 0.5 {
		t.Errorf("ratio = %v, want 0.5", f.Value())
	}
}

func TestStrokes(t *testing.T) {
	s := NewStrokes()
	seq := []onoff.State{
		onoff.Closed, onoff.Opening, onoff.Opening, onoff.Open,
		onoff.Closing, onoff.Closed, onoff.Opening, onoff.Fault,
	}
	for _, st := range seq {
		s.Observe(plant.Snapshot{Actuator: onoff.Status{Current: st}})
	}
	if s.Value() != 2 {
		t.Errorf("strokes = %v, want 2", s.Value())
	}
}

func TestStandardNames(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Standard(DefaultWindow) {
		if seen[m.Name()] {
			t.Errorf("duplicate metric %q", m.Name())
		}
		seen[m.Name()] = true
	}
	if len(seen) != 6 {
		t.Errorf("got %d metrics, want 6", len(seen))
	}
}
