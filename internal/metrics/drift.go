package metrics

import (
	"math"

	"github.com/san-kum/fieldsim/internal/plant"
)

// Drift is the largest per-cycle change of one point over the trailing
// window of cycles. A settled point has a drift near zero.
type Drift struct {
	name   string
	point  string
	window int
	deltas []float64
	next   int
	filled bool
	prev   float64
	seen   bool
}

func NewDrift(point string, window int) *Drift {
	if window < 1 {
		window = 1
	}
	return &Drift{
		name:   "drift:" + point,
		point:  point,
		window: window,
		deltas: make([]float64, window),
	}
}

func (d *Drift) Name() string { return d.name }

func (d *Drift) Observe(s plant.Snapshot) {
	v, ok := s.Value(d.point)
	if !ok {
		return
	}
	if d.seen {
		d.deltas[d.next] = math.Abs(v - d.prev)
		d.next++
		if d.next == d.window {
			d.next = 0
			d.filled = true
		}
	}
	d.prev = v
	d.seen = true
}

func (d *Drift) Value() float64 {
	n := d.next
	if d.filled {
		n = d.window
	}
	maxDelta := 0.0
	for _, v := range d.deltas[:n] {
		maxDelta = math.Max(maxDelta, v)
	}
	return maxDelta
}

func (d *Drift) Reset() {
	for i := range d.deltas {
		d.deltas[i] = 0
	}
	d.next = 0
	d.filled = false
	d.seen = false
}
