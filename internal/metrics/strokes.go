package metrics

import (
	"github.com/san-kum/fieldsim/internal/onoff"
	"github.com/san-kum/fieldsim/internal/plant"
)

// Strokes counts completed actuator strokes in either direction.
type Strokes struct {
	name  string
	count int
	prev  onoff.State
	seen  bool
}

func NewStrokes() *Strokes {
	return &Strokes{name: "strokes"}
}

func (s *Strokes) Name() string { return s.name }

func (s *Strokes) Observe(snap plant.Snapshot) {
	cur := snap.Actuator.Current
	if s.seen {
		if (s.prev == onoff.Opening && cur == onoff.Open) || (s.prev == onoff.Closing && cur == onoff.Closed) {
			s.count++
		}
	}
	s.prev = cur
	s.seen = true
}

func (s *Strokes) Value() float64 { return float64(s.count) }

func (s *Strokes) Reset() {
	s.count = 0
	s.seen = false
}
