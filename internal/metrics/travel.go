package metrics

import (
	"math"

	"github.com/san-kum/fieldsim/internal/plant"
)

// ValveTravel is the mean absolute change of the control valve opening per
// cycle.
type ValveTravel struct {
	name    string
	sum     float64
	prev    float64
	samples int
}

func NewValveTravel() *ValveTravel {
	return &ValveTravel{
		name: "valve_travel",
	}
}

func (v *ValveTravel) Name() string {
	return v.name
}

func (v *ValveTravel) Observe(s plant.Snapshot) {
	if v.samples > 0 {
		v.sum += math.Abs(s.Valve.Opening - v.prev)
	}
	v.prev = s.Valve.Opening
	v.samples++
}

func (v *ValveTravel) Value() float64 {
	if v.samples < 2 {
		return 0
	}
	return v.sum / float64(v.samples-1)
}

func (v *ValveTravel) Reset() {
	v.sum = 0
	v.prev = 0
	v.samples = 0
}
