package metrics

import "github.com/san-kum/fieldsim/internal/plant"

// FaultRatio is the share of cycles in which the transmitter reported a
// fault.
type FaultRatio struct {
	name    string
	faults  int
	samples int
}

func NewFaultRatio() *FaultRatio {
	return &FaultRatio{
		name: "fault_ratio",
	}
}

func (f *FaultRatio) Name() string {
	return f.name
}

func (f *FaultRatio) Observe(s plant.Snapshot) {
	f.samples++
	if s.Transmitter.Fault {
		f.faults++
	}
}

func (f *FaultRatio) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return float64(f.faults) / float64(f.samples)
}

func (f *FaultRatio) Reset() {
	f.faults = 0
	f.samples = 0
}
