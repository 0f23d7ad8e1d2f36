package metrics

import "github.com/san-kum/fieldsim/internal/plant"

// DefaultWindow is the trailing window, in cycles, used by the drift metrics.
const DefaultWindow = 100

// Standard returns the metrics recorded by a headless run.
func Standard(window int) []plant.Metric {
	return []plant.Metric{
		NewDrift("separator.h_oil", window),
		NewDrift("separator.h_water", window),
		NewDrift("separator.pressure", window),
		NewValveTravel(),
		NewStrokes(),
		NewFaultRatio(),
	}
}
