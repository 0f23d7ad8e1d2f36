package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/fieldsim/internal/plant"
)

type ExportData struct {
	Preset      string             `json:"preset"`
	Integrator  string             `json:"integrator"`
	CycleTimeMs int                `json:"cycle_time_ms"`
	Cycles      int                `json:"cycles"`
	Metrics     map[string]float64 `json:"metrics"`
	Snapshots   []plant.Snapshot   `json:"snapshots"`
}

// ExportJSON writes a whole run, snapshot by snapshot, as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, result *plant.Result) error {
	data := ExportData{
		Preset:      meta.Preset,
		Integrator:  meta.Integrator,
		CycleTimeMs: meta.CycleTimeMs,
		Cycles:      result.Cycles,
		Metrics:     result.Metrics,
		Snapshots:   result.Snapshots,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
