package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/fieldsim/internal/plant"
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "points.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Preset      string             `json:"preset"`
	Timestamp   time.Time          `json:"timestamp"`
	CycleTimeMs int                `json:"cycle_time_ms"`
	Cycles      int                `json:"cycles"`
	Integrator  string             `json:"integrator"`
	Scenario    string             `json:"scenario,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Series is a recorded run: one row per cycle, one column per point.
type Series struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

// Column returns the values of one point, or nil if it was not recorded.
func (s *Series) Column(id string) []float64 {
	idx := -1
	for i, c := range s.Columns {
		if c == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(s.Rows))
	for i, row := range s.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

func newRunID(preset string) string {
	if preset == "" {
		preset = "run"
	}
	return fmt.Sprintf("%s_%d_%s", preset, time.Now().Unix(), uuid.NewString()[:8])
}

// Save writes the metadata and the per-cycle series of a run and returns
// the new run ID. ID and Timestamp in meta are filled in.
func (s *Store) Save(meta RunMetadata, result *plant.Result) (string, error) {
	meta.ID = newRunID(meta.Preset)
	meta.Timestamp = time.Now()
	meta.Cycles = result.Cycles
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := WriteSeries(w, result.Snapshots); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// WriteSeries writes the header and one row per snapshot and flushes w.
func WriteSeries(w *csv.Writer, snaps []plant.Snapshot) error {
	header := append([]string{"cycle", "time"}, plant.SeriesPoints...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, snap := range snaps {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(snap.Cycle.Index), strconv.FormatFloat(snap.Cycle.Now, 'f', 3, 64))
		for _, id := range plant.SeriesPoints {
			v, _ := snap.Value(id)
			row = append(row, strconv.FormatFloat(v, 'g', 10, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every run under the base directory, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, seriesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	series := &Series{}
	if len(records) == 0 {
		return series, nil
	}
	if len(records[0]) < 2 {
		return nil, fmt.Errorf("%s: malformed header", runID)
	}
	series.Columns = records[0][2:]

	for _, record := range records[1:] {
		if len(record) < 2 {
			continue
		}
		t, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}

		row := make([]float64, 0, len(record)-2)
		for _, field := range record[2:] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				val = 0
			}
			row = append(row, val)
		}
		series.Times = append(series.Times, t)
		series.Rows = append(series.Rows, row)
	}

	return series, nil
}

func (s *Store) Delete(runID string) error {
	dir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// OpenSeries opens the raw points.csv of a run.
func (s *Store) OpenSeries(runID string) (*os.File, error) {
	return os.Open(filepath.Join(s.baseDir, runID, seriesFile))
}
