package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/observability"
	"github.com/san-kum/fieldsim/internal/plant"
	"github.com/san-kum/fieldsim/internal/points"
)

// MaxStep bounds POST /step so one request cannot stall the plant.
const MaxStep = 10000

type handler struct {
	p  *plant.Plant
	lg *slog.Logger
}

type pointValue struct {
	Point string `json:"point"`
	Value any    `json:"value"`
}

type errorBody struct {
	Error string `json:"error"`
}

// NewRouter builds the point API. With m set it also serves /metrics and
// counts every request.
func NewRouter(p *plant.Plant, m *observability.Metrics, lg *slog.Logger) *mux.Router {
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &handler{p: p, lg: lg}
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods("GET")
	r.HandleFunc("/snapshot", h.snapshot).Methods("GET")
	r.HandleFunc("/points", h.listPoints).Methods("GET")
	r.HandleFunc("/points/values", h.values).Methods("GET")
	r.HandleFunc("/points/{id}", h.readPoint).Methods("GET")
	r.HandleFunc("/points/{id}", h.writePoint).Methods("PUT")
	r.HandleFunc("/step", h.step).Methods("POST")
	r.Use(h.logRequests)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods("GET")
		r.Use(m.Middleware)
	}

	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.lg.Debug("http request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the point errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dynamo.ErrUnknownPoint):
		return http.StatusNotFound
	case errors.Is(err, dynamo.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, dynamo.ErrParameterBounds),
		errors.Is(err, dynamo.ErrTypeMismatch),
		errors.Is(err, dynamo.ErrInvalidCycle):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	last := h.p.Last()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cycle":  last.Cycle.Index,
		"time":   last.Cycle.Now,
	})
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.p.Last())
}

// listPoints returns point metadata, optionally filtered by ?owner=.
func (h *handler) listPoints(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	out := make([]points.Point, 0)
	for _, pt := range h.p.Table().List() {
		if owner == "" || pt.Owner() == owner {
			out = append(out, pt)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) values(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.p.Table().ReadAll())
}

func (h *handler) readPoint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := h.p.Read(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, pointValue{Point: id, Value: v})
}

func (h *handler) writePoint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Value any `json:"value"`
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Value == nil {
		writeError(w, http.StatusBadRequest, errors.New("missing value"))
		return
	}

	if err := h.p.Write(id, body.Value); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	v, _ := h.p.Read(id)
	writeJSON(w, http.StatusOK, pointValue{Point: id, Value: v})
}

// step advances the plant by ?n= cycles (default 1) and returns the last
// snapshot. Meant for a plant that is not running in real time.
func (h *handler) step(w http.ResponseWriter, r *http.Request) {
	n := 1
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > MaxStep {
			writeError(w, http.StatusBadRequest, errors.New("n must be between 1 and "+strconv.Itoa(MaxStep)))
			return
		}
		n = v
	}
	var last plant.Snapshot
	for i := 0; i < n; i++ {
		last = h.p.Step()
	}
	writeJSON(w, http.StatusOK, last)
}
