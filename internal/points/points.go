package points

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/san-kum/fieldsim/internal/dynamo"
)

type Kind int

const (
	Float Kind = iota
	Bool
	Enum
	Text
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Enum:
		return "enum"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for c := Float; c <= Text; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown point kind %q", b)
}

type Access int

const (
	ReadOnly Access = iota
	ReadWrite
)

func (a Access) String() string {
	if a == ReadWrite {
		return "rw"
	}
	return "r"
}

func (a Access) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Access) UnmarshalText(b []byte) error {
	switch string(b) {
	case "r":
		*a = ReadOnly
	case "rw":
		*a = ReadWrite
	default:
		return fmt.Errorf("unknown point access %q", b)
	}
	return nil
}

// Point describes one entry of the table. Min and Max are informational for
// float points; the setter decides whether to clamp or reject.
type Point struct {
	ID      string   `json:"id"`
	Kind    Kind     `json:"kind"`
	Access  Access   `json:"access"`
	Unit    string   `json:"unit,omitempty"`
	Min     float64  `json:"min,omitempty"`
	Max     float64  `json:"max,omitempty"`
	Options []string `json:"options,omitempty"`
	Desc    string   `json:"desc"`
}

// Owner returns the component part of the ID, before the first dot.
func (p Point) Owner() string {
	if i := strings.IndexByte(p.ID, '.'); i > 0 {
		return p.ID[:i]
	}
	return p.ID
}

type entry struct {
	Point
	lock sync.Locker
	get  func() any
	set  func(any) error
}

// Table maps point IDs to typed getters and validated setters. Every access
// holds the lock of the owning component.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewTable() *Table {
	return &Table{entries: make(map[string]*entry)}
}

func (t *Table) register(p Point, lock sync.Locker, get func() any, set func(any) error) {
	if set == nil {
		p.Access = ReadOnly
	} else {
		p.Access = ReadWrite
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.entries[p.ID]; dup {
		panic(fmt.Sprintf("points: duplicate point %q", p.ID))
	}
	t.entries[p.ID] = &entry{Point: p, lock: lock, get: get, set: set}
}

// Float registers a float point. A nil set makes it read-only.
func (t *Table) Float(p Point, lock sync.Locker, get func() float64, set func(float64) error) {
	p.Kind = Float
	var s func(any) error
	if set != nil {
		s = func(v any) error { return set(v.(float64)) }
	}
	t.register(p, lock, func() any { return get() }, s)
}

func (t *Table) Bool(p Point, lock sync.Locker, get func() bool, set func(bool) error) {
	p.Kind = Bool
	var s func(any) error
	if set != nil {
		s = func(v any) error { return set(v.(bool)) }
	}
	t.register(p, lock, func() any { return get() }, s)
}

// Enum registers a point whose value is one of p.Options.
func (t *Table) Enum(p Point, lock sync.Locker, get func() string, set func(string) error) {
	p.Kind = Enum
	var s func(any) error
	if set != nil {
		s = func(v any) error { return set(v.(string)) }
	}
	t.register(p, lock, func() any { return get() }, s)
}

func (t *Table) Text(p Point, lock sync.Locker, get func() string) {
	p.Kind = Text
	t.register(p, lock, func() any { return get() }, nil)
}

func (t *Table) lookup(id string) (*entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	return e, ok
}

func (t *Table) Lookup(id string) (Point, bool) {
	e, ok := t.lookup(id)
	if !ok {
		return Point{}, false
	}
	return e.Point, true
}

func (t *Table) Read(id string) (any, error) {
	e, ok := t.lookup(id)
	if !ok {
		return nil, &dynamo.PointError{Point: id, Wrapped: dynamo.ErrUnknownPoint}
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.get(), nil
}

// Write coerces v to the point's type and hands it to the setter.
func (t *Table) Write(id string, v any) error {
	e, ok := t.lookup(id)
	if !ok {
		return &dynamo.PointError{Point: id, Value: v, Wrapped: dynamo.ErrUnknownPoint}
	}
	if e.set == nil {
		return &dynamo.PointError{Point: id, Value: v, Wrapped: dynamo.ErrReadOnly}
	}
	cv, err := Coerce(e.Point, v)
	if err != nil {
		return &dynamo.PointError{Point: id, Value: v, Wrapped: err}
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.set(cv); err != nil {
		return &dynamo.PointError{Point: id, Value: v, Wrapped: err}
	}
	return nil
}

// List returns all points sorted by ID.
func (t *Table) List() []Point {
	t.mu.RLock()
	out := make([]Point, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Point)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReadAll reads every point. Each component is locked on its own, so the
// result is consistent per component only.
func (t *Table) ReadAll() map[string]any {
	out := make(map[string]any)
	for _, p := range t.List() {
		if v, err := t.Read(p.ID); err == nil {
			out[p.ID] = v
		}
	}
	return out
}

// Coerce converts v to the Go type used for p's kind: float64, bool or
// string. Strings are parsed, which lets CLI flags and scenario files write
// any point.
func Coerce(p Point, v any) (any, error) {
	switch p.Kind {
	case Float:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: not a finite number", dynamo.ErrParameterBounds)
		}
		return f, nil
	case Bool:
		return toBool(v)
	case Enum:
		return toEnum(p, v)
	case Text:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s point got %T", dynamo.ErrTypeMismatch, p.Kind, v)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", dynamo.ErrTypeMismatch, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", dynamo.ErrTypeMismatch, x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: float point got %T", dynamo.ErrTypeMismatch, v)
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case float64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case json.Number:
		return toBool(string(x))
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err == nil {
			return b, nil
		}
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "on", "yes":
			return true, nil
		case "off", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: bool point got %v", dynamo.ErrTypeMismatch, v)
}

// toEnum accepts an option name or its index.
func toEnum(p Point, v any) (string, error) {
	idx := -1
	switch x := v.(type) {
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		for _, o := range p.Options {
			if o == s {
				return o, nil
			}
		}
		if n, err := strconv.Atoi(s); err == nil {
			idx = n
		}
	case json.Number:
		return toEnum(p, string(x))
	case int:
		idx = x
	case float64:
		if x == math.Trunc(x) {
			idx = int(x)
		}
	}
	if idx >= 0 && idx < len(p.Options) {
		return p.Options[idx], nil
	}
	return "", fmt.Errorf("%w: %v not one of %v", dynamo.ErrParameterBounds, v, p.Options)
}
