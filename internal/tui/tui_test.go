package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/physics"
	"github.com/san-kum/fieldsim/internal/plant"
)

func newPlant(t *testing.T) *plant.Plant {
	t.Helper()
	p, err := plant.New(config.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m Dashboard, msgs ...tea.Msg) Dashboard {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Dashboard)
	}
	return m
}

func TestDashboardFollowsWallClock(t *testing.T) {
	p := newPlant(t)
	m := NewDashboard(p, 5)
	t0 := time.Unix(1000, 0)

	m = send(m, tickMsg(t0))
	if p.Last().Cycle.Index != 0 {
		t.Fatalf("first frame stepped the plant")
	}
	m = send(m, tickMsg(t0.Add(time.Second)))
	if got := p.Last().Cycle.Index; got != 10 {
		t.Errorf("one second at 100 ms cycles gave %d steps, want 10", got)
	}
	if len(m.history) != 10 {
		t.Errorf("history holds %d snapshots", len(m.history))
	}

	m = send(m, tea.KeyMsg{Type: tea.KeySpace})
	m = send(m, tickMsg(t0.Add(2*time.Second)))
	if got := p.Last().Cycle.Index; got != 10 {
		t.Errorf("paused dashboard stepped to %d", got)
	}

	m = send(m, tea.KeyMsg{Type: tea.KeySpace}, runes("+"))
	m = send(m, tickMsg(t0.Add(2500*time.Millisecond)))
	if got := p.Last().Cycle.Index; got != 20 {
		t.Errorf("double speed for 0.5 s gave cycle %d, want 20", got)
	}
}

func TestDashboardWrites(t *testing.T) {
	p := newPlant(t)
	m := NewDashboard(p, 5)

	m = send(m, runes("e"))
	if v, _ := p.Read("actuator.solenoid_esd"); v != true {
		t.Errorf("esd solenoid = %v", v)
	}

	m = send(m, tea.KeyMsg{Type: tea.KeyRight})
	if v, _ := p.Read("separator.q_in_oil"); v != 0.06 {
		t.Errorf("q_in_oil = %v, want 0.06", v)
	}

	m = send(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.editing || m.editBuf != "0.06" {
		t.Fatalf("edit buffer %q", m.editBuf)
	}
	for range m.editBuf {
		m = send(m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	m = send(m, runes("0"), runes("."), runes("2"), runes("x"), tea.KeyMsg{Type: tea.KeyEnter})
	if v, _ := p.Read("separator.q_in_oil"); v != 0.2 {
		t.Errorf("q_in_oil = %v, want 0.2", v)
	}

	m = send(m, tea.KeyMsg{Type: tea.KeyEnter})
	for range m.editBuf {
		m = send(m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	m = send(m, runes("-"), runes("1"), tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.status, "must not be negative") {
		t.Errorf("status %q does not report the rejected write", m.status)
	}
	if v, _ := p.Read("separator.q_in_oil"); v != 0.2 {
		t.Errorf("rejected write changed q_in_oil to %v", v)
	}
}

func TestDashboardTrendAndView(t *testing.T) {
	p := newPlant(t)
	m := NewDashboard(p, 5)
	for i := 0; i < 5; i++ {
		m.record(p.Step())
	}

	id, series := m.Trend()
	if id != plant.SeriesPoints[0] || len(series) != 5 {
		t.Errorf("trend %s with %d points", id, len(series))
	}
	m = send(m, tea.KeyMsg{Type: tea.KeyTab})
	if id, _ := m.Trend(); id != plant.SeriesPoints[1] {
		t.Errorf("tab selected %s", id)
	}
	m = send(m, tea.KeyMsg{Type: tea.KeyShiftTab}, tea.KeyMsg{Type: tea.KeyShiftTab})
	if id, _ := m.Trend(); id != plant.SeriesPoints[len(plant.SeriesPoints)-1] {
		t.Errorf("shift+tab selected %s", id)
	}

	view := m.View()
	for _, want := range []string{"separator", "control valve", "on/off valve", "transmitter", "cycle 5", "CLOSED"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}

	if _, cmd := m.Update(runes("q")); cmd == nil {
		t.Error("q did not quit")
	}
}

func TestDrawVessel(t *testing.T) {
	canvas := newCanvas(6, 7)
	drawVessel(canvas, physics.SeparatorState{HWater: 1, HOil: 1}, 5)
	// five inner rows: one water row, one oil row
	if got := string(canvas[5]); got != "│≈≈≈≈│" {
		t.Errorf("bottom row %q", got)
	}
	if got := string(canvas[4]); got != "│▒▒▒▒│" {
		t.Errorf("oil row %q", got)
	}
	if got := string(canvas[3]); got != "│    │" {
		t.Errorf("gas row %q", got)
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{0, 7, 0}, 8); got != "▁█▁" {
		t.Errorf("sparkline %q", got)
	}
	if got := []rune(sparkline(make([]float64, 50), 10)); len(got) != 10 {
		t.Errorf("sparkline width %d, want 10", len(got))
	}
}

func TestLiveRenderer(t *testing.T) {
	var buf bytes.Buffer
	p := newPlant(t)
	r := NewLiveRenderer(&buf, 10, 5)
	p.AddObserver(r)

	p.Step()
	out := buf.String()
	if !strings.Contains(out, "cycle=1") || !strings.Contains(out, "CLOSED") {
		t.Errorf("frame:\n%s", out)
	}

	buf.Reset()
	p.Step()
	if buf.Len() != 0 {
		t.Error("second frame inside the frame interval was drawn")
	}
}
