package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/fieldsim/internal/onoff"
	"github.com/san-kum/fieldsim/internal/plant"
)

const (
	frameInterval   = 50 * time.Millisecond
	historyLen      = 120
	maxStepsPerTick = 200
)

// control is a numeric point the dashboard can nudge with the arrow keys.
type control struct {
	id   string
	step float64
}

var controls = []control{
	{"separator.q_in_oil", 0.01},
	{"separator.q_in_water", 0.01},
	{"separator.q_in_gas", 0.01},
	{"separator.valve_oil", 5},
	{"separator.valve_water", 5},
	{"separator.valve_gas", 5},
	{"valve.control_signal", 5},
	{"valve.flow_setpoint", 0.5},
	{"transmitter.step_size", 0.5},
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Dashboard is a bubbletea model that runs the plant in real time and
// writes operator input through the point table.
type Dashboard struct {
	p            *plant.Plant
	vesselHeight float64

	paused    bool
	speed     float64
	lastFrame time.Time
	backlog   time.Duration

	cursor  int
	editing bool
	editBuf string
	status  string

	trend   int
	history []plant.Snapshot

	width  int
	height int
}

func NewDashboard(p *plant.Plant, vesselHeight float64) Dashboard {
	return Dashboard{
		p:            p,
		vesselHeight: vesselHeight,
		speed:        1.0,
		history:      make([]plant.Snapshot, 0, historyLen),
		width:        100,
		height:       40,
	}
}

func (m Dashboard) Init() tea.Cmd { return tick() }

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.advance(time.Time(msg))
		return m, tick()
	}
	return m, nil
}

// advance steps the plant by as many cycles as the wall clock, scaled by
// speed, allows since the previous frame.
func (m *Dashboard) advance(now time.Time) {
	if m.lastFrame.IsZero() || m.paused {
		m.lastFrame = now
		return
	}
	m.backlog += time.Duration(float64(now.Sub(m.lastFrame)) * m.speed)
	m.lastFrame = now

	cycle := m.p.CycleTime()
	for n := 0; m.backlog >= cycle && n < maxStepsPerTick; n++ {
		m.record(m.p.Step())
		m.backlog -= cycle
	}
	if m.backlog >= cycle {
		m.backlog = 0
	}
}

func (m *Dashboard) record(s plant.Snapshot) {
	m.history = append(m.history, s)
	if len(m.history) > historyLen {
		m.history = m.history[1:]
	}
}

func (m *Dashboard) write(id string, v any) {
	if err := m.p.Write(id, v); err != nil {
		m.status = red.Render(err.Error())
		return
	}
	got, _ := m.p.Read(id)
	m.status = green.Render(fmt.Sprintf("%s = %v", id, got))
}

func (m *Dashboard) toggle(id string) {
	v, err := m.p.Read(id)
	if err != nil {
		m.status = red.Render(err.Error())
		return
	}
	b, _ := v.(bool)
	m.write(id, !b)
}

func (m *Dashboard) nudge(dir float64) {
	c := controls[m.cursor]
	v, err := m.p.Read(c.id)
	if err != nil {
		m.status = red.Render(err.Error())
		return
	}
	f, _ := v.(float64)
	m.write(c.id, math.Round((f+dir*c.step)*1e6)/1e6)
}

func (m Dashboard) handleKey(msg tea.KeyMsg) (Dashboard, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			m.write(controls[m.cursor].id, m.editBuf)
			m.editing = false
			m.editBuf = ""
		case "esc":
			m.editing = false
			m.editBuf = ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.paused = !m.paused
	case "+", "=":
		m.speed = math.Min(m.speed*2, 16)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 0.25)
	case "0":
		m.speed = 1.0
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(controls)-1 {
			m.cursor++
		}
	case "left", "h":
		m.nudge(-1)
	case "right", "l":
		m.nudge(1)
	case "enter":
		m.editing = true
		if v, err := m.p.Read(controls[m.cursor].id); err == nil {
			m.editBuf = fmt.Sprint(v)
		}
	case "e":
		m.toggle("actuator.solenoid_esd")
	case "p":
		m.toggle("actuator.solenoid_psd")
	case "c":
		m.toggle("actuator.solenoid_pcs")
	case "r":
		m.write("actuator.reset", true)
	case "a":
		m.toggle("valve.auto_mode")
	case "v":
		m.toggle("valve.error_model_enabled")
	case "s":
		m.toggle("transmitter.sine_wave")
	case "w":
		m.toggle("transmitter.sawtooth_wave")
	case "o":
		m.toggle("transmitter.overflow")
	case "u":
		m.toggle("transmitter.underflow")
	case "tab":
		m.trend = (m.trend + 1) % len(plant.SeriesPoints)
	case "shift+tab":
		m.trend = (m.trend + len(plant.SeriesPoints) - 1) % len(plant.SeriesPoints)
	}
	return m, nil
}

// Trend returns the recorded history of the selected trend point.
func (m Dashboard) Trend() (string, []float64) {
	return m.seriesOf(plant.SeriesPoints[m.trend])
}

func (m Dashboard) View() string {
	s := m.p.Last()

	var b strings.Builder
	statusIcon, statusText := green.Render("●"), green.Render("running")
	if m.paused {
		statusIcon, statusText = yellow.Render("○"), yellow.Render("paused")
	}
	b.WriteString(fmt.Sprintf("\n %s %s  %s  %s  %s\n\n",
		statusIcon, cyan.Render("f i e l d s i m"), statusText,
		dim.Render(fmt.Sprintf("cycle %d  t=%.1fs", s.Cycle.Index, s.Cycle.Now)),
		dim.Render(fmt.Sprintf("x%.2g", m.speed))))

	top := lipgloss.JoinHorizontal(lipgloss.Top, m.viewSeparator(s), m.viewValve(s))
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, m.viewActuator(s), m.viewTransmitter(s))
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, top, bottom) + "\n")

	id, series := m.Trend()
	if len(series) > 1 {
		chart := asciigraph.Plot(series, asciigraph.Height(6), asciigraph.Width(60), asciigraph.Caption(id))
		b.WriteString(graphStyle.Render(chart) + "\n")
	} else {
		b.WriteString(dim.Render(" waiting for "+id) + "\n")
	}

	b.WriteString(m.viewControls())
	if m.status != "" {
		b.WriteString(" " + m.status + "\n")
	}
	b.WriteString("\n" + dim.Render(" space pause  ±speed  ↑↓ select  ←→ adjust  enter edit  tab trend") + "\n")
	b.WriteString(dim.Render(" e/p/c solenoids  r reset  a auto  v valve errors  s/w/o/u transmitter  q quit") + "\n")
	return b.String()
}

func (m Dashboard) viewSeparator(s plant.Snapshot) string {
	sep := s.Separator
	canvas := newCanvas(12, 8)
	drawVessel(canvas, sep, m.vesselHeight)

	var b strings.Builder
	b.WriteString(cyan.Render("separator") + "\n")
	b.WriteString(canvasString(canvas, ""))
	b.WriteString(water.Render("≈") + dim.Render(" water ") + white.Render(fmt.Sprintf("%6.3f m", sep.HWater)) + "\n")
	b.WriteString(oil.Render("▒") + dim.Render(" oil   ") + white.Render(fmt.Sprintf("%6.3f m", sep.HOil)) + "\n")
	b.WriteString(dim.Render("  gas   ") + white.Render(fmt.Sprintf("%6.1f kPa", sep.Pressure/1000)) + "\n")
	return panel.Render(b.String())
}

func (m Dashboard) viewValve(s plant.Snapshot) string {
	auto, _ := m.p.Read("valve.auto_mode")
	errs, _ := m.p.Read("valve.error_model_enabled")
	mode := "manual"
	if auto == true {
		mode = "auto"
	}

	var b strings.Builder
	b.WriteString(cyan.Render("control valve") + "  " + dim.Render(mode) + "\n\n")
	b.WriteString(dim.Render("signal  ") + magenta.Render(bar(s.ValveSignal/100, 16, "█", "░")) + white.Render(fmt.Sprintf(" %5.1f%%", s.ValveSignal)) + "\n")
	b.WriteString(dim.Render("opening ") + cyan.Render(bar(s.Valve.Opening/100, 16, "█", "░")) + white.Render(fmt.Sprintf(" %5.1f%%", s.Valve.Opening)) + "\n")
	b.WriteString(dim.Render("flow    ") + white.Render(fmt.Sprintf("%.3f m3/h", s.Valve.Flow)) + "\n")
	if errs == true {
		b.WriteString(yellow.Render("error model on") + "\n")
	}
	return panel.Render(b.String())
}

func lamp(on bool, label string) string {
	if on {
		return green.Render("■ " + label)
	}
	return dimmer.Render("□ " + label)
}

func (m Dashboard) viewActuator(s plant.Snapshot) string {
	st := s.Actuator
	state := white.Render(st.Current.String())
	switch st.Current {
	case onoff.Fault:
		state = red.Render(st.Current.String())
	case onoff.Opening, onoff.Closing:
		state = yellow.Render(st.Current.String())
	}

	var b strings.Builder
	b.WriteString(cyan.Render("on/off valve") + "  " + state + "\n\n")
	for sol := onoff.ESD; sol <= onoff.PCS; sol++ {
		b.WriteString(lamp(st.Energized[sol], strings.ToUpper(sol.String())) + "  ")
	}
	b.WriteString("\n")
	b.WriteString(lamp(st.LimitClosed, "ZSC") + "  " + lamp(st.LimitOpen, "ZSO") + "  " + lamp(st.Moving, "moving") + "\n")
	if st.ESDLatched {
		b.WriteString(red.Render("ESD latched, press r") + "\n")
	}
	return panel.Render(b.String())
}

func (m Dashboard) viewTransmitter(s plant.Snapshot) string {
	tx := s.Transmitter
	var b strings.Builder
	b.WriteString(cyan.Render("transmitter") + "\n\n")
	b.WriteString(dim.Render("value ") + white.Render(fmt.Sprintf("%8.3f", tx.CurrentValue)) + "\n")

	_, series := m.seriesOf("transmitter.current_value")
	b.WriteString(dim.Render("      ") + cyan.Render(sparkline(series, 24)) + "\n")
	if tx.Fault {
		b.WriteString(red.Render("FAULT out of scale") + "\n")
	}
	return panel.Render(b.String())
}

func (m Dashboard) seriesOf(id string) (string, []float64) {
	out := make([]float64, 0, len(m.history))
	for _, s := range m.history {
		if v, ok := s.Value(id); ok {
			out = append(out, v)
		}
	}
	return id, out
}

func (m Dashboard) viewControls() string {
	var b strings.Builder
	for i, c := range controls {
		v, _ := m.p.Read(c.id)
		val := fmt.Sprintf("%10v", v)
		if f, ok := v.(float64); ok {
			val = fmt.Sprintf("%10s", strconv.FormatFloat(f, 'g', 6, 64))
		}
		if m.editing && i == m.cursor {
			val = fmt.Sprintf("%10s", m.editBuf+"▋")
		}
		if i == m.cursor {
			b.WriteString(" " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-24s", c.id)) + magenta.Render(val) + "\n")
		} else {
			b.WriteString("   " + dim.Render(fmt.Sprintf("%-24s", c.id)) + dim.Render(val) + "\n")
		}
	}
	return b.String()
}

func RunDashboard(p *plant.Plant, vesselHeight float64) error {
	prog := tea.NewProgram(NewDashboard(p, vesselHeight), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
