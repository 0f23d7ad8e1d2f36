package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/fieldsim/internal/plant"
)

const (
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer is a plant observer that redraws a plain text frame at most
// frameRate times per second. It is used when no interactive terminal is
// wanted, for example when piping a headless run.
type LiveRenderer struct {
	out          io.Writer
	frameRate    int
	vesselHeight float64
	lastFrame    time.Time
	pressure     []float64
}

func NewLiveRenderer(out io.Writer, frameRate int, vesselHeight float64) *LiveRenderer {
	if frameRate < 1 {
		frameRate = 1
	}
	return &LiveRenderer{
		out:          out,
		frameRate:    frameRate,
		vesselHeight: vesselHeight,
		pressure:     make([]float64, 0, 60),
	}
}

func (r *LiveRenderer) OnCycle(s plant.Snapshot) {
	r.pressure = append(r.pressure, s.Separator.Pressure)
	if len(r.pressure) > 60 {
		r.pressure = r.pressure[1:]
	}

	elapsed := time.Since(r.lastFrame)
	if elapsed < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()
	fmt.Fprint(r.out, r.Frame(s))
}

// Frame renders one snapshot without escape codes other than the leading
// clear.
func (r *LiveRenderer) Frame(s plant.Snapshot) string {
	canvas := newCanvas(14, 10)
	drawVessel(canvas, s.Separator, r.vesselHeight)

	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(fmt.Sprintf("  fieldsim  cycle=%d  t=%.2fs\n", s.Cycle.Index, s.Cycle.Now))
	b.WriteString("  " + strings.Repeat("-", 40) + "\n")

	lines := strings.Split(strings.TrimRight(canvasString(canvas, "  "), "\n"), "\n")
	info := []string{
		fmt.Sprintf("h_water  %.3f m", s.Separator.HWater),
		fmt.Sprintf("h_oil    %.3f m", s.Separator.HOil),
		fmt.Sprintf("pressure %.1f kPa", s.Separator.Pressure/1000),
		"",
		fmt.Sprintf("valve    %.1f%% -> %.1f%%", s.ValveSignal, s.Valve.Opening),
		fmt.Sprintf("flow     %.3f m3/h", s.Valve.Flow),
		"",
		fmt.Sprintf("actuator %s", s.Actuator.Current),
		fmt.Sprintf("xmtr     %.2f fault=%v", s.Transmitter.CurrentValue, s.Transmitter.Fault),
		"         " + sparkline(r.pressure, 24),
	}
	for i, line := range lines {
		b.WriteString(line)
		if i < len(info) {
			b.WriteString("   " + info[i])
		}
		b.WriteString("\n")
	}
	b.WriteString("  " + strings.Repeat("-", 40) + "\n")
	return b.String()
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Fprint(r.out, showCursor) }
