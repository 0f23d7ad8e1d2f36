package tui

import (
	"math"
	"strings"

	"github.com/san-kum/fieldsim/internal/physics"
)

func newCanvas(w, h int) [][]rune {
	canvas := make([][]rune, h)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", w))
	}
	return canvas
}

func set(canvas [][]rune, x, y int, c rune) {
	if y >= 0 && y < len(canvas) && x >= 0 && x < len(canvas[y]) {
		canvas[y][x] = c
	}
}

func drawLine(canvas [][]rune, x1, y1, x2, y2 int, c rune) {
	dx := intAbs(x2 - x1)
	dy := intAbs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		set(canvas, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// drawVessel draws the separator as a tank of the given height in metres:
// water at the bottom, oil above it, gas in the remaining space.
func drawVessel(canvas [][]rune, st physics.SeparatorState, vesselHeight float64) {
	h := len(canvas)
	if h < 3 {
		return
	}
	w := len(canvas[0])
	inner := h - 2
	rows := func(level float64) int {
		return int(math.Round(math.Min(level/vesselHeight, 1) * float64(inner)))
	}
	wr := rows(st.HWater)
	or := rows(st.HWater+st.HOil) - wr

	drawLine(canvas, 0, 0, w-1, 0, '─')
	drawLine(canvas, 0, h-1, w-1, h-1, '─')
	drawLine(canvas, 0, 0, 0, h-1, '│')
	drawLine(canvas, w-1, 0, w-1, h-1, '│')
	for i := 0; i < inner; i++ {
		y := h - 2 - i
		c := ' '
		switch {
		case i < wr:
			c = '≈'
		case i < wr+or:
			c = '▒'
		}
		for x := 1; x < w-1; x++ {
			set(canvas, x, y, c)
		}
	}
}

func canvasString(canvas [][]rune, indent string) string {
	var b strings.Builder
	for _, row := range canvas {
		b.WriteString(indent)
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	return b.String()
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	start := 0
	if len(data) > width {
		start = len(data) - width
	}
	var sb strings.Builder
	for _, v := range data[start:] {
		idx := int((v - minVal) / rang * 7)
		idx = max(0, min(idx, 7))
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

func bar(ratio float64, width int, fill, empty string) string {
	ratio = math.Max(0, math.Min(ratio, 1))
	filled := int(ratio * float64(width))
	return strings.Repeat(fill, filled) + strings.Repeat(empty, width-filled)
}
