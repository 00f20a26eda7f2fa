// Package gauge draws the semicircular risk gauge shown next to a result.
package gauge

import (
	"fmt"
	"math"
	"strings"

	"stroke-risk/internal/risk"
)

// Band colours, matching the result banners.
const (
	ColorLow    = "#21c354"
	ColorMedium = "#ffa421"
	ColorHigh   = "#ff4b4b"
	ColorNeedle = "#262730"
)

const (
	width   = 240
	height  = 140
	centerX = 120.0
	centerY = 120.0
	radius  = 100.0
	stroke  = 18
)

// Render returns an SVG document with three coloured arcs split at the
// thresholds and a needle pointing at percent. Values outside 0..100 are clamped.
func Render(percent float64, t risk.Thresholds) string {
	p := clamp(percent)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="gauge" viewBox="0 0 %d %d" width="%d" height="%d" role="img" aria-label="%.1f%%">`,
		width, height, width, height, p)

	segments := []struct {
		from, to float64
		color    string
	}{
		{0, t.MediumAbove, ColorLow},
		{t.MediumAbove, t.HighAbove, ColorMedium},
		{t.HighAbove, 100, ColorHigh},
	}
	for _, s := range segments {
		fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="%d"/>`, arc(s.from, s.to), s.color, stroke)
	}

	nx, ny := point(p, radius-stroke)
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="4" stroke-linecap="round"/>`,
		centerX, centerY, nx, ny, ColorNeedle)
	fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="6" fill="%s"/>`, centerX, centerY, ColorNeedle)
	fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" text-anchor="middle" font-size="20" font-weight="bold" fill="%s">%.1f%%</text>`,
		centerX, centerY-30, colorFor(p, t), p)
	b.WriteString(`</svg>`)

	return b.String()
}

// arc draws the gauge outline between two percentages.
func arc(from, to float64) string {
	x1, y1 := point(from, radius)
	x2, y2 := point(to, radius)
	return fmt.Sprintf("M %.2f %.2f A %.0f %.0f 0 0 1 %.2f %.2f", x1, y1, radius, radius, x2, y2)
}

// point maps a percentage onto the upper half circle, 0 % on the left.
func point(percent, r float64) (float64, float64) {
	angle := math.Pi * (1 - percent/100)
	return centerX + r*math.Cos(angle), centerY - r*math.Sin(angle)
}

func colorFor(percent float64, t risk.Thresholds) string {
	switch t.BandFor(percent) {
	case risk.BandHigh:
		return ColorHigh
	case risk.BandMedium:
		return ColorMedium
	default:
		return ColorLow
	}
}

func clamp(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
