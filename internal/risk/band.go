package risk

import (
	"fmt"
	"math"
)

// Band is the qualitative severity tier of a risk score.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// Default thresholds in percent.
const (
	DefaultMediumAbove = 20.0
	DefaultHighAbove   = 50.0
)

// Thresholds are the exclusive lower bounds, in percent, of the medium and high bands.
type Thresholds struct {
	MediumAbove float64 `json:"medium_above"`
	HighAbove   float64 `json:"high_above"`
}

// DefaultThresholds returns the 20 % / 50 % split.
func DefaultThresholds() Thresholds {
	return Thresholds{MediumAbove: DefaultMediumAbove, HighAbove: DefaultHighAbove}
}

func (t Thresholds) Validate() error {
	// Written as negations so NaN fails both checks.
	if !(t.MediumAbove > 0 && t.MediumAbove < 100) {
		return fmt.Errorf("medium threshold must be between 0 and 100, got %f", t.MediumAbove)
	}
	if !(t.HighAbove > t.MediumAbove && t.HighAbove < 100) {
		return fmt.Errorf("high threshold must be between %f and 100, got %f", t.MediumAbove, t.HighAbove)
	}
	return nil
}

// BandFor maps a percentage onto its band. Both bounds are strict, so a score of
// exactly MediumAbove stays low and exactly HighAbove stays medium.
func (t Thresholds) BandFor(percent float64) Band {
	switch {
	case percent > t.HighAbove:
		return BandHigh
	case percent > t.MediumAbove:
		return BandMedium
	default:
		return BandLow
	}
}

// Messages is the guidance shown for each band.
type Messages struct {
	Low    string
	Medium string
	High   string
}

func (m Messages) For(b Band) string {
	switch b {
	case BandHigh:
		return m.High
	case BandMedium:
		return m.Medium
	default:
		return m.Low
	}
}

// Assessment is a banded risk score ready for display.
type Assessment struct {
	Probability float64 `json:"probability"`
	Percent     float64 `json:"risk_percent"`
	Band        Band    `json:"band"`
	Message     string  `json:"message"`
}

// Display formats the percentage with one decimal, e.g. "12.3%".
func (a Assessment) Display() string {
	return fmt.Sprintf("%.1f%%", a.Percent)
}

// Assessor turns positive-class probabilities into assessments.
type Assessor struct {
	thresholds Thresholds
	messages   Messages
}

func NewAssessor(t Thresholds, m Messages) (*Assessor, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Assessor{thresholds: t, messages: m}, nil
}

func (a *Assessor) Thresholds() Thresholds {
	return a.thresholds
}

// Assess bands a probability in [0,1].
func (a *Assessor) Assess(probability float64) (Assessment, error) {
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return Assessment{}, fmt.Errorf("probability out of range: %f", probability)
	}

	percent := probability * 100
	band := a.thresholds.BandFor(percent)
	return Assessment{
		Probability: probability,
		Percent:     percent,
		Band:        band,
		Message:     a.messages.For(band),
	}, nil
}
