package services

// ReverseScore maps a raw Likert value to its reverse-scored value given the
// number of points in the scale (e.g., 5 or 7). raw is expected to be within
// [1, points]. Out-of-range values are clamped. Applying it twice on the same
// scale returns the original value.
func ReverseScore(raw, points int) int {
	if points < 2 {
		return raw
	}
	if raw < 1 {
		raw = 1
	}
	if raw > points {
		raw = points
	}
	return (points + 1) - raw
}

// AdjustScore normalizes a raw score to consistent polarity: higher adjusted
// score always means less friction, regardless of how the question was phrased.
func AdjustScore(raw, points int, reverseScored bool) int {
	if reverseScored {
		return ReverseScore(raw, points)
	}
	return raw
}

// Severity classifies a dimension average.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityHealthy  Severity = "healthy"
)

// Thresholds are the report tuning knobs. Band values are on a 1-5 basis and
// rescaled to the active scale; CriticalGap and UniformVariance are absolute
// scale units.
type Thresholds struct {
	CriticalBelow    float64
	WarningBelow     float64
	CriticalGap      float64
	SubstitutionHigh float64
	SubstitutionLow  float64
	UniformVariance  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalBelow:    2.5,
		WarningBelow:     3.5,
		CriticalGap:      1.5,
		SubstitutionHigh: 3.5,
		SubstitutionLow:  2.5,
		UniformVariance:  0.25,
	}
}

// scaleRelative rescales a 1-5 basis threshold to the given scale so the
// classification is invariant across the 5 and 7 point variants.
func scaleRelative(base float64, points int) float64 {
	return base * float64(points) / 5
}

// Classify places an average into a severity band for the given scale.
func (t Thresholds) Classify(avg float64, points int) Severity {
	switch {
	case avg < scaleRelative(t.CriticalBelow, points):
		return SeverityCritical
	case avg < scaleRelative(t.WarningBelow, points):
		return SeverityWarning
	default:
		return SeverityHealthy
	}
}
