package layer

import (
	"math"
	"strconv"
)

// Display range of the scalar value and the hue band it maps onto.
const (
	RangeMin = 0.0
	RangeMax = 500.0

	hueLow  = 270.0
	hueHigh = 360.0
)

// Style is the per-feature override handed to the renderer. The zero Style
// means "no override": the host's default style applies.
type Style struct {
	FillColor string `json:"fillColor,omitempty"`
}

// IsZero reports whether the style carries no override.
func (s Style) IsZero() bool {
	return s.FillColor == ""
}

// Hue maps a scalar value onto the [270, 360] hue band. Values outside the
// display range are not clamped.
func Hue(v float64) float64 {
	return ((v-RangeMin)/(RangeMax-RangeMin))*(hueHigh-hueLow) + hueLow
}

// ValueStyle renders v as an HSL fill at full saturation and half lightness.
// NaN and infinite values produce no override.
func ValueStyle(v float64) Style {
	h := Hue(v)
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return Style{}
	}
	return Style{FillColor: "hsl(" + strconv.FormatFloat(h, 'f', -1, 64) + ", 100%, 50%)"}
}

// StyleAt derives the style of f at t. Features without a value at t get no
// override.
func StyleAt(f Feature, t TimeIndex) Style {
	v, ok := f.Scalar.At(t.Year, t.Day)
	if !ok {
		return Style{}
	}
	return ValueStyle(v)
}
