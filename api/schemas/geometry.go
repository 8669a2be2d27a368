package schemas

import (
	"fmt"
	"math"
)

// NormalizedScale is the extent of both axes of the resolution-independent
// coordinate space. All coordinates in the system live in [0, NormalizedScale].
const NormalizedScale = 1000.0

// Point is a position in normalized screen space. It is converted to device
// pixels only by device adapters at the actuation boundary.
type Point struct {
	X float64 `json:"x" mapstructure:"x" yaml:"x"`
	Y float64 `json:"y" mapstructure:"y" yaml:"y"`
}

// IsZero reports whether the point is unset.
func (p Point) IsZero() bool { return p.X == 0 && p.Y == 0 }

// Validate checks that the point lies inside the normalized space.
func (p Point) Validate() error {
	if p.X < 0 || p.X > NormalizedScale || p.Y < 0 || p.Y > NormalizedScale {
		return fmt.Errorf("point (%.1f,%.1f) outside normalized space [0,%.0f]", p.X, p.Y, NormalizedScale)
	}
	return nil
}

// Clamp returns the point forced into the normalized space.
func (p Point) Clamp() Point {
	return Point{X: clamp(p.X, 0, NormalizedScale), Y: clamp(p.Y, 0, NormalizedScale)}
}

// Offset returns the point translated by (dx, dy), clamped to the normalized space.
func (p Point) Offset(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}.Clamp()
}

// ToDevice converts a normalized point into integer device pixels for the
// given resolution, rounding to the nearest pixel.
func (p Point) ToDevice(res Resolution) (int, int) {
	x := int(math.Round(float64(res.Width) * p.X / NormalizedScale))
	y := int(math.Round(float64(res.Height) * p.Y / NormalizedScale))
	return x, y
}

// FromDevice converts device pixels into a normalized point.
func FromDevice(x, y int, res Resolution) Point {
	if res.Width <= 0 || res.Height <= 0 {
		return Point{}
	}
	return Point{
		X: float64(x) * NormalizedScale / float64(res.Width),
		Y: float64(y) * NormalizedScale / float64(res.Height),
	}
}

func (p Point) String() string { return fmt.Sprintf("(%.0f,%.0f)", p.X, p.Y) }

// Span is a horizontal control such as a progress bar, described by the
// normalized positions of its two ends.
type Span struct {
	Start Point `json:"start" mapstructure:"start" yaml:"start"`
	End   Point `json:"end" mapstructure:"end" yaml:"end"`
}

// IsZero reports whether the span is unset.
func (s Span) IsZero() bool { return s.Start.IsZero() && s.End.IsZero() }

// Length is the horizontal extent of the span.
func (s Span) Length() float64 { return s.End.X - s.Start.X }

// MidY is the vertical midline of the span, where taps should land.
func (s Span) MidY() float64 { return (s.Start.Y + s.End.Y) / 2 }

// Resolution is a device screen size in pixels.
type Resolution struct {
	Width  int `json:"width" mapstructure:"width" yaml:"width"`
	Height int `json:"height" mapstructure:"height" yaml:"height"`
}

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool { return r.Width > 0 && r.Height > 0 }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
