package brush

import (
	"math"
	"math/rand/v2"
)

// Response shapes how pen attitude maps onto a dab. All three slots are
// required; Curves fills missing ones with the Linear behaviour.
type Response interface {
	// Angle maps pen orientation (radians) to dab rotation (radians).
	Angle(orientation float64) float64
	// Squash maps the texture aspect ratio and pen tilt to the drawn aspect.
	Squash(aspect, tilt float64) float64
	// Pressure maps raw pressure in [0,1] to dab strength in [0,1].
	Pressure(p float64) float64
}

// Linear passes orientation and aspect through and clamps pressure.
type Linear struct{}

func (Linear) Angle(o float64) float64      { return o }
func (Linear) Squash(ar, _ float64) float64 { return ar }
func (Linear) Pressure(p float64) float64   { return clamp01(p) }

// Curves builds a Response from optional functions.
type Curves struct {
	AngleFunc    func(orientation float64) float64
	SquashFunc   func(aspect, tilt float64) float64
	PressureFunc func(p float64) float64
}

func (c Curves) Angle(o float64) float64 {
	if c.AngleFunc == nil {
		return Linear{}.Angle(o)
	}
	return c.AngleFunc(o)
}

func (c Curves) Squash(ar, tilt float64) float64 {
	if c.SquashFunc == nil {
		return Linear{}.Squash(ar, tilt)
	}
	return c.SquashFunc(ar, tilt)
}

func (c Curves) Pressure(p float64) float64 {
	if c.PressureFunc == nil {
		return Linear{}.Pressure(p)
	}
	return clamp01(c.PressureFunc(p))
}

// TaperPressure maps pressure at or below threshold to zero and rescales the
// rest, so strokes fade out completely as the pen lifts.
func TaperPressure(threshold float64) Curves {
	return Curves{PressureFunc: func(p float64) float64 {
		if p <= threshold {
			return 0
		}
		return (p - threshold) / (1 - threshold)
	}}
}

// TiltSquash narrows the dab as the pen tilts; amount 1 flattens it fully at
// maximum tilt.
func TiltSquash(amount float64) Curves {
	return Curves{SquashFunc: func(ar, tilt float64) float64 {
		return ar * math.Max(0.05, 1-amount*clamp01(tilt))
	}}
}

// FixedAngle ignores orientation, like a chisel nib held at one angle.
func FixedAngle(rad float64) Curves {
	return Curves{AngleFunc: func(float64) float64 { return rad }}
}

// RandomAngle returns c with every dab turned to a random angle, ignoring
// pen orientation. It hides the texture's grid on grainy stamps.
func RandomAngle(c Curves) Curves {
	c.AngleFunc = func(float64) float64 { return rand.Float64() * 2 * math.Pi }
	return c
}

// SqrtPressure makes light pressure count for more.
func SqrtPressure() Curves {
	return Curves{PressureFunc: func(p float64) float64 { return math.Sqrt(clamp01(p)) }}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
