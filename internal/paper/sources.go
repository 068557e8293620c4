package paper

import "math"

// Grain is smooth value noise with a little per-pixel speckle.
type Grain struct {
	Scale float64 // cell size in pixels; 0 means 4
	Seed  uint64
}

func (g Grain) Tooth(x, y int) float64 {
	scale := g.Scale
	if scale <= 0 {
		scale = 4
	}
	fx, fy := float64(x)/scale, float64(y)/scale
	ix, iy := math.Floor(fx), math.Floor(fy)
	tx, ty := smooth(fx-ix), smooth(fy-iy)

	x0, y0 := int64(ix), int64(iy)
	n00 := g.lattice(x0, y0)
	n10 := g.lattice(x0+1, y0)
	n01 := g.lattice(x0, y0+1)
	n11 := g.lattice(x0+1, y0+1)
	value := lerp(lerp(n00, n10, tx), lerp(n01, n11, tx), ty)

	speckle := unit(hash(uint64(int64(x)), uint64(int64(y)), g.Seed^0x9e3779b97f4a7c15))
	return 0.75*value + 0.25*speckle
}

func (g Grain) lattice(x, y int64) float64 {
	return unit(hash(uint64(x), uint64(y), g.Seed))
}

// Weave is a canvas-like crosshatch.
type Weave struct {
	Pitch int // thread spacing in pixels; 0 means 6
}

func (w Weave) Tooth(x, y int) float64 {
	pitch := float64(w.Pitch)
	if pitch <= 0 {
		pitch = 6
	}
	sx := math.Sin(2 * math.Pi * float64(x) / pitch)
	sy := math.Sin(2 * math.Pi * float64(y) / pitch)
	return 0.5 + 0.5*sx*sy
}

// hash mixes coordinates with splitmix64 finalisers.
func hash(x, y, seed uint64) uint64 {
	h := seed ^ (x * 0x9e3779b97f4a7c15) ^ (y * 0xc2b2ae3d27d4eb4f)
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}

func unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}

func smooth(t float64) float64 { return t * t * (3 - 2*t) }

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
