package terrain

import (
	"math"

	"github.com/ojrac/opensimplex-go"
)

// field is a seeded fractal noise source sampled in world-absolute coordinates
// so that neighbouring chunks agree on shared borders.
type field struct {
	noise       opensimplex.Noise
	frequency   float64
	octaves     int
	persistence float64
	lacunarity  float64
	contrast    float64
}

func newField(seed int64, salt uint64, frequency float64, octaves int, persistence, lacunarity float64) field {
	if octaves <= 0 {
		octaves = 1
	}
	return field{
		noise:       opensimplex.New(deriveSeed(seed, salt)),
		frequency:   frequency,
		octaves:     octaves,
		persistence: persistence,
		lacunarity:  lacunarity,
		contrast:    1,
	}
}

// withContrast stretches samples away from 0.5. Fractal sums cluster around
// the middle of the range; percentage thresholds need the full spread.
func (f field) withContrast(c float64) field {
	f.contrast = c
	return f
}

// sample2 returns fractal noise at (x, y) normalised into [0, 1].
func (f field) sample2(x, y int) float64 {
	frequency := f.frequency
	amplitude := 1.0
	sum := 0.0
	maxAmplitude := 0.0
	for i := 0; i < f.octaves; i++ {
		sum += f.noise.Eval2(float64(x)*frequency, float64(y)*frequency) * amplitude
		maxAmplitude += amplitude
		amplitude *= f.persistence
		frequency *= f.lacunarity
	}
	return f.normalise(sum / maxAmplitude)
}

// sample3 returns single-octave noise at (x, y, z) normalised into [0, 1].
func (f field) sample3(x, y, z int) float64 {
	v := f.noise.Eval3(float64(x)*f.frequency, float64(y)*f.frequency, float64(z)*f.frequency)
	return f.normalise(v)
}

func (f field) normalise(v float64) float64 {
	v = v*f.contrast*0.5 + 0.5
	return math.Max(0, math.Min(1, v))
}
