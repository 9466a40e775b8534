package engine

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// DayNight describes the sky at a moment of world time.
type DayNight struct {
	TimeOfDay float64 // hours, 0..24
	Progress  float64 // fraction of the current day
	Phase     string
	Sun       mgl64.Vec3 // unit vector towards the sun, +Z up
	Sunlight  float64
	Ambient   float64
}

// dayNightAt derives the sky from world time. The cycle starts at startHour
// when world time is zero, so it resumes where a saved world left off.
func dayNightAt(worldTime, dayLength time.Duration, startHour float64) DayNight {
	if dayLength <= 0 {
		dayLength = 20 * time.Minute
	}
	if worldTime < 0 {
		worldTime = 0
	}
	initial := math.Mod(startHour/24, 1)
	if initial < 0 {
		initial = 0
	}
	progress := math.Mod(initial+float64(worldTime)/float64(dayLength), 1)
	hour := progress * 24

	// The sun rises in +X at 06:00 and peaks at noon.
	orbital := math.Mod(progress+0.75, 1) * 2 * math.Pi
	sun := mgl64.Vec3{math.Cos(orbital), 0, math.Sin(orbital)}
	elevation := math.Max(0, sun.Z())
	return DayNight{
		TimeOfDay: hour,
		Progress:  progress,
		Phase:     phaseForHour(hour),
		Sun:       sun,
		Sunlight:  0.15 + 0.85*elevation,
		Ambient:   0.2 + 0.6*elevation,
	}
}

func phaseForHour(hour float64) string {
	switch {
	case hour >= 5 && hour < 7:
		return "dawn"
	case hour >= 7 && hour < 18:
		return "day"
	case hour >= 18 && hour < 21:
		return "dusk"
	default:
		return "night"
	}
}

// DayNight reports the sky for the current world time.
func (e *Engine) DayNight() DayNight {
	return dayNightAt(e.worldTime, e.cfg.World.DayLength.Duration(), e.cfg.World.StartHour)
}
