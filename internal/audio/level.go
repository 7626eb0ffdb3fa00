package audio

import "math"

// Level is a display loudness value in [MinLevel, MaxLevel].
type Level float64

const (
	MinLevel Level = 0.2
	MaxLevel Level = 2.0

	levelGain    = 40
	fullScalePCM = 32768.0
)

// Measure computes the RMS amplitude of the block, scales it by a fixed gain
// and clamps it. Silent and empty blocks yield MinLevel.
func Measure(b Block) Level {
	if len(b.Samples) == 0 {
		return MinLevel
	}
	var sum float64
	for _, s := range b.Samples {
		v := float64(s) / fullScalePCM
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(b.Samples)))
	return clampLevel(Level(rms * levelGain))
}

func clampLevel(l Level) Level {
	if l < MinLevel || math.IsNaN(float64(l)) {
		return MinLevel
	}
	if l > MaxLevel {
		return MaxLevel
	}
	return l
}
