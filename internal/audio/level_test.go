package audio

import (
	"math"
	"math/rand"
	"testing"
)

func TestMeasure_SilentBlockYieldsFloor(t *testing.T) {
	got := Measure(Block{Samples: make([]int16, DefaultBlockSize), SampleRate: DefaultSampleRate})
	if got != MinLevel {
		t.Fatalf("expected %v for silence, got %v", MinLevel, got)
	}
}

func TestMeasure_EmptyBlockYieldsFloor(t *testing.T) {
	if got := Measure(Block{}); got != MinLevel {
		t.Fatalf("expected %v for empty block, got %v", MinLevel, got)
	}
}

func TestMeasure_FullScaleClampsToCeiling(t *testing.T) {
	samples := make([]int16, 256)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = math.MaxInt16
		} else {
			samples[i] = math.MinInt16
		}
	}
	if got := Measure(Block{Samples: samples}); got != MaxLevel {
		t.Fatalf("expected %v for full scale, got %v", MaxLevel, got)
	}
}

func TestMeasure_ScalesRMSByGain(t *testing.T) {
	// constant amplitude 0.025 of full scale -> rms 0.025 -> level 1.0
	frac := 0.025
	amp := int16(frac * fullScalePCM)
	samples := make([]int16, 480)
	for i := range samples {
		samples[i] = amp
	}
	got := float64(Measure(Block{Samples: samples}))
	want := float64(amp) / fullScalePCM * levelGain
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMeasure_AlwaysWithinBounds(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		samples := make([]int16, r.Intn(2048))
		scale := r.Intn(math.MaxInt16 + 1)
		for i := range samples {
			if scale > 0 {
				samples[i] = int16(r.Intn(2*scale+1) - scale)
			}
		}
		got := Measure(Block{Samples: samples})
		if got < MinLevel || got > MaxLevel {
			t.Fatalf("level %v out of bounds for block of %d samples", got, len(samples))
		}
	}
}
