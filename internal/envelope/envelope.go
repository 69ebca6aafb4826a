// Package envelope turns played-back speech into a smoothed, decaying energy level
// used to drive a visual pulse.
package envelope

import (
	"math"
	"time"
)

const (
	// WindowSize is the analysis window length in samples.
	WindowSize = 1024
	// Throttle is the minimum spacing between playback updates.
	Throttle = 16 * time.Millisecond
	// MinStep floors the elapsed time used by both regimes.
	MinStep = 10 * time.Millisecond

	Gain          = 3.0
	Attack        = 0.35
	PlaybackDecay = 12.0
	RelaxDecay    = 1.6
	Epsilon       = 0.001

	visualFloor    = 0.015
	visualSpan     = 0.12
	visualGain     = 2.4
	speakThreshold = 0.005
)

// RMS returns the root-mean-square amplitude of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Instant maps a window RMS to an instantaneous level in [0,1].
func Instant(rms float64) float64 {
	return clamp01(clamp01(rms) * Gain)
}

// StepPlayback advances the envelope by one playback tick.
func StepPlayback(env, level, dt float64) float64 {
	if level > env {
		return clamp01(env + (level-env)*Attack)
	}
	return clamp01(env * math.Exp(-PlaybackDecay*floorStep(dt)))
}

// StepRelax advances the envelope by one relax tick and reports whether it settled at zero.
func StepRelax(env, dt float64) (float64, bool) {
	next := env * math.Exp(-RelaxDecay*floorStep(dt))
	if next < Epsilon {
		return 0, true
	}
	return clamp01(next), false
}

// Visual derives the rendered pulse strength and the speaking flag from a level.
func Visual(level float64) (pulse float64, speaking bool) {
	gate := clamp01((level - visualFloor) / visualSpan)
	return clamp01(level * gate * gate * visualGain), level > speakThreshold
}

func floorStep(dt float64) float64 {
	return math.Max(MinStep.Seconds(), dt)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
