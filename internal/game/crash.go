package game

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	crashMinLoss   = 1.1
	crashMaxLoss   = 2.0
	crashLossMean  = 1.3
	crashLossSigma = 0.2
	crashMinWin    = 2.0

	crashCurvePoints = 100
)

var (
	ErrInvalidBias       = errors.New("loss bias must be between 0 and 1")
	ErrInvalidMultiplier = errors.New("max multiplier must be at least 1.0")
)

// CrashOutcome is the precomputed result of a crash round. It is decided
// before the round is presented and never recomputed.
type CrashOutcome struct {
	Multiplier float64       `json:"multiplier"`
	Category   Category      `json:"category"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"duration_ms"`
	Seed       int32         `json:"seed"`
}

// GenerateCrashOutcome decides win/loss and the final crash multiplier from a
// single seeded sequence. Loss rounds crash early (gaussian around 1.3x), win
// rounds land log-uniformly between 2.0x and the configured cap.
func GenerateCrashOutcome(params GameParams, seed int32) (CrashOutcome, error) {
	if params.LossBias < 0 || params.LossBias > 1 {
		return CrashOutcome{}, fmt.Errorf("%w: %.4f", ErrInvalidBias, params.LossBias)
	}
	if params.MaxMultiplier < 1.0 {
		return CrashOutcome{}, fmt.Errorf("%w: %.4f", ErrInvalidMultiplier, params.MaxMultiplier)
	}

	seq := NewSequence(seed)
	outcome, _ := generateCrashOutcome(params, seed, seq)
	return outcome, nil
}

// generateCrashOutcome draws from seq and returns the outcome along with the
// sequence so the curve builder can continue the same stream.
func generateCrashOutcome(params GameParams, seed int32, seq *Sequence) (CrashOutcome, *Sequence) {
	var multiplier float64
	var category Category

	if seq.Next() < params.LossBias {
		category = CategoryLoss
		multiplier = gaussian(seq, crashLossMean, crashLossSigma)
		if multiplier < crashMinLoss {
			multiplier = crashMinLoss
		}
		if multiplier > crashMaxLoss {
			multiplier = crashMaxLoss
		}
	} else {
		category = CategoryWin
		v := seq.Next()
		multiplier = crashMinWin * math.Exp(v*math.Log(params.MaxMultiplier/crashMinWin))
		if multiplier > params.MaxMultiplier {
			multiplier = params.MaxMultiplier
		}
	}

	multiplier = round4(multiplier)
	duration := crashDuration(multiplier, params.MaxDuration)

	return CrashOutcome{
		Multiplier: multiplier,
		Category:   category,
		Duration:   duration,
		DurationMs: duration.Milliseconds(),
		Seed:       seed,
	}, seq
}

// crashDuration derives how long the round runs from its final multiplier.
// Higher multipliers fly longer, capped at maxDuration.
func crashDuration(multiplier float64, maxDuration time.Duration) time.Duration {
	ms := math.Log(multiplier) * 5000.0 * (0.8 + 0.2*math.Log(multiplier+1))
	d := time.Duration(ms * float64(time.Millisecond))
	if maxDuration > 0 && d > maxDuration {
		d = maxDuration
	}
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}

// BuildCrashCurve expands a final multiplier into the 100-point reveal series.
// The curve grows exponentially toward the outcome, with small perturbations
// on interior points only. Invariants: each sample is at least 0.999x the
// previous one, no sample exceeds the final multiplier, and the last sample
// equals it exactly.
func BuildCrashCurve(outcome CrashOutcome, seq *Sequence) []CurvePoint {
	durationMs := float64(outcome.Duration.Milliseconds())
	k := math.Log(outcome.Multiplier)

	curve := make([]CurvePoint, crashCurvePoints)
	edge := crashCurvePoints / 10
	prev := 1.0

	for i := 0; i < crashCurvePoints; i++ {
		frac := float64(i) / float64(crashCurvePoints-1)
		m := math.Exp(k * frac)

		if i > edge && i < crashCurvePoints-1-edge {
			// Jitter within 2% of the local value.
			m *= 1 + (seq.Next()*2-1)*0.02
		}

		m = round4(m)
		if m > outcome.Multiplier {
			m = outcome.Multiplier
		}
		if i > 0 && m < prev*0.999 {
			// Hold flat rather than dip below the allowed floor.
			m = prev
		}
		if i == crashCurvePoints-1 {
			m = outcome.Multiplier
		}

		curve[i] = CurvePoint{
			Elapsed:    round2(frac * durationMs),
			Multiplier: m,
		}
		prev = m
	}

	return curve
}

// gaussian draws one normally distributed value via the Box-Muller transform,
// consuming exactly two values from the sequence.
func gaussian(seq *Sequence, mean, sigma float64) float64 {
	u1 := seq.Next()
	u2 := seq.Next()
	if u1 <= 0 {
		u1 = 1e-12
	}
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + sigma*z
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
