package game

import (
	"errors"
	"fmt"
	"time"
)

const (
	colorStreakLength = 3
	colorTickInterval = 200 * time.Millisecond

	// Probability that a platform-favorable round picks the color least
	// recently seen, rather than a payout-weighted one. Demo policy constant,
	// not a fairness guarantee.
	colorStaleBias = 0.7

	colorRevealStart = 0.8
	colorRampFloor   = 0.3
)

var ErrNoColors = errors.New("color set must not be empty")

// ColorOutcome is the precomputed result of a color round.
type ColorOutcome struct {
	WinningColor string   `json:"winning_color"`
	Category     Category `json:"category"`
	Seed         int32    `json:"seed"`
}

// GenerateColorOutcome decides the winning color for a round. One draw picks
// platform-win vs player-win; the player branch selects by configured
// probability with forced streak breaking, the platform branch favors stale
// or high-payout colors to shape dramatic losses.
func GenerateColorOutcome(params GameParams, seed int32, recent []string) (ColorOutcome, error) {
	if params.LossBias < 0 || params.LossBias > 1 {
		return ColorOutcome{}, fmt.Errorf("%w: %.4f", ErrInvalidBias, params.LossBias)
	}
	if len(params.Colors) == 0 {
		return ColorOutcome{}, ErrNoColors
	}

	seq := NewSequence(seed)
	outcome, _ := generateColorOutcome(params, seed, recent, seq)
	return outcome, nil
}

func generateColorOutcome(params GameParams, seed int32, recent []string, seq *Sequence) (ColorOutcome, *Sequence) {
	var winner string
	var category Category

	if seq.Next() < params.LossBias {
		category = CategoryLoss
		if seq.Next() < colorStaleBias {
			winner = leastRecentColor(params.Colors, recent)
		} else {
			winner = payoutWeightedColor(params.Colors, seq)
		}
	} else {
		category = CategoryWin
		winner = playerWinColor(params.Colors, recent, seq)
	}

	return ColorOutcome{
		WinningColor: winner,
		Category:     category,
		Seed:         seed,
	}, seq
}

// playerWinColor selects by cumulative probability. If the last three rounds
// all landed on the same color, that color is excluded before the draw.
func playerWinColor(colors []ColorOption, recent []string, seq *Sequence) string {
	excluded := streakColor(recent)

	pool := make([]ColorOption, 0, len(colors))
	total := 0.0
	for _, c := range colors {
		if c.Name == excluded && len(colors) > 1 {
			continue
		}
		pool = append(pool, c)
		total += c.Probability
	}

	draw := seq.Next() * total
	cum := 0.0
	for _, c := range pool {
		cum += c.Probability
		if draw < cum {
			return c.Name
		}
	}
	return pool[len(pool)-1].Name
}

// streakColor returns the color that won each of the last colorStreakLength
// rounds, or "" when there is no such streak.
func streakColor(recent []string) string {
	if len(recent) < colorStreakLength {
		return ""
	}
	last := recent[len(recent)-1]
	for i := len(recent) - colorStreakLength; i < len(recent); i++ {
		if recent[i] != last {
			return ""
		}
	}
	return last
}

// leastRecentColor picks the configured color whose last win lies furthest
// back in history. Colors never seen win the tie, in configuration order.
func leastRecentColor(colors []ColorOption, recent []string) string {
	best := colors[0].Name
	bestAge := -1

	for _, c := range colors {
		age := len(recent) + 1
		for i := len(recent) - 1; i >= 0; i-- {
			if recent[i] == c.Name {
				age = len(recent) - 1 - i
				break
			}
		}
		if age > bestAge {
			bestAge = age
			best = c.Name
		}
	}
	return best
}

// payoutWeightedColor selects with weight proportional to payout multiplier,
// so high-payout colors show up disproportionately in forced losses.
func payoutWeightedColor(colors []ColorOption, seq *Sequence) string {
	total := 0.0
	for _, c := range colors {
		total += c.Payout
	}
	draw := seq.Next() * total
	cum := 0.0
	for _, c := range colors {
		cum += c.Payout
		if draw < cum {
			return c.Name
		}
	}
	return colors[len(colors)-1].Name
}

// BuildColorTimeline expands a winning color into the suspense reveal: fixed
// 200ms ticks, random colors for the first 80%, then a linear 30%->100% ramp
// toward the true winner. The final tick always shows the winning color.
func BuildColorTimeline(outcome ColorOutcome, colors []ColorOption, duration time.Duration, seq *Sequence) []TimelinePoint {
	ticks := int(duration / colorTickInterval)
	if ticks < 5 {
		ticks = 5
	}

	timeline := make([]TimelinePoint, ticks)
	revealAt := int(float64(ticks) * colorRevealStart)

	for i := 0; i < ticks; i++ {
		var name string
		switch {
		case i == ticks-1:
			name = outcome.WinningColor
		case i < revealAt:
			name = colors[seq.NextIndex(len(colors))].Name
		default:
			// Reveal phase: probability of showing the winner ramps from
			// 30% to 100% across the phase.
			progress := float64(i-revealAt) / float64(ticks-revealAt)
			p := colorRampFloor + (1-colorRampFloor)*progress
			if seq.Next() < p {
				name = outcome.WinningColor
			} else {
				name = otherColor(colors, outcome.WinningColor, seq)
			}
		}

		timeline[i] = TimelinePoint{
			Elapsed: float64(i) * float64(colorTickInterval.Milliseconds()),
			Color:   name,
		}
	}

	return timeline
}

func otherColor(colors []ColorOption, winner string, seq *Sequence) string {
	others := make([]string, 0, len(colors))
	for _, c := range colors {
		if c.Name != winner {
			others = append(others, c.Name)
		}
	}
	if len(others) == 0 {
		return winner
	}
	return others[seq.NextIndex(len(others))]
}
