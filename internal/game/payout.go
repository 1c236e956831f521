package game

import (
	"math"
	"time"
)

// CrashCashoutProfit validates a crash cash-out and computes its profit. The
// cash-out only succeeds when the target multiplier is below the crash point
// and the effective cash-out time (the target's position along the growth
// curve plus the processing delay) falls strictly before the crash. A failed
// cash-out loses the whole stake. Money is rounded to 2 decimals here, at the
// point of computation.
func CrashCashoutProfit(stake, cashout, crash float64, delay, duration time.Duration) CashoutCheckResult {
	valid := stake > 0 && cashout >= 1.0 && crash > 1.0 && cashout < crash

	if valid {
		position := math.Log(cashout) / math.Log(crash)
		effective := time.Duration(position*float64(duration)) + delay
		valid = effective < duration
	}

	if !valid {
		return CashoutCheckResult{Valid: false, Profit: round2(-stake)}
	}
	return CashoutCheckResult{Valid: true, Profit: round2(stake*cashout - stake)}
}

// settleCrashWager resolves a round-attached crash wager at its target
// multiplier, with no extra processing delay.
func settleCrashWager(w *Wager, outcome *CrashOutcome) {
	res := CrashCashoutProfit(w.Stake, w.TargetMultiplier, outcome.Multiplier, 0, outcome.Duration)
	w.Profit = res.Profit
	if res.Valid {
		w.Status = WagerWon
		w.Payout = round2(w.Stake + res.Profit)
	} else {
		w.Status = WagerLost
		w.Payout = 0
	}
}

// settleColorWager resolves a color wager against the winning color. Winning
// payouts take the house edge off the top and are capped so profit never
// exceeds the configured maximum.
func settleColorWager(w *Wager, winner string, params GameParams) {
	if w.Color != winner {
		w.Status = WagerLost
		w.Payout = 0
		w.Profit = round2(-w.Stake)
		return
	}

	payout := round2(w.Stake * colorPayout(params.Colors, w.Color) * (1 - params.HouseEdge))
	profit := round2(payout - w.Stake)
	if params.MaxProfit > 0 && profit > params.MaxProfit {
		profit = round2(params.MaxProfit)
		payout = round2(w.Stake + profit)
	}

	w.Status = WagerWon
	w.Payout = payout
	w.Profit = profit
}

// ColorBetPreviews computes the potential settlement of a stake for every
// configured color. Pure; no round state is touched.
func ColorBetPreviews(params GameParams, stake float64) []ColorBetPreview {
	previews := make([]ColorBetPreview, len(params.Colors))
	for i, c := range params.Colors {
		w := Wager{Color: c.Name, Stake: stake}
		settleColorWager(&w, c.Name, params)
		previews[i] = ColorBetPreview{
			Color:  c.Name,
			Payout: w.Payout,
			Profit: w.Profit,
		}
	}
	return previews
}

func colorPayout(colors []ColorOption, name string) float64 {
	for _, c := range colors {
		if c.Name == name {
			return c.Payout
		}
	}
	return 0
}
