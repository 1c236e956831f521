package game

import (
	"errors"
	"fmt"
	"time"
)

type RoundState string

const (
	RoundIdle      RoundState = "idle"
	RoundRunning   RoundState = "running"
	RoundEnded     RoundState = "ended"
	RoundCompleted RoundState = "completed"
	RoundDiscarded RoundState = "discarded"
)

var (
	ErrIllegalTransition = errors.New("illegal round transition")
	ErrRoundNotRunning   = errors.New("round is not accepting wagers")
	ErrInvalidStake      = errors.New("stake outside configured bounds")
	ErrUnknownColor      = errors.New("color not in configured set")
)

// Round is one full game lifecycle. The outcome is computed exactly once, on
// entry to Running, and every reveal sample derives from that outcome plus
// the round's seed. A round is owned by its scheduler until completion.
type Round struct {
	ID     string
	Kind   GameKind
	State  RoundState
	Seed   int32
	Params GameParams

	CreatedAt   time.Time
	StartedAt   time.Time
	EndedAt     time.Time
	CompletedAt time.Time

	Crash    *CrashOutcome
	Curve    []CurvePoint
	Color    *ColorOutcome
	Timeline []TimelinePoint

	Wagers []*Wager
	Stats  *RoundStats

	settled bool
}

// NewRound creates an idle round with its seed already derived from the id.
func NewRound(kind GameKind, id string, baseSeed int32, params GameParams) *Round {
	return &Round{
		ID:        id,
		Kind:      kind,
		State:     RoundIdle,
		Seed:      DeriveSeed(baseSeed, id),
		Params:    params,
		CreatedAt: time.Now(),
	}
}

func canTransition(from, to RoundState) bool {
	switch to {
	case RoundRunning:
		return from == RoundIdle
	case RoundEnded:
		return from == RoundRunning
	case RoundCompleted:
		return from == RoundEnded
	case RoundDiscarded:
		return from != RoundCompleted && from != RoundDiscarded
	default:
		return false
	}
}

// Start moves the round to Running and freezes its randomness: the outcome
// and the full reveal series are generated here, once, from the round seed.
// recent carries the winning colors of the most recent color rounds for the
// anti-streak rules; it is ignored for crash rounds.
func (r *Round) Start(recent []string) error {
	if !canTransition(r.State, RoundRunning) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.State, RoundRunning)
	}

	if r.Crash == nil && r.Color == nil {
		seq := NewSequence(r.Seed)
		switch r.Kind {
		case GameKindCrash:
			if r.Params.LossBias < 0 || r.Params.LossBias > 1 {
				return fmt.Errorf("%w: %.4f", ErrInvalidBias, r.Params.LossBias)
			}
			if r.Params.MaxMultiplier < 1.0 {
				return fmt.Errorf("%w: %.4f", ErrInvalidMultiplier, r.Params.MaxMultiplier)
			}
			outcome, seq := generateCrashOutcome(r.Params, r.Seed, seq)
			r.Crash = &outcome
			r.Curve = BuildCrashCurve(outcome, seq)
		case GameKindColor:
			if r.Params.LossBias < 0 || r.Params.LossBias > 1 {
				return fmt.Errorf("%w: %.4f", ErrInvalidBias, r.Params.LossBias)
			}
			if len(r.Params.Colors) == 0 {
				return ErrNoColors
			}
			outcome, seq := generateColorOutcome(r.Params, r.Seed, recent, seq)
			r.Color = &outcome
			r.Timeline = BuildColorTimeline(outcome, r.Params.Colors, r.Params.RoundDuration, seq)
		}
	}

	r.State = RoundRunning
	r.StartedAt = time.Now()
	return nil
}

// End moves the round to Ended, making the precomputed outcome authoritative
// and visible.
func (r *Round) End() error {
	if !canTransition(r.State, RoundEnded) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.State, RoundEnded)
	}
	r.State = RoundEnded
	r.EndedAt = time.Now()
	return nil
}

// Complete settles all wagers, finalizes statistics and freezes the round.
// Settlement runs exactly once; completing an already-completed round is an
// illegal transition and changes nothing.
func (r *Round) Complete() error {
	if !canTransition(r.State, RoundCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.State, RoundCompleted)
	}

	if !r.settled {
		r.settle()
		r.settled = true
	}

	r.State = RoundCompleted
	r.CompletedAt = time.Now()
	return nil
}

// Discard tears the round down from any non-terminal state. Pending wagers
// are left as-is; the round is never resumed.
func (r *Round) Discard() error {
	if !canTransition(r.State, RoundDiscarded) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.State, RoundDiscarded)
	}
	r.State = RoundDiscarded
	return nil
}

// PlaceWager attaches a wager. Only legal while the round is Running; once
// the round has moved on, late wagers are rejected, never queued.
func (r *Round) PlaceWager(w *Wager) error {
	if r.State != RoundRunning {
		return ErrRoundNotRunning
	}
	if w.Stake < r.Params.MinStake || w.Stake > r.Params.MaxStake {
		return fmt.Errorf("%w: %.2f", ErrInvalidStake, w.Stake)
	}
	if r.Kind == GameKindColor && !hasColor(r.Params.Colors, w.Color) {
		return fmt.Errorf("%w: %s", ErrUnknownColor, w.Color)
	}
	w.RoundID = r.ID
	w.Status = WagerPending
	r.Wagers = append(r.Wagers, w)
	return nil
}

// settle resolves every attached wager against the precomputed outcome. A
// malformed wager is marked failed and excluded from totals; the rest still
// settle.
func (r *Round) settle() {
	stats := RoundStats{}

	for _, w := range r.Wagers {
		if w.Stake <= 0 {
			w.Status = WagerFailed
			continue
		}

		switch r.Kind {
		case GameKindColor:
			if r.Color == nil || !hasColor(r.Params.Colors, w.Color) {
				w.Status = WagerFailed
				continue
			}
			settleColorWager(w, r.Color.WinningColor, r.Params)
		case GameKindCrash:
			if r.Crash == nil || w.TargetMultiplier <= 0 {
				w.Status = WagerFailed
				continue
			}
			settleCrashWager(w, r.Crash)
		default:
			w.Status = WagerFailed
			continue
		}

		stats.Wagers++
		stats.TotalStaked += w.Stake
		stats.TotalPaid += w.Payout
		if w.Status == WagerWon {
			stats.Winners++
		} else {
			stats.Losers++
		}
		if w.Payout > stats.MaxPayout {
			stats.MaxPayout = w.Payout
		}
	}

	if stats.TotalStaked > 0 {
		stats.HouseEdge = round4((stats.TotalStaked - stats.TotalPaid) / stats.TotalStaked)
	}
	r.Stats = &stats
}

// Duration is how long the round runs between start and end.
func (r *Round) Duration() time.Duration {
	if r.Kind == GameKindCrash && r.Crash != nil {
		return r.Crash.Duration
	}
	return r.Params.RoundDuration
}

// Snapshot is the public view. The outcome and reveal series stay hidden
// until the round has ended; settled wagers appear once completed.
func (r *Round) Snapshot() RoundSnapshot {
	snap := RoundSnapshot{
		ID:         r.ID,
		Kind:       r.Kind,
		State:      r.State,
		Seed:       r.Seed,
		StartedAt:  r.StartedAt,
		EndedAt:    r.EndedAt,
		WagerCount: len(r.Wagers),
	}

	if r.State == RoundRunning || r.State == RoundEnded || r.State == RoundCompleted {
		snap.DurationMs = r.Duration().Milliseconds()
	}

	revealed := r.State == RoundEnded || r.State == RoundCompleted
	if revealed {
		if r.Crash != nil {
			snap.Multiplier = r.Crash.Multiplier
			snap.Category = r.Crash.Category
			snap.Curve = r.Curve
		}
		if r.Color != nil {
			snap.WinningColor = r.Color.WinningColor
			snap.Category = r.Color.Category
			snap.Timeline = r.Timeline
		}
	}

	if r.State == RoundCompleted {
		snap.Stats = r.Stats
		snap.Wagers = make([]Wager, len(r.Wagers))
		for i, w := range r.Wagers {
			snap.Wagers[i] = *w
		}
	}

	return snap
}

func hasColor(colors []ColorOption, name string) bool {
	for _, c := range colors {
		if c.Name == name {
			return true
		}
	}
	return false
}
