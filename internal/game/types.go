package game

import (
	"time"
)

type GameKind string

const (
	GameKindCrash GameKind = "crash"
	GameKindColor GameKind = "color"
)

// Category tells whether a round resolved in the platform's favor ("loss" for
// the player pool) or the players' favor ("win").
type Category string

const (
	CategoryWin  Category = "win"
	CategoryLoss Category = "loss"
)

// ColorOption is one entry of the configured color wheel.
type ColorOption struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
	Payout      float64 `json:"payout"`
}

// GameParams configures a single round. Supplied at round start and never
// mutated afterwards; changes apply to subsequent rounds only.
type GameParams struct {
	LossBias      float64       `json:"loss_bias"`
	MaxMultiplier float64       `json:"max_multiplier"`
	HouseEdge     float64       `json:"house_edge"`
	MaxProfit     float64       `json:"max_profit"`
	MinStake      float64       `json:"min_stake"`
	MaxStake      float64       `json:"max_stake"`
	MaxDuration   time.Duration `json:"-"`
	RoundDuration time.Duration `json:"-"`
	Colors        []ColorOption `json:"colors,omitempty"`
}

// DefaultColors is the standard four-color wheel: three even-odds colors and
// one long-shot.
func DefaultColors() []ColorOption {
	return []ColorOption{
		{Name: "red", Probability: 0.30, Payout: 2.0},
		{Name: "green", Probability: 0.30, Payout: 2.0},
		{Name: "blue", Probability: 0.30, Payout: 2.0},
		{Name: "violet", Probability: 0.10, Payout: 14.0},
	}
}

func DefaultCrashParams() GameParams {
	return GameParams{
		LossBias:      0.55,
		MaxMultiplier: 100.0,
		HouseEdge:     0.05,
		MaxProfit:     10000.0,
		MinStake:      1.0,
		MaxStake:      10000.0,
		MaxDuration:   30 * time.Second,
	}
}

func DefaultColorParams() GameParams {
	return GameParams{
		LossBias:      0.55,
		HouseEdge:     0.05,
		MaxProfit:     10000.0,
		MinStake:      1.0,
		MaxStake:      10000.0,
		RoundDuration: 10 * time.Second,
		Colors:        DefaultColors(),
	}
}

type WagerStatus string

const (
	WagerPending WagerStatus = "pending"
	WagerWon     WagerStatus = "won"
	WagerLost    WagerStatus = "lost"
	WagerFailed  WagerStatus = "failed"
)

// Wager belongs to exactly one round. Created only while the round is
// Running, settled exactly once at completion, immutable thereafter.
type Wager struct {
	ID               string      `json:"id"`
	RoundID          string      `json:"round_id"`
	UserID           string      `json:"user_id"`
	Color            string      `json:"color,omitempty"`
	TargetMultiplier float64     `json:"target_multiplier,omitempty"`
	Stake            float64     `json:"stake"`
	Status           WagerStatus `json:"status"`
	Payout           float64     `json:"payout"`
	Profit           float64     `json:"profit"`
	PlacedAt         time.Time   `json:"placed_at"`
}

// RoundStats is finalized once, when the round completes.
type RoundStats struct {
	Wagers      int     `json:"wagers"`
	Winners     int     `json:"winners"`
	Losers      int     `json:"losers"`
	TotalStaked float64 `json:"total_staked"`
	TotalPaid   float64 `json:"total_paid"`
	MaxPayout   float64 `json:"max_payout"`
	HouseEdge   float64 `json:"house_edge"`
}

// LifetimeStats aggregates across all completed rounds of one game kind.
type LifetimeStats struct {
	Rounds            int64   `json:"rounds"`
	WinRounds         int64   `json:"win_rounds"`
	LossRounds        int64   `json:"loss_rounds"`
	TotalStaked       float64 `json:"total_staked"`
	TotalPaid         float64 `json:"total_paid"`
	HighestMultiplier float64 `json:"highest_multiplier"`
	HouseEdge         float64 `json:"house_edge"`
}

// CurvePoint is one sample of a crash round's reveal time-series.
type CurvePoint struct {
	Elapsed    float64 `json:"elapsed_ms"`
	Multiplier float64 `json:"multiplier"`
}

// TimelinePoint is one displayed tick of a color round's reveal.
type TimelinePoint struct {
	Elapsed float64 `json:"elapsed_ms"`
	Color   string  `json:"color"`
}

// RoundSnapshot is the public view of a round. The precomputed outcome stays
// hidden until the round has ended.
type RoundSnapshot struct {
	ID           string          `json:"id"`
	Kind         GameKind        `json:"kind"`
	State        RoundState      `json:"state"`
	Seed         int32           `json:"-"`
	StartedAt    time.Time       `json:"started_at,omitempty"`
	EndedAt      time.Time       `json:"ended_at,omitempty"`
	DurationMs   int64           `json:"duration_ms,omitempty"`
	Multiplier   float64         `json:"multiplier,omitempty"`
	Category     Category        `json:"category,omitempty"`
	WinningColor string          `json:"winning_color,omitempty"`
	Curve        []CurvePoint    `json:"curve,omitempty"`
	Timeline     []TimelinePoint `json:"timeline,omitempty"`
	WagerCount   int             `json:"wager_count"`
	Wagers       []Wager         `json:"wagers,omitempty"`
	Stats        *RoundStats     `json:"stats,omitempty"`
}

type EventType string

const (
	EventRoundStart EventType = "round_start"
	EventRoundEnd   EventType = "round_end"
	EventRoundDone  EventType = "round_complete"
	EventNextQueued EventType = "next_round_queued"
)

// Event is raised at each lifecycle transition and carries the round's public
// snapshot at the time of the transition.
type Event struct {
	Type  EventType     `json:"type"`
	Kind  GameKind      `json:"kind"`
	Round RoundSnapshot `json:"round"`
	At    time.Time     `json:"at"`
}

// Listener receives scheduler lifecycle events. A panicking listener is
// isolated and logged; it never stops the scheduler or other listeners.
type Listener func(Event)

// ColorBetRequest is a wager placement request against the current color round.
type ColorBetRequest struct {
	UserID string  `json:"user_id"`
	Color  string  `json:"color"`
	Amount float64 `json:"amount"`
}

type ColorBetResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	WagerID string  `json:"wager_id,omitempty"`
	RoundID string  `json:"round_id,omitempty"`
	Balance float64 `json:"balance,omitempty"`
}

// CashoutCheckRequest is the pure crash cash-out validation input. No round
// state is touched.
type CashoutCheckRequest struct {
	Stake             float64 `json:"stake"`
	CashoutMultiplier float64 `json:"cashout_multiplier"`
	CrashMultiplier   float64 `json:"crash_multiplier"`
	DelayMs           int64   `json:"delay_ms"`
	DurationMs        int64   `json:"duration_ms"`
}

type CashoutCheckResult struct {
	Valid  bool    `json:"valid"`
	Profit float64 `json:"profit"`
}

// ColorBetPreview shows the potential settlement of a stake for one color.
type ColorBetPreview struct {
	Color  string  `json:"color"`
	Payout float64 `json:"payout"`
	Profit float64 `json:"profit"`
}
