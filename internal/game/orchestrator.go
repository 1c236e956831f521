package game

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const eventLogCapacity = 200

var ErrUnknownGameKind = errors.New("unknown game kind")

// Orchestrator composes the crash and color schedulers behind one surface:
// wager placement and validation, snapshot and history reads, lifetime
// statistics and the stateless simulation path. Constructed once at startup
// and passed to the transport layer.
type Orchestrator struct {
	crash *Scheduler
	color *Scheduler

	mu     sync.Mutex
	stats  map[GameKind]*LifetimeStats
	events []Event
}

func NewOrchestrator(baseSeed int32) *Orchestrator {
	o := &Orchestrator{
		crash: NewScheduler(GameKindCrash, baseSeed, DefaultCrashParams()),
		color: NewScheduler(GameKindColor, baseSeed, DefaultColorParams()),
		stats: map[GameKind]*LifetimeStats{
			GameKindCrash: {},
			GameKindColor: {},
		},
	}
	o.crash.Subscribe(o.record)
	o.color.Subscribe(o.record)
	return o
}

// Subscribe registers a listener on both schedulers.
func (o *Orchestrator) Subscribe(l Listener) {
	o.crash.Subscribe(l)
	o.color.Subscribe(l)
}

// StartCrashGame applies the supplied parameters to subsequent crash rounds
// and begins scheduling. Returns the effective configuration.
func (o *Orchestrator) StartCrashGame(params GameParams) (GameParams, error) {
	params = mergeParams(params, DefaultCrashParams())
	if err := validateParams(GameKindCrash, params); err != nil {
		return GameParams{}, err
	}
	applied := o.crash.Configure(params)
	o.crash.Start()
	return applied, nil
}

// StartColorGame applies the supplied parameters to subsequent color rounds
// and begins scheduling. Returns the effective configuration.
func (o *Orchestrator) StartColorGame(params GameParams) (GameParams, error) {
	params = mergeParams(params, DefaultColorParams())
	if err := validateParams(GameKindColor, params); err != nil {
		return GameParams{}, err
	}
	applied := o.color.Configure(params)
	o.color.Start()
	return applied, nil
}

// Stop cancels all pending round transitions on both schedulers.
func (o *Orchestrator) Stop() {
	o.crash.Stop()
	o.color.Stop()
}

// PlaceColorBet attaches a wager to the current color round. Rejected when
// no round is Running or validation fails.
func (o *Orchestrator) PlaceColorBet(req ColorBetRequest) ColorBetResponse {
	if req.Color == "" {
		return ColorBetResponse{Success: false, Message: "Color is required"}
	}
	if req.Amount <= 0 {
		return ColorBetResponse{Success: false, Message: "Amount must be positive"}
	}

	w := &Wager{
		ID:       fmt.Sprintf("W-%s", uuid.NewString()),
		UserID:   req.UserID,
		Color:    req.Color,
		Stake:    req.Amount,
		PlacedAt: time.Now(),
	}
	if err := o.color.PlaceWager(w); err != nil {
		return ColorBetResponse{Success: false, Message: betRejectionMessage(err)}
	}

	log.Printf("[COLOR] User %s wagered %.2f on %s (round %s)", req.UserID, req.Amount, req.Color, w.RoundID)
	return ColorBetResponse{
		Success: true,
		Message: "Bet placed successfully",
		WagerID: w.ID,
		RoundID: w.RoundID,
	}
}

// ValidateCrashCashout is the pure cash-out check. No round is touched.
func (o *Orchestrator) ValidateCrashCashout(req CashoutCheckRequest) CashoutCheckResult {
	return CrashCashoutProfit(
		req.Stake,
		req.CashoutMultiplier,
		req.CrashMultiplier,
		time.Duration(req.DelayMs)*time.Millisecond,
		time.Duration(req.DurationMs)*time.Millisecond,
	)
}

// ValidateColorBet checks a prospective wager and previews the potential
// settlement for every configured color.
func (o *Orchestrator) ValidateColorBet(req ColorBetRequest) (bool, string, []ColorBetPreview) {
	params := o.color.Params()

	if req.Amount < params.MinStake || req.Amount > params.MaxStake {
		return false, fmt.Sprintf("Stake must be between %.2f and %.2f", params.MinStake, params.MaxStake), nil
	}
	if !hasColor(params.Colors, req.Color) {
		return false, fmt.Sprintf("Unknown color %q", req.Color), nil
	}
	return true, "OK", ColorBetPreviews(params, req.Amount)
}

// CurrentRound returns the public snapshot of the current round of a kind.
func (o *Orchestrator) CurrentRound(kind GameKind) (RoundSnapshot, bool) {
	s, ok := o.scheduler(kind)
	if !ok {
		return RoundSnapshot{}, false
	}
	return s.CurrentSnapshot()
}

// RoundHistory returns up to limit completed rounds of a kind, newest first.
func (o *Orchestrator) RoundHistory(kind GameKind, limit int) []RoundSnapshot {
	s, ok := o.scheduler(kind)
	if !ok {
		return nil
	}
	return s.History(limit)
}

// Stats returns the lifetime aggregates for a game kind.
func (o *Orchestrator) Stats(kind GameKind) LifetimeStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.stats[kind]; ok {
		return *st
	}
	return LifetimeStats{}
}

// Events returns up to limit recent lifecycle events, newest first.
func (o *Orchestrator) Events(limit int) []Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, limit)
	for i := 0; i < limit; i++ {
		out[i] = o.events[n-1-i]
	}
	return out
}

// SimulateCrash generates n independent crash outcomes with incrementing
// seeds. Used for fairness analysis; no live round is involved.
func (o *Orchestrator) SimulateCrash(params GameParams, baseSeed int32, n int) ([]CrashOutcome, error) {
	params = mergeParams(params, DefaultCrashParams())
	if err := validateParams(GameKindCrash, params); err != nil {
		return nil, err
	}
	out := make([]CrashOutcome, n)
	for i := 0; i < n; i++ {
		outcome, err := GenerateCrashOutcome(params, baseSeed+int32(i))
		if err != nil {
			return nil, err
		}
		out[i] = outcome
	}
	return out, nil
}

// SimulateColor generates n independent color outcomes with incrementing
// seeds. Each draw uses an empty history; anti-streak rules apply only to
// live rounds.
func (o *Orchestrator) SimulateColor(params GameParams, baseSeed int32, n int) ([]ColorOutcome, error) {
	params = mergeParams(params, DefaultColorParams())
	if err := validateParams(GameKindColor, params); err != nil {
		return nil, err
	}
	out := make([]ColorOutcome, n)
	for i := 0; i < n; i++ {
		outcome, err := GenerateColorOutcome(params, baseSeed+int32(i), nil)
		if err != nil {
			return nil, err
		}
		out[i] = outcome
	}
	return out, nil
}

func (o *Orchestrator) scheduler(kind GameKind) (*Scheduler, bool) {
	switch kind {
	case GameKindCrash:
		return o.crash, true
	case GameKindColor:
		return o.color, true
	default:
		return nil, false
	}
}

// record is the orchestrator's own listener: it folds completed rounds into
// the lifetime statistics and keeps the capped audit log of events.
func (o *Orchestrator) record(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.events = append(o.events, ev)
	if len(o.events) > eventLogCapacity {
		o.events = o.events[1:]
	}

	if ev.Type != EventRoundDone {
		return
	}
	st := o.stats[ev.Kind]
	st.Rounds++
	switch ev.Round.Category {
	case CategoryWin:
		st.WinRounds++
	case CategoryLoss:
		st.LossRounds++
	}
	if ev.Round.Multiplier > st.HighestMultiplier {
		st.HighestMultiplier = ev.Round.Multiplier
	}
	if ev.Round.Stats != nil {
		st.TotalStaked += ev.Round.Stats.TotalStaked
		st.TotalPaid += ev.Round.Stats.TotalPaid
	}
	if st.TotalStaked > 0 {
		st.HouseEdge = round4((st.TotalStaked - st.TotalPaid) / st.TotalStaked)
	}
}

// mergeParams fills zero-valued fields from the kind's defaults so callers
// can supply partial configuration.
func mergeParams(p, def GameParams) GameParams {
	if p.MaxMultiplier == 0 {
		p.MaxMultiplier = def.MaxMultiplier
	}
	if p.HouseEdge == 0 {
		p.HouseEdge = def.HouseEdge
	}
	if p.MaxProfit == 0 {
		p.MaxProfit = def.MaxProfit
	}
	if p.MinStake == 0 {
		p.MinStake = def.MinStake
	}
	if p.MaxStake == 0 {
		p.MaxStake = def.MaxStake
	}
	if p.MaxDuration == 0 {
		p.MaxDuration = def.MaxDuration
	}
	if p.RoundDuration == 0 {
		p.RoundDuration = def.RoundDuration
	}
	if len(p.Colors) == 0 {
		p.Colors = def.Colors
	}
	return p
}

func validateParams(kind GameKind, p GameParams) error {
	if p.LossBias < 0 || p.LossBias > 1 {
		return fmt.Errorf("%w: %.4f", ErrInvalidBias, p.LossBias)
	}
	if kind == GameKindCrash && p.MaxMultiplier < 1.0 {
		return fmt.Errorf("%w: %.4f", ErrInvalidMultiplier, p.MaxMultiplier)
	}
	if kind == GameKindColor && len(p.Colors) == 0 {
		return ErrNoColors
	}
	if p.MinStake < 0 || p.MaxStake < p.MinStake {
		return fmt.Errorf("%w: min %.2f max %.2f", ErrInvalidStake, p.MinStake, p.MaxStake)
	}
	return nil
}

func betRejectionMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoundNotRunning):
		return "No color round is accepting bets"
	case errors.Is(err, ErrInvalidStake):
		return "Stake outside allowed bounds"
	case errors.Is(err, ErrUnknownColor):
		return "Unknown color"
	default:
		return "Bet rejected"
	}
}
