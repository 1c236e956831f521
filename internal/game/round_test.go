package game

import (
	"errors"
	"reflect"
	"testing"
)

func newTestCrashRound(id string) *Round {
	return NewRound(GameKindCrash, id, 12345, crashTestParams())
}

func newTestColorRound(id string) *Round {
	return NewRound(GameKindColor, id, 12345, colorTestParams())
}

func TestRound_Lifecycle(t *testing.T) {
	r := newTestCrashRound("lifecycle-1")

	if r.State != RoundIdle {
		t.Fatalf("new round state = %v, want idle", r.State)
	}

	if err := r.Start(nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if r.State != RoundRunning {
		t.Fatalf("state = %v, want running", r.State)
	}
	if r.Crash == nil || len(r.Curve) != crashCurvePoints {
		t.Fatal("outcome and curve should be computed on start")
	}

	if err := r.End(); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if r.State != RoundEnded {
		t.Fatalf("state = %v, want ended", r.State)
	}

	if err := r.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if r.State != RoundCompleted {
		t.Fatalf("state = %v, want completed", r.State)
	}
	if r.Stats == nil {
		t.Fatal("stats should be finalized on completion")
	}
}

func TestRound_IllegalTransitions(t *testing.T) {
	t.Run("end on idle round", func(t *testing.T) {
		r := newTestCrashRound("illegal-1")

		err := r.End()
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("End() error = %v, want %v", err, ErrIllegalTransition)
		}
		if r.State != RoundIdle {
			t.Errorf("state = %v, want idle unchanged", r.State)
		}
	})

	t.Run("complete on running round", func(t *testing.T) {
		r := newTestCrashRound("illegal-2")
		r.Start(nil)

		err := r.Complete()
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("Complete() error = %v, want %v", err, ErrIllegalTransition)
		}
		if r.State != RoundRunning {
			t.Errorf("state = %v, want running unchanged", r.State)
		}
	})

	t.Run("start twice", func(t *testing.T) {
		r := newTestCrashRound("illegal-3")
		r.Start(nil)

		err := r.Start(nil)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("second Start() error = %v, want %v", err, ErrIllegalTransition)
		}
	})

	t.Run("discard completed round", func(t *testing.T) {
		r := newTestCrashRound("illegal-4")
		r.Start(nil)
		r.End()
		r.Complete()

		err := r.Discard()
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("Discard() error = %v, want %v", err, ErrIllegalTransition)
		}
		if r.State != RoundCompleted {
			t.Errorf("state = %v, want completed unchanged", r.State)
		}
	})
}

func TestRound_DiscardFromNonTerminal(t *testing.T) {
	states := []struct {
		name  string
		setup func(r *Round)
	}{
		{name: "idle", setup: func(r *Round) {}},
		{name: "running", setup: func(r *Round) { r.Start(nil) }},
		{name: "ended", setup: func(r *Round) { r.Start(nil); r.End() }},
	}

	for _, tt := range states {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestCrashRound("discard-" + tt.name)
			tt.setup(r)

			if err := r.Discard(); err != nil {
				t.Fatalf("Discard() error = %v", err)
			}
			if r.State != RoundDiscarded {
				t.Fatalf("state = %v, want discarded", r.State)
			}
		})
	}
}

func TestRound_OutcomeComputedOnce(t *testing.T) {
	a := newTestCrashRound("repro-round")
	b := newTestCrashRound("repro-round")

	a.Start(nil)
	b.Start(nil)

	if *a.Crash != *b.Crash {
		t.Fatalf("same id produced different outcomes: %+v != %+v", *a.Crash, *b.Crash)
	}
	if !reflect.DeepEqual(a.Curve, b.Curve) {
		t.Fatal("same id produced different curves")
	}
}

func TestRound_WagerPlacement(t *testing.T) {
	t.Run("rejected before start", func(t *testing.T) {
		r := newTestColorRound("wager-1")

		err := r.PlaceWager(&Wager{ID: "w1", Color: "red", Stake: 50})
		if !errors.Is(err, ErrRoundNotRunning) {
			t.Errorf("PlaceWager() error = %v, want %v", err, ErrRoundNotRunning)
		}
	})

	t.Run("rejected after end", func(t *testing.T) {
		r := newTestColorRound("wager-2")
		r.Start(nil)
		r.End()

		err := r.PlaceWager(&Wager{ID: "w1", Color: "red", Stake: 50})
		if !errors.Is(err, ErrRoundNotRunning) {
			t.Errorf("PlaceWager() error = %v, want %v", err, ErrRoundNotRunning)
		}
	})

	t.Run("stake bounds enforced", func(t *testing.T) {
		r := newTestColorRound("wager-3")
		r.Start(nil)

		err := r.PlaceWager(&Wager{ID: "w1", Color: "red", Stake: 0.5})
		if !errors.Is(err, ErrInvalidStake) {
			t.Errorf("PlaceWager() error = %v, want %v", err, ErrInvalidStake)
		}
	})

	t.Run("unknown color rejected", func(t *testing.T) {
		r := newTestColorRound("wager-4")
		r.Start(nil)

		err := r.PlaceWager(&Wager{ID: "w1", Color: "chartreuse", Stake: 50})
		if !errors.Is(err, ErrUnknownColor) {
			t.Errorf("PlaceWager() error = %v, want %v", err, ErrUnknownColor)
		}
	})

	t.Run("accepted while running", func(t *testing.T) {
		r := newTestColorRound("wager-5")
		r.Start(nil)

		w := &Wager{ID: "w1", Color: "red", Stake: 50}
		if err := r.PlaceWager(w); err != nil {
			t.Fatalf("PlaceWager() error = %v", err)
		}
		if w.RoundID != r.ID || w.Status != WagerPending {
			t.Errorf("wager not bound to round: %+v", w)
		}
	})
}

func TestRound_Settlement(t *testing.T) {
	r := newTestColorRound("settle-1")
	r.Start(nil)

	winner := r.Color.WinningColor
	var loser string
	for _, c := range r.Params.Colors {
		if c.Name != winner {
			loser = c.Name
			break
		}
	}

	won := &Wager{ID: "w-win", Color: winner, Stake: 50}
	lost := &Wager{ID: "w-lose", Color: loser, Stake: 50}
	r.PlaceWager(won)
	r.PlaceWager(lost)

	// A malformed wager settles as failed and is excluded from totals.
	bad := &Wager{ID: "w-bad", Color: winner, Stake: 50}
	r.PlaceWager(bad)
	bad.Stake = 0

	r.End()
	if err := r.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if won.Status != WagerWon {
		t.Errorf("winning wager status = %v, want won", won.Status)
	}
	if lost.Status != WagerLost || lost.Profit != -50 {
		t.Errorf("losing wager = %+v, want lost with -50 profit", lost)
	}
	if bad.Status != WagerFailed {
		t.Errorf("malformed wager status = %v, want failed", bad.Status)
	}

	if r.Stats.Wagers != 2 {
		t.Errorf("stats count %d wagers, want 2 (failed excluded)", r.Stats.Wagers)
	}
	if r.Stats.TotalStaked != 100 {
		t.Errorf("total staked = %v, want 100", r.Stats.TotalStaked)
	}
	if r.Stats.Winners != 1 || r.Stats.Losers != 1 {
		t.Errorf("winners/losers = %d/%d, want 1/1", r.Stats.Winners, r.Stats.Losers)
	}
}

func TestRound_SettlementIdempotent(t *testing.T) {
	r := newTestColorRound("settle-2")
	r.Start(nil)
	r.PlaceWager(&Wager{ID: "w1", Color: "red", Stake: 50})
	r.End()
	r.Complete()

	before := *r.Stats
	wagerBefore := *r.Wagers[0]

	if err := r.Complete(); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("second Complete() error = %v, want %v", err, ErrIllegalTransition)
	}
	if *r.Stats != before {
		t.Error("stats changed on repeated completion")
	}
	if *r.Wagers[0] != wagerBefore {
		t.Error("wager changed on repeated completion")
	}
}

func TestRound_SnapshotHidesOutcomeUntilEnded(t *testing.T) {
	r := newTestCrashRound("snap-1")
	r.Start(nil)

	running := r.Snapshot()
	if running.Multiplier != 0 || running.Curve != nil {
		t.Error("running snapshot should not reveal the outcome")
	}

	r.End()
	ended := r.Snapshot()
	if ended.Multiplier != r.Crash.Multiplier {
		t.Errorf("ended snapshot multiplier = %v, want %v", ended.Multiplier, r.Crash.Multiplier)
	}
	if len(ended.Curve) != crashCurvePoints {
		t.Error("ended snapshot should carry the reveal curve")
	}
}
