package game

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestOrchestrator_StartGameValidation(t *testing.T) {
	o := NewOrchestrator(12345)
	defer o.Stop()

	t.Run("crash rejects bad bias", func(t *testing.T) {
		params := DefaultCrashParams()
		params.LossBias = 1.5

		_, err := o.StartCrashGame(params)
		if !errors.Is(err, ErrInvalidBias) {
			t.Errorf("error = %v, want %v", err, ErrInvalidBias)
		}
	})

	t.Run("partial params filled from defaults", func(t *testing.T) {
		applied, err := o.StartCrashGame(GameParams{LossBias: 0.7})
		if err != nil {
			t.Fatalf("StartCrashGame() error = %v", err)
		}
		if applied.LossBias != 0.7 {
			t.Errorf("LossBias = %v, want 0.7 kept", applied.LossBias)
		}
		if applied.MaxMultiplier != DefaultCrashParams().MaxMultiplier {
			t.Errorf("MaxMultiplier = %v, want default", applied.MaxMultiplier)
		}
		if applied.MaxDuration != DefaultCrashParams().MaxDuration {
			t.Errorf("MaxDuration = %v, want default", applied.MaxDuration)
		}
	})

	t.Run("zero bias survives merging", func(t *testing.T) {
		o2 := NewOrchestrator(1)
		defer o2.Stop()

		applied, err := o2.StartCrashGame(GameParams{LossBias: 0, MaxMultiplier: 50})
		if err != nil {
			t.Fatalf("StartCrashGame() error = %v", err)
		}
		if applied.LossBias != 0 {
			t.Errorf("LossBias = %v, want 0 preserved", applied.LossBias)
		}
	})
}

func TestOrchestrator_PlaceColorBet(t *testing.T) {
	o := NewOrchestrator(12345)
	defer o.Stop()

	t.Run("rejected before the game starts", func(t *testing.T) {
		resp := o.PlaceColorBet(ColorBetRequest{UserID: "u1", Color: "red", Amount: 50})
		if resp.Success {
			t.Error("bet accepted with no running round")
		}
	})

	t.Run("rejected without a color", func(t *testing.T) {
		resp := o.PlaceColorBet(ColorBetRequest{UserID: "u1", Amount: 50})
		if resp.Success {
			t.Error("bet accepted without a color")
		}
	})

	t.Run("rejected with non-positive amount", func(t *testing.T) {
		resp := o.PlaceColorBet(ColorBetRequest{UserID: "u1", Color: "red", Amount: 0})
		if resp.Success {
			t.Error("bet accepted with zero amount")
		}
	})

	t.Run("accepted against a running round", func(t *testing.T) {
		params := DefaultColorParams()
		params.RoundDuration = 5 * time.Second
		if _, err := o.StartColorGame(params); err != nil {
			t.Fatalf("StartColorGame() error = %v", err)
		}

		resp := o.PlaceColorBet(ColorBetRequest{UserID: "u1", Color: "red", Amount: 50})
		if !resp.Success {
			t.Fatalf("bet rejected: %s", resp.Message)
		}
		if resp.WagerID == "" || resp.RoundID == "" {
			t.Errorf("response missing identifiers: %+v", resp)
		}

		snap, ok := o.CurrentRound(GameKindColor)
		if !ok || snap.ID != resp.RoundID {
			t.Errorf("bet bound to round %s, current is %s", resp.RoundID, snap.ID)
		}
		if snap.WagerCount != 1 {
			t.Errorf("current round has %d wagers, want 1", snap.WagerCount)
		}
	})
}

func TestOrchestrator_ValidateColorBet(t *testing.T) {
	o := NewOrchestrator(12345)

	t.Run("valid stake previews every color", func(t *testing.T) {
		ok, msg, previews := o.ValidateColorBet(ColorBetRequest{Color: "violet", Amount: 50})
		if !ok {
			t.Fatalf("validation failed: %s", msg)
		}
		if len(previews) != len(DefaultColors()) {
			t.Fatalf("got %d previews, want %d", len(previews), len(DefaultColors()))
		}
		for _, p := range previews {
			if p.Color == "violet" && p.Payout != 665.00 {
				t.Errorf("violet payout = %v, want 665.00", p.Payout)
			}
		}
	})

	t.Run("stake out of bounds", func(t *testing.T) {
		ok, _, previews := o.ValidateColorBet(ColorBetRequest{Color: "red", Amount: 0.5})
		if ok || previews != nil {
			t.Error("out-of-bounds stake passed validation")
		}
	})

	t.Run("unknown color", func(t *testing.T) {
		ok, _, _ := o.ValidateColorBet(ColorBetRequest{Color: "mauve", Amount: 50})
		if ok {
			t.Error("unknown color passed validation")
		}
	})
}

func TestOrchestrator_ValidateCrashCashout(t *testing.T) {
	o := NewOrchestrator(12345)

	res := o.ValidateCrashCashout(CashoutCheckRequest{
		Stake:             100,
		CashoutMultiplier: 2.0,
		CrashMultiplier:   3.0,
		DelayMs:           0,
		DurationMs:        10000,
	})
	if !res.Valid || res.Profit != 100.00 {
		t.Errorf("result = %+v, want valid with profit 100.00", res)
	}

	res = o.ValidateCrashCashout(CashoutCheckRequest{
		Stake:             100,
		CashoutMultiplier: 2.0,
		CrashMultiplier:   1.5,
		DurationMs:        10000,
	})
	if res.Valid || res.Profit != -100.00 {
		t.Errorf("result = %+v, want invalid with profit -100.00", res)
	}
}

func TestOrchestrator_Simulate(t *testing.T) {
	o := NewOrchestrator(12345)

	t.Run("crash outcomes are reproducible", func(t *testing.T) {
		a, err := o.SimulateCrash(GameParams{LossBias: 0.55}, 1000, 50)
		if err != nil {
			t.Fatalf("SimulateCrash() error = %v", err)
		}
		b, err := o.SimulateCrash(GameParams{LossBias: 0.55}, 1000, 50)
		if err != nil {
			t.Fatalf("SimulateCrash() error = %v", err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Error("identical simulations diverged")
		}
		if len(a) != 50 {
			t.Errorf("got %d outcomes, want 50", len(a))
		}
	})

	t.Run("color outcomes are reproducible", func(t *testing.T) {
		a, err := o.SimulateColor(GameParams{LossBias: 0.55}, 2000, 50)
		if err != nil {
			t.Fatalf("SimulateColor() error = %v", err)
		}
		b, err := o.SimulateColor(GameParams{LossBias: 0.55}, 2000, 50)
		if err != nil {
			t.Fatalf("SimulateColor() error = %v", err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Error("identical simulations diverged")
		}
	})

	t.Run("bias shapes the distribution", func(t *testing.T) {
		outcomes, err := o.SimulateCrash(GameParams{LossBias: 1, MaxMultiplier: 100}, 0, 200)
		if err != nil {
			t.Fatalf("SimulateCrash() error = %v", err)
		}
		for i, out := range outcomes {
			if out.Category != CategoryLoss {
				t.Fatalf("outcome %d category = %v, want loss at bias 1", i, out.Category)
			}
		}
	})

	t.Run("invalid params rejected", func(t *testing.T) {
		if _, err := o.SimulateCrash(GameParams{LossBias: 2}, 0, 10); !errors.Is(err, ErrInvalidBias) {
			t.Errorf("error = %v, want %v", err, ErrInvalidBias)
		}
	})
}

func TestOrchestrator_LifetimeStats(t *testing.T) {
	o := NewOrchestrator(12345)
	defer o.Stop()

	params := DefaultColorParams()
	params.RoundDuration = 80 * time.Millisecond
	o.color.settleDelay = 20 * time.Millisecond
	o.color.interRoundDelay = 20 * time.Millisecond

	events := make(chan Event, 64)
	o.Subscribe(func(ev Event) { events <- ev })

	if _, err := o.StartColorGame(params); err != nil {
		t.Fatalf("StartColorGame() error = %v", err)
	}
	waitEvent(t, events, EventRoundDone)
	o.Stop()

	st := o.Stats(GameKindColor)
	if st.Rounds == 0 {
		t.Error("no rounds folded into lifetime stats")
	}
	if st.WinRounds+st.LossRounds != st.Rounds {
		t.Errorf("win %d + loss %d != rounds %d", st.WinRounds, st.LossRounds, st.Rounds)
	}

	evs := o.Events(10)
	if len(evs) == 0 {
		t.Fatal("event log is empty")
	}
	if evs[0].At.Before(evs[len(evs)-1].At) {
		t.Error("events not newest first")
	}

	if o.Stats(GameKind("dice")) != (LifetimeStats{}) {
		t.Error("unknown kind should report zero stats")
	}
}

func TestOrchestrator_UnknownKind(t *testing.T) {
	o := NewOrchestrator(12345)

	if _, ok := o.CurrentRound(GameKind("dice")); ok {
		t.Error("unknown kind reported a current round")
	}
	if h := o.RoundHistory(GameKind("dice"), 10); h != nil {
		t.Error("unknown kind reported history")
	}
}
