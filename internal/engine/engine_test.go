package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

// fixedRNG returns the same draw every time.
type fixedRNG struct {
	f float64
	n int
}

func (r fixedRNG) Float64() float64 { return r.f }

func (r fixedRNG) IntN(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestGrowthRate(t *testing.T) {
	g := DefaultGrowth()
	cases := []struct {
		name string
		x    float64
		want float64
	}{
		{name: "flat at start", x: 0, want: 0.05},
		{name: "flat just below threshold", x: 4.9, want: 0.05},
		{name: "threshold", x: 5, want: 0.05},
		{name: "midpoint reaches max rate", x: 10, want: 0.2},
		{name: "keeps climbing past max", x: 15, want: 0.35},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.Rate(tc.x); !almostEqual(got, tc.want) {
				t.Fatalf("Rate(%v): got %v, want %v", tc.x, got, tc.want)
			}
		})
	}
}

func TestGrowthLogisticMidpoint(t *testing.T) {
	g := DefaultGrowth()
	if got := g.Logistic(10); !almostEqual(got, 5) {
		t.Fatalf("Logistic(10): got %v, want 5", got)
	}
}

func TestGrowthNext(t *testing.T) {
	g := DefaultGrowth()
	cases := []struct {
		name  string
		x     float64
		prev  float64
		speed float64
		noise float64
		wantX float64
		wantM float64
	}{
		{name: "first tick, no noise", x: 0, prev: 0, speed: 1, noise: 0, wantX: 0.1, wantM: g.Logistic(0.1)},
		{name: "double speed", x: 1, prev: 0, speed: 2, noise: 0, wantX: 1.2, wantM: g.Logistic(1.2)},
		{name: "never below previous", x: 0, prev: 9, speed: 1, noise: 0, wantX: 0.1, wantM: 9},
		{name: "capped at capacity", x: 40, prev: 0, speed: 1, noise: 0.9999, wantX: 40.1, wantM: 10},
		{name: "noise scales value", x: 0, prev: 0, speed: 1, noise: 0.5, wantX: 0.1, wantM: g.Logistic(0.1) * 1.1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, m := g.Next(tc.x, tc.prev, tc.speed, fixedRNG{f: tc.noise})
			if !almostEqual(x, tc.wantX) {
				t.Fatalf("x: got %v, want %v", x, tc.wantX)
			}
			if !almostEqual(m, tc.wantM) {
				t.Fatalf("multiplier: got %v, want %v", m, tc.wantM)
			}
		})
	}
}

func TestGrowthNext_MonotonicOverManyTicks(t *testing.T) {
	g := DefaultGrowth()
	rng := NewSeededRNG(7)
	x, m := 0.0, 0.0
	for i := 0; i < 1000; i++ {
		nx, nm := g.Next(x, m, 1, rng)
		if nm < m {
			t.Fatalf("tick %d: multiplier dropped from %v to %v", i, m, nm)
		}
		if nm > g.Capacity {
			t.Fatalf("tick %d: multiplier %v above capacity", i, nm)
		}
		x, m = nx, nm
	}
}

func TestLedger_PlaceBetRejects(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		target  float64
		stake   decimal.Decimal
		wantErr error
	}{
		{name: "unknown participant", id: "ghost", target: 2, stake: decimal.NewFromInt(1), wantErr: ErrUnknownParticipant},
		{name: "negative stake", id: "p1", target: 2, stake: decimal.NewFromInt(-1), wantErr: ErrInvalidStake},
		{name: "stake above balance", id: "p1", target: 2, stake: decimal.NewFromInt(101), wantErr: ErrInvalidStake},
		{name: "negative target", id: "p1", target: -1, stake: decimal.NewFromInt(1), wantErr: ErrInvalidTarget},
		{name: "NaN target", id: "p1", target: math.NaN(), stake: decimal.NewFromInt(1), wantErr: ErrInvalidTarget},
		{name: "whole balance is fine", id: "p1", target: 3, stake: decimal.NewFromInt(100), wantErr: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLedger(decimal.NewFromInt(100))
			l.Join("p1", "alice")

			err := l.PlaceBet(tc.id, tc.target, tc.stake)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			p, _ := l.Get("p1")
			if tc.wantErr != nil && p.PendingBet != nil {
				t.Fatalf("rejected bet must not be recorded, got %+v", p.PendingBet)
			}
			if !p.Balance.Equal(decimal.NewFromInt(100)) {
				t.Fatalf("placing a bet must not touch the balance, got %s", p.Balance)
			}
		})
	}
}

func TestLedger_SecondBetSameRoundRejected(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100))
	l.Join("p1", "alice")

	if err := l.PlaceBet("p1", 2, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if err := l.PlaceBet("p1", 4, decimal.NewFromInt(10)); !errors.Is(err, ErrBetAlreadyPlaced) {
		t.Fatalf("want ErrBetAlreadyPlaced, got %v", err)
	}

	l.ClearBets()
	if err := l.PlaceBet("p1", 4, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("after ClearBets: unexpected err %v", err)
	}
}

func TestLedger_RejoinKeepsBalance(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100))
	p := l.Join("p1", "alice")
	p.Balance = decimal.NewFromInt(42)

	again := l.Join("p1", "alice2")
	if again != p || !again.Balance.Equal(decimal.NewFromInt(42)) || again.DisplayName != "alice2" {
		t.Fatalf("rejoin: got %+v", again)
	}
	if l.Len() != 1 {
		t.Fatalf("rejoin must not add a participant, Len=%d", l.Len())
	}
}

func TestLedger_RemoveUnknown(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100))
	l.Join("p1", "alice")
	l.Join("p2", "bob")

	if err := l.Remove("ghost"); !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("want ErrUnknownParticipant, got %v", err)
	}
	if err := l.Remove("p1"); err != nil {
		t.Fatalf("unexpected err %v", err)
	}

	var ids []string
	l.Each(func(p *Participant) { ids = append(ids, p.ID) })
	if len(ids) != 1 || ids[0] != "p2" {
		t.Fatalf("after remove: got %v", ids)
	}
}

func TestNormalizeDisplayName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  alice  ", "alice"},
		{"", "Player"},
		{"\x00\t", "Player"},
		{"é", "é"},
		{"abcdefghijklmnopqrstuvwxyz0123456789", "abcdefghijklmnopqrstuvwxyz012345"},
	}
	for _, tc := range cases {
		if got := NormalizeDisplayName(tc.in); got != tc.want {
			t.Fatalf("NormalizeDisplayName(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPlaceAutoBets_OnlySynthetic(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100))
	l.Join("human", "alice")
	for i := 0; i < 3; i++ {
		l.AddSynthetic("AutoPlayer")
	}
	broke := l.AddSynthetic("Broke")
	broke.Balance = decimal.Zero

	rng := NewSeededRNG(1)
	if n := PlaceAutoBets(l, rng, 10); n != 4 {
		t.Fatalf("want 4 auto bets, got %d", n)
	}

	l.Each(func(p *Participant) {
		if !p.Synthetic {
			if p.PendingBet != nil {
				t.Fatalf("human got an auto bet: %+v", p.PendingBet)
			}
			return
		}
		b := p.PendingBet
		if b == nil {
			t.Fatalf("%s has no bet", p.DisplayName)
		}
		if b.TargetMultiplier < 0 || b.TargetMultiplier >= 10 {
			t.Fatalf("target out of range: %v", b.TargetMultiplier)
		}
		if b.Stake.IsNegative() || (p.Balance.IsPositive() && !b.Stake.LessThan(p.Balance)) {
			t.Fatalf("stake %s out of [0, %s)", b.Stake, p.Balance)
		}
		if !b.Stake.Equal(b.Stake.Floor()) {
			t.Fatalf("stake must be whole, got %s", b.Stake)
		}
	})
	if !broke.PendingBet.Stake.IsZero() {
		t.Fatalf("zero balance must stake zero, got %s", broke.PendingBet.Stake)
	}
}

func TestSettleBet(t *testing.T) {
	cases := []struct {
		name    string
		balance int64
		target  float64
		stake   int64
		freeze  float64
		want    int64
		wantWon bool
	}{
		{name: "win at exact target", balance: 100, target: 3, stake: 50, freeze: 3, want: 200, wantWon: true},
		{name: "loss", balance: 100, target: 3, stake: 50, freeze: 5, want: 50},
		{name: "near miss is a loss", balance: 100, target: 3.0001, stake: 50, freeze: 3, want: 50},
		{name: "loss clamps at zero", balance: 20, target: 3, stake: 50, freeze: 1, want: 0},
		{name: "win at zero freeze forfeits stake", balance: 100, target: 0, stake: 40, freeze: 0, want: 60, wantWon: true},
		{name: "zero stake changes nothing", balance: 100, target: 7, stake: 0, freeze: 2, want: 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bet := Bet{TargetMultiplier: tc.target, Stake: decimal.NewFromInt(tc.stake)}
			got, won := SettleBet(decimal.NewFromInt(tc.balance), bet, tc.freeze)
			if !got.Equal(decimal.NewFromInt(tc.want)) || won != tc.wantWon {
				t.Fatalf("got (%s, %v), want (%d, %v)", got, won, tc.want, tc.wantWon)
			}
		})
	}
}

func TestSettle_SkipsParticipantsWithoutBets(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100))
	l.Join("p1", "alice")
	l.Join("p2", "bob")
	if err := l.PlaceBet("p1", 3, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("unexpected err %v", err)
	}

	outcomes := Settle(l, 3)
	if len(outcomes) != 1 || outcomes[0].ParticipantID != "p1" || !outcomes[0].Won {
		t.Fatalf("outcomes: got %+v", outcomes)
	}
	p1, _ := l.Get("p1")
	p2, _ := l.Get("p2")
	if !p1.Balance.Equal(decimal.NewFromInt(200)) || !p2.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balances: p1=%s p2=%s", p1.Balance, p2.Balance)
	}
	if p1.PendingBet == nil {
		t.Fatalf("settlement must leave the bet for the snapshot")
	}
}
