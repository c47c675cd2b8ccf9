package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/rising-multiplier/internal/engine"
	"github.com/DoyleJ11/rising-multiplier/internal/round"
)

type fakeSaver struct {
	mu    sync.Mutex
	saved []string
	fail  map[string]error
}

func (f *fakeSaver) Save(ctx context.Context, res round.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[res.RoundID]; err != nil {
		return err
	}
	f.saved = append(f.saved, res.RoundID)
	return nil
}

func (f *fakeSaver) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.saved...)
}

func TestJournal_SavesInOrder(t *testing.T) {
	saver := &fakeSaver{}
	j := NewJournal(saver, 8, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	for _, id := range []string{"r1", "r2", "r3"} {
		j.Record(round.Result{RoundID: id})
	}
	require.Eventually(t, func() bool { return len(saver.ids()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"r1", "r2", "r3"}, saver.ids())

	cancel()
	require.NoError(t, <-done)
}

func TestJournal_RecordNeverBlocks(t *testing.T) {
	j := NewJournal(&fakeSaver{}, 1, zaptest.NewLogger(t))

	finished := make(chan struct{})
	go func() {
		// nobody runs the journal, so only the first fits
		for i := 0; i < 10; i++ {
			j.Record(round.Result{RoundID: "r"})
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}
	assert.Len(t, j.queue, 1)
}

func TestJournal_FlushReturnsEveryFailure(t *testing.T) {
	boom := errors.New("db down")
	saver := &fakeSaver{fail: map[string]error{"r1": boom, "r3": boom}}
	j := NewJournal(saver, 8, zaptest.NewLogger(t))
	for _, id := range []string{"r1", "r2", "r3"} {
		j.Record(round.Result{RoundID: id})
	}

	err := j.flush()

	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"r2"}, saver.ids())
}

func TestJournal_RunKeepsGoingAfterFailure(t *testing.T) {
	saver := &fakeSaver{fail: map[string]error{"bad": errors.New("constraint")}}
	j := NewJournal(saver, 8, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	j.Record(round.Result{RoundID: "bad"})
	j.Record(round.Result{RoundID: "good"})
	require.Eventually(t, func() bool { return len(saver.ids()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"good"}, saver.ids())
}

func TestToRecord(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	res := round.Result{
		RoundID:          "round-1",
		StartedAt:        started,
		FrozenAt:         started.Add(3 * time.Second),
		FreezeMultiplier: 3,
		Ticks:            30,
		SpeedFactor:      1,
		Outcomes: []engine.Outcome{{
			ParticipantID: "p1",
			DisplayName:   "alice",
			Bet:           engine.Bet{TargetMultiplier: 3, Stake: decimal.NewFromInt(50)},
			BalanceBefore: decimal.NewFromInt(100),
			BalanceAfter:  decimal.NewFromInt(200),
			Won:           true,
		}},
	}

	rec := toRecord(res)
	assert.Equal(t, "round-1", rec.ID)
	assert.Equal(t, 30, rec.Ticks)
	require.Len(t, rec.Outcomes, 1)
	o := rec.Outcomes[0]
	assert.Equal(t, "round-1", o.RoundID)
	assert.Equal(t, 3.0, o.TargetMultiplier)
	assert.True(t, o.Stake.Equal(decimal.NewFromInt(50)))
	assert.True(t, o.BalanceAfter.Equal(decimal.NewFromInt(200)))
	assert.True(t, o.Won)
}
