package round

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/rising-multiplier/internal/engine"
	"github.com/DoyleJ11/rising-multiplier/internal/metrics"
	"github.com/DoyleJ11/rising-multiplier/internal/types"
	pkgtypes "github.com/DoyleJ11/rising-multiplier/pkg/types"
)

const DefaultTickInterval = 100 * time.Millisecond

var ErrOutboxFull = errors.New("subscriber outbox full")

// Subscriber registers client outboxes for everything the round publishes.
// The hub implements it.
type Subscriber interface {
	Register(id string, outbox chan types.ServerMessage)
}

type Config struct {
	TickInterval time.Duration
	NewTicker    TickerFunc
	Subscriber   Subscriber
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// View is a consistent read of the round, taken on the actor goroutine.
type View struct {
	Snapshot     pkgtypes.StateSnapshot
	State        State
	X            float64
	Ticks        int
	ActiveTimers int
}

// Round serializes every request and every tick onto one goroutine. It is the
// only owner of the Machine and of the round's ticker.
type Round struct {
	inbox    chan Msg
	m        *Machine
	interval time.Duration
	newTick  TickerFunc
	sub      Subscriber
	ticker   Ticker
	tickC    <-chan time.Time // nil unless a round is running
	metrics  *metrics.Metrics
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewRound(parent context.Context, m *Machine, cfg Config) *Round {
	ctx, cancel := context.WithCancel(parent)

	r := &Round{
		inbox:    make(chan Msg, 64),
		m:        m,
		interval: cfg.TickInterval,
		newTick:  cfg.NewTicker,
		sub:      cfg.Subscriber,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if r.interval <= 0 {
		r.interval = DefaultTickInterval
	}
	if r.newTick == nil {
		r.newTick = NewTimeTicker
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.metrics.SetParticipants(m.Ledger().Len())

	go r.loop()
	return r
}

// Done is closed once the actor has stopped.
func (r *Round) Done() <-chan struct{} { return r.done }

func (r *Round) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-r.tickC:
			r.m.Tick()
			r.syncTimer()

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.reset()
				r.m.Ledger().Join(msg.ParticipantID, msg.DisplayName)
				r.metrics.SetParticipants(r.m.Ledger().Len())
				r.log.Info("participant joined", zap.String("participant", msg.ParticipantID))
				r.publishSnapshot()
				reply(msg.Reply, nil)

			case Leave:
				err := r.m.Ledger().Remove(msg.ParticipantID)
				if err != nil {
					r.log.Debug("leave ignored", zap.String("participant", msg.ParticipantID), zap.Error(err))
				} else {
					r.metrics.SetParticipants(r.m.Ledger().Len())
					r.publishSnapshot()
				}
				reply(msg.Reply, err)

			case PlaceBet:
				err := r.placeBet(msg)
				if err != nil {
					r.metrics.BetRejected(rejectReason(err))
					r.log.Info("bet rejected", zap.String("participant", msg.ParticipantID), zap.Error(err))
				}
				reply(msg.Reply, err)

			case Reset:
				r.reset()
				r.publishSnapshot()
				reply(msg.Reply, nil)

			case ChangeSpeed:
				err := r.m.SetSpeed(msg.SpeedFactor)
				if err == nil {
					r.log.Info("speed changed", zap.Float64("speed", msg.SpeedFactor))
					r.publishSnapshot()
				}
				reply(msg.Reply, err)

			case Subscribe:
				reply(msg.Reply, r.subscribe(msg))

			case GetState:
				msg.Reply <- r.view()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// placeBet composes the ledger and the state machine: a bet on a frozen
// round opens a fresh one, and a bet on an idle round starts it.
func (r *Round) placeBet(msg PlaceBet) error {
	stake, err := engine.StakeFromFloat(msg.Stake)
	if err != nil {
		return err
	}
	ledger := r.m.Ledger()

	if r.m.State() == Frozen {
		if err := ledger.ValidateBet(msg.ParticipantID, msg.TargetMultiplier, stake); err != nil {
			return err
		}
		r.reset()
	}

	if err := ledger.PlaceBet(msg.ParticipantID, msg.TargetMultiplier, stake); err != nil {
		return err
	}
	r.metrics.BetPlaced("human", 1)

	if r.m.State() != Idle {
		return nil
	}
	r.m.PlaceAutoBets()
	return r.start()
}

func (r *Round) subscribe(msg Subscribe) error {
	select {
	case msg.Outbox <- types.SnapshotMessage(r.m.Snapshot()):
	default:
		return ErrOutboxFull
	}
	if r.sub != nil {
		r.sub.Register(msg.ClientID, msg.Outbox)
	}
	return nil
}

func (r *Round) start() error {
	if r.ticker != nil {
		r.log.Error("timer conflict, forcing reset", zap.Error(ErrTimerConflict))
		r.reset()
		r.publishSnapshot()
		return ErrTimerConflict
	}
	if err := r.m.Start(); err != nil {
		return err
	}
	r.ticker = r.newTick(r.interval)
	r.tickC = r.ticker.C()
	return nil
}

func (r *Round) reset() {
	r.stopTimer()
	r.m.Reset()
}

// syncTimer drops the ticker as soon as the round leaves Running, so no tick
// of a frozen or reset round is ever observed.
func (r *Round) syncTimer() {
	if r.m.State() != Running {
		r.stopTimer()
	}
}

func (r *Round) stopTimer() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
	r.tickC = nil
}

func (r *Round) view() View {
	active := 0
	if r.ticker != nil {
		active = 1
	}
	return View{
		Snapshot:     r.m.Snapshot(),
		State:        r.m.State(),
		X:            r.m.X(),
		Ticks:        r.m.Ticks(),
		ActiveTimers: active,
	}
}

func (r *Round) publishSnapshot() {
	r.m.publish(types.SnapshotMessage(r.m.Snapshot()))
}

func (r *Round) shutdown() {
	r.stopTimer()
	r.cancel()
}

func reply(ch chan error, err error) {
	if ch != nil {
		ch <- err
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, engine.ErrInvalidStake):
		return "invalid_stake"
	case errors.Is(err, engine.ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, engine.ErrBetAlreadyPlaced):
		return "duplicate"
	case errors.Is(err, ErrTimerConflict):
		return "timer_conflict"
	default:
		return "other"
	}
}
