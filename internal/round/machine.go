package round

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/rising-multiplier/internal/engine"
	"github.com/DoyleJ11/rising-multiplier/internal/metrics"
	"github.com/DoyleJ11/rising-multiplier/internal/types"
	pkgtypes "github.com/DoyleJ11/rising-multiplier/pkg/types"
)

var ErrNotIdle = errors.New("round is not idle")
var ErrNotRunning = errors.New("round is not running")
var ErrInvalidSpeed = errors.New("invalid speed factor")
var ErrTimerConflict = errors.New("round already has an active timer")
var ErrClosed = errors.New("round closed")

type State int

const (
	Idle State = iota
	Running
	Frozen
)

func (s State) String() string {
	switch s {
	case Running:
		return pkgtypes.PhaseRunning
	case Frozen:
		return pkgtypes.PhaseFrozen
	default:
		return pkgtypes.PhaseIdle
	}
}

// Publisher is where ticks and snapshots go. The hub implements it.
type Publisher interface {
	Publish(msg types.ServerMessage)
}

// Recorder receives every settled round. It must not block.
type Recorder interface {
	Record(res Result)
}

type Result struct {
	RoundID          string
	StartedAt        time.Time
	FrozenAt         time.Time
	FreezeMultiplier float64
	Ticks            int
	SpeedFactor      float64
	Outcomes         []engine.Outcome
}

type Rules struct {
	FreezeProbability float64
	MaxTicks          int // 0 disables the cap
	AutoMaxTarget     float64
}

func DefaultRules() Rules {
	return Rules{FreezeProbability: 0.1, MaxTicks: 600, AutoMaxTarget: 10}
}

type MachineConfig struct {
	Ledger    *engine.Ledger
	Growth    engine.Growth
	Rules     Rules
	Speed     float64
	RNG       engine.RandomSource
	Publisher Publisher
	Recorder  Recorder
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Machine is the round aggregate: the ledger plus Idle -> Running -> Frozen.
// It has no goroutines and no timer of its own; Round drives it.
type Machine struct {
	ledger  *engine.Ledger
	growth  engine.Growth
	rules   Rules
	rng     engine.RandomSource
	pub     Publisher
	rec     Recorder
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time

	state     State
	roundID   string
	x         float64
	current   float64
	freeze    float64
	speed     float64
	ticks     int
	startedAt time.Time
	settled   bool
}

func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		ledger:  cfg.Ledger,
		growth:  cfg.Growth,
		rules:   cfg.Rules,
		rng:     cfg.RNG,
		pub:     cfg.Publisher,
		rec:     cfg.Recorder,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
		now:     time.Now,
		speed:   cfg.Speed,
	}
	if m.rng == nil {
		m.rng = engine.DefaultRNG()
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.speed <= 0 {
		m.speed = 1
	}
	return m
}

func (m *Machine) Ledger() *engine.Ledger { return m.ledger }
func (m *Machine) State() State           { return m.state }
func (m *Machine) Multiplier() float64    { return m.current }
func (m *Machine) X() float64             { return m.x }
func (m *Machine) Speed() float64         { return m.speed }
func (m *Machine) Ticks() int             { return m.ticks }

// FreezeMultiplier reports the freeze value once the round is frozen.
func (m *Machine) FreezeMultiplier() (float64, bool) {
	return m.freeze, m.state == Frozen
}

// Reset returns to Idle from any state and clears every pending bet.
func (m *Machine) Reset() {
	m.state = Idle
	m.roundID = ""
	m.x = 0
	m.current = 0
	m.freeze = 0
	m.ticks = 0
	m.settled = false
	m.ledger.ClearBets()
}

// Start moves Idle -> Running and publishes a snapshot with the pending bets.
func (m *Machine) Start() error {
	if m.state != Idle {
		return ErrNotIdle
	}
	m.roundID = uuid.NewString()
	m.startedAt = m.now()
	m.state = Running
	m.metrics.RoundStarted()
	m.log.Info("round started", zap.String("round", m.roundID), zap.Float64("speed", m.speed))
	m.publish(types.SnapshotMessage(m.Snapshot()))
	return nil
}

// PlaceAutoBets gives every synthetic participant a bet for the coming round.
func (m *Machine) PlaceAutoBets() int {
	n := engine.PlaceAutoBets(m.ledger, m.rng, m.rules.AutoMaxTarget)
	m.metrics.BetPlaced("auto", n)
	return n
}

// Tick advances the curve once, publishes the new value and runs the freeze
// trial. It reports whether the round froze.
func (m *Machine) Tick() bool {
	if m.state != Running {
		return false
	}
	m.x, m.current = m.growth.Next(m.x, m.current, m.speed, m.rng)
	m.ticks++
	m.metrics.Tick()
	m.log.Debug("tick", zap.Int("tick", m.ticks), zap.Float64("multiplier", m.current))
	m.publish(types.TickMessage(pkgtypes.MultiplierTick{
		RoundID:    m.roundID,
		Tick:       m.ticks,
		Multiplier: m.current,
	}))

	capped := m.rules.MaxTicks > 0 && m.ticks >= m.rules.MaxTicks
	if m.rng.Float64() < m.rules.FreezeProbability || capped {
		_ = m.Freeze()
		return true
	}
	return false
}

// Freeze moves Running -> Frozen, floors the multiplier and settles every
// pending bet exactly once.
func (m *Machine) Freeze() error {
	if m.state != Running || m.settled {
		return ErrNotRunning
	}
	m.freeze = math.Floor(m.current)
	m.current = m.freeze
	m.state = Frozen

	outcomes := engine.Settle(m.ledger, m.freeze)
	m.settled = true

	m.metrics.RoundFrozen(m.freeze)
	m.log.Info("round frozen",
		zap.String("round", m.roundID),
		zap.Float64("freeze", m.freeze),
		zap.Int("ticks", m.ticks),
		zap.Int("settled", len(outcomes)),
	)
	m.publish(types.SnapshotMessage(m.Snapshot()))

	if m.rec != nil {
		m.rec.Record(Result{
			RoundID:          m.roundID,
			StartedAt:        m.startedAt,
			FrozenAt:         m.now(),
			FreezeMultiplier: m.freeze,
			Ticks:            m.ticks,
			SpeedFactor:      m.speed,
			Outcomes:         outcomes,
		})
	}
	return nil
}

// SetSpeed takes effect on the next tick without touching the round.
func (m *Machine) SetSpeed(factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return ErrInvalidSpeed
	}
	m.speed = factor
	return nil
}

func (m *Machine) Snapshot() pkgtypes.StateSnapshot {
	snap := pkgtypes.StateSnapshot{
		RoundID:      m.roundID,
		Phase:        m.state.String(),
		Multiplier:   m.current,
		SpeedFactor:  m.speed,
		Participants: make([]pkgtypes.Participant, 0, m.ledger.Len()),
	}
	if m.state == Frozen {
		f := m.freeze
		snap.FreezeMultiplier = &f
	}
	m.ledger.Each(func(p *engine.Participant) {
		view := pkgtypes.Participant{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Balance:     p.Balance.InexactFloat64(),
			Auto:        p.Synthetic,
		}
		if p.PendingBet != nil {
			view.PendingBet = &pkgtypes.Bet{
				TargetMultiplier: p.PendingBet.TargetMultiplier,
				Stake:            p.PendingBet.Stake.InexactFloat64(),
				PlacedAt:         p.PendingBet.PlacedAt,
			}
		}
		snap.Participants = append(snap.Participants, view)
	})
	return snap
}

func (m *Machine) publish(msg types.ServerMessage) {
	if m.pub != nil {
		m.pub.Publish(msg)
	}
}
