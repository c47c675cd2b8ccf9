package engine

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

const maxDisplayNameRunes = 32

// Ledger holds every participant's balance and pending bet. It is not safe
// for concurrent use: the round actor is its only owner.
type Ledger struct {
	participants    map[string]*Participant
	order           []string // join order, keeps snapshots stable
	startingBalance decimal.Decimal
	now             func() time.Time
}

func NewLedger(startingBalance decimal.Decimal) *Ledger {
	return &Ledger{
		participants:    make(map[string]*Participant),
		startingBalance: startingBalance,
		now:             time.Now,
	}
}

// Join registers id with the starting balance. Joining again under the same
// id only renames the participant; the balance is kept.
func (l *Ledger) Join(id, displayName string) *Participant {
	name := NormalizeDisplayName(displayName)
	if p, ok := l.participants[id]; ok {
		p.DisplayName = name
		return p
	}
	p := &Participant{
		ID:          id,
		DisplayName: name,
		Balance:     l.startingBalance,
		JoinedAt:    l.now(),
	}
	l.participants[id] = p
	l.order = append(l.order, id)
	return p
}

// AddSynthetic registers an auto-participant under a fresh id.
func (l *Ledger) AddSynthetic(displayName string) *Participant {
	p := l.Join(uuid.NewString(), displayName)
	p.Synthetic = true
	return p
}

func (l *Ledger) Remove(id string) error {
	if _, ok := l.participants[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	delete(l.participants, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

func (l *Ledger) Get(id string) (*Participant, bool) {
	p, ok := l.participants[id]
	return p, ok
}

func (l *Ledger) Len() int { return len(l.participants) }

// Each visits participants in join order.
func (l *Ledger) Each(fn func(p *Participant)) {
	for _, id := range l.order {
		fn(l.participants[id])
	}
}

// ValidateBet checks the participant exists, the target is a finite
// non-negative number and the stake is within balance. It does not look at
// any bet already pending.
func (l *Ledger) ValidateBet(id string, target float64, stake decimal.Decimal) error {
	p, ok := l.participants[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	if math.IsNaN(target) || math.IsInf(target, 0) || target < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, target)
	}
	if stake.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidStake, stake)
	}
	if stake.GreaterThan(p.Balance) {
		return fmt.Errorf("%w: %s exceeds balance %s", ErrInvalidStake, stake, p.Balance)
	}
	return nil
}

// PlaceBet records a pending bet. One bet per participant per round.
func (l *Ledger) PlaceBet(id string, target float64, stake decimal.Decimal) error {
	if err := l.ValidateBet(id, target, stake); err != nil {
		return err
	}
	p := l.participants[id]
	if p.PendingBet != nil {
		return ErrBetAlreadyPlaced
	}
	p.PendingBet = &Bet{TargetMultiplier: target, Stake: stake, PlacedAt: l.now()}
	return nil
}

// StakeFromFloat converts a wire stake, rejecting NaN and infinities.
func StakeFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidStake, f)
	}
	return decimal.NewFromFloat(f), nil
}

// ClearBets drops every pending bet, settled or not.
func (l *Ledger) ClearBets() {
	for _, p := range l.participants {
		p.PendingBet = nil
	}
}

// NormalizeDisplayName NFC-normalizes the name, strips control characters and
// caps its length. An empty result becomes "Player".
func NormalizeDisplayName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if runes := []rune(name); len(runes) > maxDisplayNameRunes {
		name = strings.TrimSpace(string(runes[:maxDisplayNameRunes]))
	}
	if name == "" {
		return "Player"
	}
	return name
}
