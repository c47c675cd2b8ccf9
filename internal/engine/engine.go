package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownParticipant = errors.New("unknown participant")
var ErrInvalidStake = errors.New("invalid stake")
var ErrInvalidTarget = errors.New("invalid target multiplier")
var ErrBetAlreadyPlaced = errors.New("bet already placed this round")

type Bet struct {
	TargetMultiplier float64
	Stake            decimal.Decimal
	PlacedAt         time.Time
}

type Participant struct {
	ID          string
	DisplayName string
	Balance     decimal.Decimal
	PendingBet  *Bet
	Synthetic   bool
	JoinedAt    time.Time
}

// Outcome is what settlement did to one participant.
type Outcome struct {
	ParticipantID string
	DisplayName   string
	Synthetic     bool
	Bet           Bet
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Won           bool
}
