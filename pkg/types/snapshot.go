package types

import "time"

const (
	PhaseIdle    = "idle"
	PhaseRunning = "running"
	PhaseFrozen  = "frozen"
)

// StateSnapshot is the full view of the round pushed to clients.
type StateSnapshot struct {
	RoundID          string        `json:"round_id,omitempty"`
	Phase            string        `json:"phase"`
	Multiplier       float64       `json:"multiplier"`
	FreezeMultiplier *float64      `json:"freeze_multiplier,omitempty"`
	SpeedFactor      float64       `json:"speed_factor"`
	Participants     []Participant `json:"participants"`
}

type Participant struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Balance     float64 `json:"balance"`
	Auto        bool    `json:"auto,omitempty"`
	PendingBet  *Bet    `json:"pending_bet"`
}

type Bet struct {
	TargetMultiplier float64   `json:"target_multiplier"`
	Stake            float64   `json:"stake"`
	PlacedAt         time.Time `json:"placed_at"`
}

type MultiplierTick struct {
	RoundID    string  `json:"round_id"`
	Tick       int     `json:"tick"`
	Multiplier float64 `json:"multiplier"`
}
