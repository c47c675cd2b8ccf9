package round

import "github.com/DoyleJ11/rising-multiplier/internal/types"

type Msg interface{ isRoundMsg() }

// Join registers the connection as a participant and resets the round.
type Join struct {
	ParticipantID string
	DisplayName   string
	Reply         chan error
}

func (Join) isRoundMsg() {}

type Leave struct {
	ParticipantID string
	Reply         chan error
}

func (Leave) isRoundMsg() {}

// PlaceBet records a bet and starts a round if none is running.
type PlaceBet struct {
	ParticipantID    string
	TargetMultiplier float64
	Stake            float64
	Reply            chan error
}

func (PlaceBet) isRoundMsg() {}

type Reset struct {
	Reply chan error
}

func (Reset) isRoundMsg() {}

type ChangeSpeed struct {
	SpeedFactor float64
	Reply       chan error
}

func (ChangeSpeed) isRoundMsg() {}

// Subscribe queues the current snapshot on Outbox and then registers Outbox
// with the hub, both on the round goroutine, so no publish falls between them.
type Subscribe struct {
	ClientID string
	Outbox   chan types.ServerMessage
	Reply    chan error
}

func (Subscribe) isRoundMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoundMsg() {}

type Shutdown struct{}

func (Shutdown) isRoundMsg() {}
