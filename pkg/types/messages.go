package types

// Client -> Server
// join:
//   display_name: string
//
// placeBet:
//   target_multiplier: number
//   stake: number
//
// resetRound: {}
//
// changeSpeed:
//   speed_factor: number
//
// chatMessage (relayed to everyone, never touches round state):
//   display_name: string
//   message: string
const (
	MsgJoin        = "join"
	MsgPlaceBet    = "placeBet"
	MsgResetRound  = "resetRound"
	MsgChangeSpeed = "changeSpeed"
	MsgChat        = "chatMessage"
)

// Server -> Client
// stateSnapshot: see StateSnapshot. Sent on connect and after join, reset,
// round start, speed change, freeze and disconnects.
//
// multiplierTick: every tick while the round is running.
//
// chatMessage: the relayed chat payload.
//
// error: only to the connection whose request failed.
const (
	EvtStateSnapshot  = "stateSnapshot"
	EvtMultiplierTick = "multiplierTick"
	EvtChat           = "chatMessage"
	EvtError          = "error"
)

type ChatMessage struct {
	DisplayName string `json:"display_name"`
	Message     string `json:"message"`
}
