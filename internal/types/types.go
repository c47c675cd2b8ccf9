package types

import pkgtypes "github.com/DoyleJ11/rising-multiplier/pkg/types"

type ClientMessage struct {
	Type             string  `json:"type"`
	DisplayName      string  `json:"display_name,omitempty"`
	TargetMultiplier float64 `json:"target_multiplier,omitempty"`
	Stake            float64 `json:"stake,omitempty"`
	SpeedFactor      float64 `json:"speed_factor,omitempty"`
	Message          string  `json:"message,omitempty"`
}

type ServerMessage struct {
	Type  string                   `json:"type"` // "stateSnapshot" | "multiplierTick" | "chatMessage" | "error"
	State *pkgtypes.StateSnapshot  `json:"state,omitempty"`
	Tick  *pkgtypes.MultiplierTick `json:"tick,omitempty"`
	Chat  *pkgtypes.ChatMessage    `json:"chat,omitempty"`
	Error string                   `json:"error,omitempty"`
}

func SnapshotMessage(s pkgtypes.StateSnapshot) ServerMessage {
	return ServerMessage{Type: pkgtypes.EvtStateSnapshot, State: &s}
}

func TickMessage(t pkgtypes.MultiplierTick) ServerMessage {
	return ServerMessage{Type: pkgtypes.EvtMultiplierTick, Tick: &t}
}

func ChatMessage(c pkgtypes.ChatMessage) ServerMessage {
	return ServerMessage{Type: pkgtypes.EvtChat, Chat: &c}
}

func ErrorMessage(err error) ServerMessage {
	return ServerMessage{Type: pkgtypes.EvtError, Error: err.Error()}
}
