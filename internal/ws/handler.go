package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/rising-multiplier/internal/engine"
	"github.com/DoyleJ11/rising-multiplier/internal/round"
	"github.com/DoyleJ11/rising-multiplier/internal/types"
	pkgtypes "github.com/DoyleJ11/rising-multiplier/pkg/types"
)

const (
	outboxSize     = 64
	writeTimeout   = 3 * time.Second
	requestTimeout = 2 * time.Second
	maxChatRunes   = 280
)

var (
	errBadJSON     = errors.New("bad json")
	errUnknownType = errors.New("unknown type")
	errRateLimited = errors.New("rate limited")
)

// Round is the part of the round actor the transport talks to.
type Round interface {
	Join(ctx context.Context, id, displayName string) error
	Leave(ctx context.Context, id string) error
	PlaceBet(ctx context.Context, id string, target, stake float64) error
	Reset(ctx context.Context) error
	ChangeSpeed(ctx context.Context, factor float64) error
	State(ctx context.Context) (round.View, error)
	Subscribe(ctx context.Context, id string, outbox chan types.ServerMessage) error
}

// Broadcaster is the fan-out the connection is subscribed to.
type Broadcaster interface {
	Unregister(id string)
	Publish(msg types.ServerMessage)
}

type Config struct {
	Round          Round
	Hub            Broadcaster
	Logger         *zap.Logger
	OriginPatterns []string
	RateLimit      float64 // inbound messages per second, per connection
	RateBurst      int
}

// Handler upgrades the request and serves one participant. The connection
// id doubles as the participant id.
func Handler(cfg Config) http.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		ctx := r.Context()
		clientID := uuid.NewString()
		clog := log.With(zap.String("client", clientID))

		// The round queues the snapshot and registers the outbox in one step,
		// so the snapshot is first and nothing published after it is missed.
		out := make(chan types.ServerMessage, outboxSize)
		if err := cfg.Round.Subscribe(ctx, clientID, out); err != nil {
			clog.Warn("round unavailable", zap.Error(err))
			cfg.Hub.Unregister(clientID)
			conn.Close(websocket.StatusTryAgainLater, "round unavailable")
			return
		}
		clog.Info("client connected")

		defer func() {
			cfg.Hub.Unregister(clientID)
			leaveCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if err := cfg.Round.Leave(leaveCtx, clientID); err != nil && !errors.Is(err, engine.ErrUnknownParticipant) {
				clog.Warn("leave failed", zap.Error(err))
			}
			clog.Info("client disconnected")
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(ctx)
		defer writeCancel()
		go func() {
			for {
				select {
				case msg, ok := <-out:
					if !ok {
						// Evicted by the hub or hub stopped.
						conn.Close(websocket.StatusPolicyViolation, "too slow")
						return
					}
					if err := write(writeCtx, conn, msg); err != nil {
						clog.Debug("write failed", zap.Error(err))
						conn.Close(websocket.StatusInternalError, "write failed")
						return
					}
				case <-writeCtx.Done():
					return
				}
			}
		}()

		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("read ended", zap.Error(err))
				}
				return
			}

			if !limiter.Allow() {
				sendError(ctx, conn, clog, errRateLimited)
				continue
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				sendError(ctx, conn, clog, errBadJSON)
				continue
			}

			if err := dispatch(ctx, cfg, clientID, cm); err != nil {
				sendError(ctx, conn, clog, err)
			}
		}
	}
}

func dispatch(ctx context.Context, cfg Config, clientID string, cm types.ClientMessage) error {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch cm.Type {
	case pkgtypes.MsgJoin:
		return cfg.Round.Join(reqCtx, clientID, cm.DisplayName)
	case pkgtypes.MsgPlaceBet:
		return cfg.Round.PlaceBet(reqCtx, clientID, cm.TargetMultiplier, cm.Stake)
	case pkgtypes.MsgResetRound:
		return cfg.Round.Reset(reqCtx)
	case pkgtypes.MsgChangeSpeed:
		return cfg.Round.ChangeSpeed(reqCtx, cm.SpeedFactor)
	case pkgtypes.MsgChat:
		cfg.Hub.Publish(types.ChatMessage(pkgtypes.ChatMessage{
			DisplayName: engine.NormalizeDisplayName(cm.DisplayName),
			Message:     truncate(cm.Message, maxChatRunes),
		}))
		return nil
	default:
		return errUnknownType
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

// sendError answers only the requesting connection.
func sendError(ctx context.Context, conn *websocket.Conn, log *zap.Logger, err error) {
	log.Debug("request failed", zap.Error(err))
	if werr := write(ctx, conn, types.ErrorMessage(err)); werr != nil {
		log.Debug("error write failed", zap.Error(werr))
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
