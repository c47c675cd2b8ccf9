package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/rising-multiplier/internal/metrics"
	"github.com/DoyleJ11/rising-multiplier/internal/types"
)

type HubMsg interface{ isHubMsg() }

// Register subscribes a client. The hub owns Outbox from then on and closes
// it when the client is unregistered, evicted or the hub stops.
type Register struct {
	ClientID string
	Outbox   chan types.ServerMessage
}

type Unregister struct {
	ClientID string
}

type Broadcast struct {
	Msg types.ServerMessage
}

type GetClients struct {
	Reply chan int
}

type ShutdownHub struct{}

func (Register) isHubMsg()    {}
func (Unregister) isHubMsg()  {}
func (Broadcast) isHubMsg()   {}
func (GetClients) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub is the single fan-out point for everything the round publishes.
type Hub struct {
	inbox   chan HubMsg
	clients map[string]chan types.ServerMessage
	metrics *metrics.Metrics
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, m *metrics.Metrics, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 256),
		clients: make(map[string]chan types.ServerMessage),
		metrics: m,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

// Publish queues msg for every registered client. It only waits for room in
// the hub inbox, never for a client.
func (h *Hub) Publish(msg types.ServerMessage) {
	select {
	case h.inbox <- Broadcast{Msg: msg}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Register(id string, outbox chan types.ServerMessage) {
	select {
	case h.inbox <- Register{ClientID: id, Outbox: outbox}:
	case <-h.ctx.Done():
		close(outbox)
	}
}

func (h *Hub) Unregister(id string) {
	select {
	case h.inbox <- Unregister{ClientID: id}:
	case <-h.ctx.Done():
	}
}

// Clients reports how many clients are subscribed, or 0 once stopped.
func (h *Hub) Clients(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.inbox <- GetClients{Reply: reply}:
	case <-ctx.Done():
		return 0
	case <-h.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	case <-h.done:
		return 0
	}
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
		return
	}
	<-h.done
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Register:
				if old, ok := h.clients[msg.ClientID]; ok {
					close(old)
				}
				h.clients[msg.ClientID] = msg.Outbox
				h.metrics.SetClients(len(h.clients))
				h.log.Debug("client registered", zap.String("client", msg.ClientID))

			case Unregister:
				if ch, ok := h.clients[msg.ClientID]; ok {
					close(ch)
					delete(h.clients, msg.ClientID)
					h.metrics.SetClients(len(h.clients))
					h.log.Debug("client unregistered", zap.String("client", msg.ClientID))
				}

			case Broadcast:
				h.broadcast(msg.Msg)

			case GetClients:
				msg.Reply <- len(h.clients)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) broadcast(msg types.ServerMessage) {
	for id, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(h.clients, id)
			h.metrics.ClientDropped()
			h.log.Warn("dropping slow client", zap.String("client", id))
		}
	}
	h.metrics.SetClients(len(h.clients))
}

func (h *Hub) shutdown() {
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
	h.metrics.SetClients(0)
	h.cancel()
}
