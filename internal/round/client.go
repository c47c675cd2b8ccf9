package round

import (
	"context"

	"github.com/DoyleJ11/rising-multiplier/internal/types"
)

func (r *Round) request(ctx context.Context, msg Msg, reply chan error) error {
	select {
	case r.inbox <- msg:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrClosed
	}
}

func (r *Round) Join(ctx context.Context, id, displayName string) error {
	reply := make(chan error, 1)
	return r.request(ctx, Join{ParticipantID: id, DisplayName: displayName, Reply: reply}, reply)
}

func (r *Round) Leave(ctx context.Context, id string) error {
	reply := make(chan error, 1)
	return r.request(ctx, Leave{ParticipantID: id, Reply: reply}, reply)
}

func (r *Round) PlaceBet(ctx context.Context, id string, target, stake float64) error {
	reply := make(chan error, 1)
	return r.request(ctx, PlaceBet{ParticipantID: id, TargetMultiplier: target, Stake: stake, Reply: reply}, reply)
}

// Subscribe puts the current snapshot on outbox and registers it for every
// later broadcast. outbox needs at least one free slot.
func (r *Round) Subscribe(ctx context.Context, id string, outbox chan types.ServerMessage) error {
	reply := make(chan error, 1)
	return r.request(ctx, Subscribe{ClientID: id, Outbox: outbox, Reply: reply}, reply)
}

func (r *Round) Reset(ctx context.Context) error {
	reply := make(chan error, 1)
	return r.request(ctx, Reset{Reply: reply}, reply)
}

func (r *Round) ChangeSpeed(ctx context.Context, factor float64) error {
	reply := make(chan error, 1)
	return r.request(ctx, ChangeSpeed{SpeedFactor: factor, Reply: reply}, reply)
}

func (r *Round) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case r.inbox <- GetState{Reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-r.done:
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-r.done:
		return View{}, ErrClosed
	}
}

// Shutdown stops the actor and waits for it to exit.
func (r *Round) Shutdown() {
	select {
	case r.inbox <- Shutdown{}:
	case <-r.done:
		return
	}
	<-r.done
}
