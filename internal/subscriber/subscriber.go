// Package subscriber holds the hub's long-lived event stream open and
// translates relevant hub events into index tasks.
package subscriber

import (
	"context"
	"encoding/hex"
	"log"
	"math/rand"
	"time"

	"hubgateway/internal/hub"
	"hubgateway/internal/queue"
)

// Subscriber bridges hub.HubClient.Subscribe to a TaskQueue.
type Subscriber struct {
	Hub   hub.HubClient
	Queue *queue.TaskQueue

	// Supervise back-off bounds; overridable in tests.
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func New(h hub.HubClient, q *queue.TaskQueue) *Subscriber {
	return &Subscriber{
		Hub:         h,
		Queue:       q,
		baseBackoff: time.Second,
		maxBackoff:  time.Minute,
	}
}

// Supervise keeps the subscription alive: it runs the stream, and when it
// ends for any reason other than ctx cancellation, reopens it after a
// bounded exponential back-off with jitter. A stream that stayed healthy
// for longer than maxBackoff resets the back-off to its base.
func (s *Subscriber) Supervise(ctx context.Context) {
	backoff := s.baseBackoff
	for {
		started := time.Now()
		err := s.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > s.maxBackoff {
			backoff = s.baseBackoff
		}
		wait := backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))
		log.Printf("subscriber: stream ended (err=%v), restarting in %v", err, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

// Run opens the hub subscription and translates events until ctx is
// cancelled or the stream ends. It does not reconnect on its own; use
// Supervise for that.
func (s *Subscriber) Run(ctx context.Context) error {
	events, err := s.Hub.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			s.handle(evt)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Subscriber) handle(evt hub.HubEvent) {
	switch evt.Type {
	case hub.HubEventTypeMergeOnChainEvent:
		s.handleOnChainEvent(evt.OnChainEvent)
	case hub.HubEventTypeMergeMessage:
		s.handleMessage(evt.Message)
	default:
		// PruneMessage, RevokeMessage, MergeUsernameProof, None: ignored.
		// Only signer and user-data events feed the index.
	}
}

func (s *Subscriber) handleOnChainEvent(e *hub.OnChainEvent) {
	if e == nil || e.Type != hub.OnChainEventTypeSigner || e.SignerEventBody == nil {
		return
	}
	body := e.SignerEventBody
	active := body.EventType == hub.SignerEventAdd
	pkHex := hex.EncodeToString(body.Key)
	s.Queue.Send(queue.NewUpdateSigner(pkHex, e.FID, active))
}

func (s *Subscriber) handleMessage(m *hub.Message) {
	if m == nil || m.Data == nil {
		return
	}
	switch m.Data.Type {
	case hub.MessageTypeUserDataAdd:
		if m.Data.UserDataBody == nil {
			return
		}
		// A profile field changed upstream: force a re-fetch, bypassing
		// the debounce gap.
		s.Queue.Send(queue.NewIndexFid(m.Data.FID, true))
	default:
		log.Printf("subscriber: ignoring message type %v for fid=%d", m.Data.Type, m.Data.FID)
	}
}
