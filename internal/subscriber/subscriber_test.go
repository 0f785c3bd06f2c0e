package subscriber

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"hubgateway/internal/hub"
	"hubgateway/internal/queue"
)

// fakeHub implements hub.HubClient well enough to drive Subscriber.Run; only
// Subscribe is exercised by this package.
type fakeHub struct {
	events chan hub.HubEvent
	err    error
}

func (f *fakeHub) GetUserProfile(ctx context.Context, fid uint64) (*hub.ProfileResponse, error) {
	panic("not used by subscriber")
}
func (f *fakeHub) GetLinksByFid(ctx context.Context, req hub.LinksByFidRequest) (*hub.LinksResponse, error) {
	panic("not used by subscriber")
}
func (f *fakeHub) GetLinksByTarget(ctx context.Context, req hub.LinksByTargetRequest) (*hub.LinksResponse, error) {
	panic("not used by subscriber")
}
func (f *fakeHub) GetOnChainSignersByFid(ctx context.Context, fid uint64) (*hub.OnChainSignersResponse, error) {
	panic("not used by subscriber")
}
func (f *fakeHub) SubmitMessage(ctx context.Context, msg *hub.Message) error {
	panic("not used by subscriber")
}
func (f *fakeHub) Subscribe(ctx context.Context) (<-chan hub.HubEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func waitForTask(t *testing.T, q *queue.TaskQueue) queue.Task {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	task, ok := q.Receive(ctx)
	if !ok {
		t.Fatal("expected a task, got none before deadline")
	}
	return task
}

func TestSubscriber_SignerAddEnqueuesUpdateSigner(t *testing.T) {
	events := make(chan hub.HubEvent, 1)
	q := queue.New()
	defer q.Close()
	s := New(&fakeHub{events: events}, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	pk := []byte{0xAB, 0xCD}
	events <- hub.HubEvent{
		Type: hub.HubEventTypeMergeOnChainEvent,
		OnChainEvent: &hub.OnChainEvent{
			Type: hub.OnChainEventTypeSigner,
			FID:  9,
			SignerEventBody: &hub.SignerEventBody{
				Key:       pk,
				EventType: hub.SignerEventAdd,
			},
		},
	}

	task := waitForTask(t, q)
	want := queue.NewUpdateSigner(hex.EncodeToString(pk), 9, true)
	if task != want {
		t.Fatalf("got %+v, want %+v", task, want)
	}
}

func TestSubscriber_SignerRemoveEnqueuesInactive(t *testing.T) {
	events := make(chan hub.HubEvent, 1)
	q := queue.New()
	defer q.Close()
	s := New(&fakeHub{events: events}, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	pk := []byte{0x01}
	events <- hub.HubEvent{
		Type: hub.HubEventTypeMergeOnChainEvent,
		OnChainEvent: &hub.OnChainEvent{
			Type: hub.OnChainEventTypeSigner,
			FID:  3,
			SignerEventBody: &hub.SignerEventBody{
				Key:       pk,
				EventType: hub.SignerEventRemove,
			},
		},
	}

	task := waitForTask(t, q)
	if task.SignerActive {
		t.Fatal("expected SignerActive=false on a remove event")
	}
}

func TestSubscriber_UserDataMergeEnqueuesForcedIndexFid(t *testing.T) {
	events := make(chan hub.HubEvent, 1)
	q := queue.New()
	defer q.Close()
	s := New(&fakeHub{events: events}, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	events <- hub.HubEvent{
		Type: hub.HubEventTypeMergeMessage,
		Message: &hub.Message{
			Data: &hub.MessageData{
				Type:         hub.MessageTypeUserDataAdd,
				FID:          55,
				UserDataBody: &hub.UserDataBody{FID: 55},
			},
		},
	}

	task := waitForTask(t, q)
	want := queue.NewIndexFid(55, true)
	if task != want {
		t.Fatalf("got %+v, want %+v", task, want)
	}
}

func TestSubscriber_IgnoresOtherEventTypes(t *testing.T) {
	events := make(chan hub.HubEvent, 1)
	q := queue.New()
	defer q.Close()
	s := New(&fakeHub{events: events}, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	events <- hub.HubEvent{Type: hub.HubEventTypePruneMessage}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, ok := q.Receive(ctx2); ok {
		t.Fatal("expected no task to be enqueued for an ignored event type")
	}
}

// flakyHub fails its first Subscribe call and succeeds afterwards,
// exercising Supervise's restart path.
type flakyHub struct {
	fakeHub
	mu    sync.Mutex
	calls int
}

func (f *flakyHub) Subscribe(ctx context.Context) (<-chan hub.HubEvent, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n == 1 {
		return nil, errors.New("stream unavailable")
	}
	return f.events, nil
}

func TestSupervise_RestartsAfterStreamError(t *testing.T) {
	events := make(chan hub.HubEvent, 1)
	q := queue.New()
	defer q.Close()
	fh := &flakyHub{fakeHub: fakeHub{events: events}}
	s := New(fh, q)
	s.baseBackoff = time.Millisecond
	s.maxBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Supervise(ctx)

	events <- hub.HubEvent{
		Type: hub.HubEventTypeMergeOnChainEvent,
		OnChainEvent: &hub.OnChainEvent{
			Type: hub.OnChainEventTypeSigner,
			FID:  4,
			SignerEventBody: &hub.SignerEventBody{
				Key:       []byte{0x04},
				EventType: hub.SignerEventAdd,
			},
		},
	}

	// Receiving the task proves the second Subscribe attempt went through.
	task := waitForTask(t, q)
	if task.Kind != queue.TaskUpdateSigner {
		t.Fatalf("got task %+v, want an UpdateSigner task", task)
	}
}
