package scheduler

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"hubgateway/internal/queue"
)

func TestShouldSchedule(t *testing.T) {
	tests := []struct {
		name    string
		now     int64
		last    int64
		hasLast bool
		gap     int64
		want    bool
	}{
		{"no prior run", 1000, 0, false, 300, true},
		{"within gap", 299, 0, true, 300, false},
		{"exactly at gap boundary", 300, 0, true, 300, false},
		{"just past gap", 301, 0, true, 300, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := shouldSchedule(tc.now, tc.last, tc.hasLast, tc.gap)
			if got != tc.want {
				t.Errorf("shouldSchedule(%d,%d,%v,%d) = %v, want %v", tc.now, tc.last, tc.hasLast, tc.gap, got, tc.want)
			}
		})
	}
}

type fakeProfiles struct {
	mu    sync.Mutex
	calls []uint64
}

func (f *fakeProfiles) FetchAndStoreProfile(ctx context.Context, fid uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fid)
	return nil
}

type fakeLinks struct {
	mu    sync.Mutex
	calls []uint64
}

func (f *fakeLinks) FetchAndStoreLinks(ctx context.Context, fid uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fid)
	return nil
}

type fakeSigners struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSigners) InsertSigner(ctx context.Context, pk []byte, fid uint64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, hex.EncodeToString(pk))
	return nil
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorker_AdmitsFirstIndexFid(t *testing.T) {
	q := queue.New()
	defer q.Close()
	profiles := &fakeProfiles{}
	w := NewWorker(q, profiles, &fakeLinks{}, &fakeSigners{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	q.Send(queue.NewIndexFid(42, false))

	waitForCondition(t, func() bool {
		profiles.mu.Lock()
		defer profiles.mu.Unlock()
		return len(profiles.calls) == 1
	})
}

func TestWorker_DebouncesRepeatedIndexFid(t *testing.T) {
	q := queue.New()
	defer q.Close()
	profiles := &fakeProfiles{}
	w := NewWorker(q, profiles, &fakeLinks{}, &fakeSigners{})
	fixedNow := int64(1_000_000)
	w.now = func() int64 { return fixedNow }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.dispatch(ctx, queue.NewIndexFid(7, false))
	waitForCondition(t, func() bool {
		profiles.mu.Lock()
		defer profiles.mu.Unlock()
		return len(profiles.calls) == 1
	})

	fixedNow += 299
	w.dispatch(ctx, queue.NewIndexFid(7, false))
	time.Sleep(20 * time.Millisecond)
	profiles.mu.Lock()
	got := len(profiles.calls)
	profiles.mu.Unlock()
	if got != 1 {
		t.Fatalf("expected debounced task to be dropped, got %d calls", got)
	}

	fixedNow += 2 // now 301s after the first admit
	w.dispatch(ctx, queue.NewIndexFid(7, false))
	waitForCondition(t, func() bool {
		profiles.mu.Lock()
		defer profiles.mu.Unlock()
		return len(profiles.calls) == 2
	})
}

func TestWorker_UpdateSignerAlwaysAdmitted(t *testing.T) {
	q := queue.New()
	defer q.Close()
	signers := &fakeSigners{}
	w := NewWorker(q, &fakeProfiles{}, &fakeLinks{}, signers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pkHex := hex.EncodeToString([]byte{0x01, 0x02})
	w.dispatch(ctx, queue.NewUpdateSigner(pkHex, 9, true))
	w.dispatch(ctx, queue.NewUpdateSigner(pkHex, 9, false))

	waitForCondition(t, func() bool {
		signers.mu.Lock()
		defer signers.mu.Unlock()
		return len(signers.calls) == 2
	})
}

func TestWorker_ReservedTaskKindsAreNoop(t *testing.T) {
	q := queue.New()
	defer q.Close()
	profiles := &fakeProfiles{}
	links := &fakeLinks{}
	w := NewWorker(q, profiles, links, &fakeSigners{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.dispatch(ctx, queue.NewIndexFidCasts(1))
	w.dispatch(ctx, queue.NewIndexCast(1, "cast-1"))

	time.Sleep(20 * time.Millisecond)
	profiles.mu.Lock()
	pCalls := len(profiles.calls)
	profiles.mu.Unlock()
	links.mu.Lock()
	lCalls := len(links.calls)
	links.mu.Unlock()
	if pCalls != 0 || lCalls != 0 {
		t.Fatalf("reserved task kinds should not dispatch any work, got profiles=%d links=%d", pCalls, lCalls)
	}
}
