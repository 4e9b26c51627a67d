package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/KosmosisDire/LCMware/bus"
	"github.com/KosmosisDire/LCMware/tap"
)

func TestQueueFullDropsInsteadOfBlocking(t *testing.T) {
	b, _ := newNode(t, bus.WithQueueDepth(1))

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	got := make(chan int, 4)
	if _, err := bus.Subscribe(b, "/slow", func(_ context.Context, m ping) {
		started <- struct{}{}
		<-release
		got <- m.N
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// first message occupies the dispatch loop...
	if err := b.Publish(t.Context(), "/slow", ping{N: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-started:
	case <-time.After(waitTime):
		t.Fatalf("handler never started")
	}

	// ...the second fills the queue, the third has nowhere to go
	if err := b.Publish(t.Context(), "/slow", ping{N: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.Publish(t.Context(), "/slow", ping{N: 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	close(release)

	want := []int{1, 2}
	for _, w := range want {
		select {
		case v := <-got:
			if v != w {
				t.Fatalf("got %d, want %d", v, w)
			}
		case <-time.After(waitTime):
			t.Fatalf("message %d never delivered", w)
		}
	}

	select {
	case v := <-got:
		t.Fatalf("message %d should have been dropped", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTapSeesTrafficInOrder(t *testing.T) {
	rec := tap.NewRecorder()
	b, _ := newNode(t, bus.WithTap(rec))

	delivered := make(chan struct{}, 2)
	if _, err := bus.Subscribe(b, "/tapped", func(_ context.Context, _ ping) {
		delivered <- struct{}{}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := b.Publish(t.Context(), "/tapped", ping{N: i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case <-delivered:
		case <-time.After(waitTime):
			t.Fatalf("message %d never delivered", i)
		}
	}

	entries := rec.Entries()
	if len(entries) != 4 {
		t.Fatalf("want 4 tap entries, got %d", len(entries))
	}
	wantDirs := []tap.Direction{tap.Outbound, tap.Inbound, tap.Outbound, tap.Inbound}
	for i, e := range entries {
		if e.Direction != wantDirs[i] {
			t.Fatalf("entry %d: direction %s, want %s", i, e.Direction, wantDirs[i])
		}
		if e.Channel != "/tapped" {
			t.Fatalf("entry %d: channel %q", i, e.Channel)
		}
		if len(e.Payload) == 0 {
			t.Fatalf("entry %d: empty payload", i)
		}
	}
}
