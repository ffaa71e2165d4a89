package presence

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
)

type fakeHandle struct {
	name string
}

func (h *fakeHandle) Push(event models.Event) error { return nil }

func TestRegistry_ConnectLookup(t *testing.T) {
	r := NewRegistry()
	user := uuid.New()
	h := &fakeHandle{name: "h1"}

	if r.IsOnline(user) {
		t.Fatal("expected empty registry")
	}
	if prev := r.Connect(user, h); prev != nil {
		t.Fatalf("expected no displaced handle, got %v", prev)
	}
	got, ok := r.Lookup(user)
	if !ok || got != h {
		t.Fatalf("expected h1, got %v ok=%t", got, ok)
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
}

func TestRegistry_ConnectIsIdempotent(t *testing.T) {
	r := NewRegistry()
	user := uuid.New()
	h := &fakeHandle{}

	r.Connect(user, h)
	if prev := r.Connect(user, h); prev != nil {
		t.Fatalf("expected reconnect of same handle to displace nothing, got %v", prev)
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
}

func TestRegistry_LatestConnectWinsStaleDisconnectIgnored(t *testing.T) {
	r := NewRegistry()
	user := uuid.New()
	h1, h2 := &fakeHandle{name: "h1"}, &fakeHandle{name: "h2"}

	r.Connect(user, h1)
	if prev := r.Connect(user, h2); prev != h1 {
		t.Fatalf("expected h1 displaced, got %v", prev)
	}
	if _, ok := r.Disconnect(h1); ok {
		t.Fatal("expected stale disconnect to be a no-op")
	}

	got, ok := r.Lookup(user)
	if !ok || got != h2 {
		t.Fatalf("expected h2 to remain, got %v ok=%t", got, ok)
	}

	id, ok := r.Disconnect(h2)
	if !ok || id != user {
		t.Fatalf("expected disconnect of current handle to report user, got %v ok=%t", id, ok)
	}
	if r.IsOnline(user) {
		t.Fatal("expected user offline")
	}
}

func TestRegistry_DisconnectUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	other := uuid.New()
	r.Connect(other, &fakeHandle{})

	if _, ok := r.Disconnect(&fakeHandle{}); ok {
		t.Fatal("expected unknown handle disconnect to be a no-op")
	}
	if !r.IsOnline(other) {
		t.Fatal("expected unrelated entry untouched")
	}
}

func TestRegistry_DisconnectBeforeConnect(t *testing.T) {
	r := NewRegistry()
	user := uuid.New()
	h := &fakeHandle{}

	r.Disconnect(h)
	r.Connect(user, h)
	if !r.IsOnline(user) {
		t.Fatal("expected out-of-order disconnect not to block a later connect")
	}
}

func TestRegistry_HandleMovedToAnotherUser(t *testing.T) {
	r := NewRegistry()
	a, b := uuid.New(), uuid.New()
	h := &fakeHandle{}

	r.Connect(a, h)
	r.Connect(b, h)

	if r.IsOnline(a) {
		t.Fatal("expected first user to lose the reassigned handle")
	}
	if got, _ := r.Lookup(b); got != h {
		t.Fatal("expected second user to own the handle")
	}
}

func TestRegistry_InstancesAreIndependent(t *testing.T) {
	r1, r2 := NewRegistry(), NewRegistry()
	user := uuid.New()
	r1.Connect(user, &fakeHandle{})
	if r2.IsOnline(user) {
		t.Fatal("expected registries not to share state")
	}
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	user := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := &fakeHandle{}
			r.Connect(user, h)
			r.Disconnect(h)
		}()
	}
	wg.Wait()

	if r.Count() > 1 {
		t.Fatalf("expected at most one entry, got %d", r.Count())
	}
	final := &fakeHandle{}
	r.Connect(user, final)
	if got, _ := r.Lookup(user); got != final {
		t.Fatal("expected final connect to win")
	}
}
