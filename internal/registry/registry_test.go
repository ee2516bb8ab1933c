package registry

import (
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// fakeHandle records enqueued messages and close calls.
type fakeHandle struct {
	mu       sync.Mutex
	messages []any
	closed   bool
	reject   bool
}

func (h *fakeHandle) Enqueue(msg any) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reject {
		return false
	}
	h.messages = append(h.messages, msg)
	return true
}

func (h *fakeHandle) Close(_ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *fakeHandle) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func testRegistry() *ConnectionRegistry {
	return New(zap.NewNop())
}

// TestBindReturnsSuperseded verifies that rebinding a device returns the
// previous handle and leaves exactly one entry.
func TestBindReturnsSuperseded(t *testing.T) {
	r := testRegistry()
	first := &fakeHandle{}
	second := &fakeHandle{}

	if prev := r.Bind("dev-1", first); prev != nil {
		t.Errorf("first Bind returned %v, want nil", prev)
	}
	if prev := r.Bind("dev-1", second); prev != first {
		t.Errorf("second Bind returned %v, want the first handle", prev)
	}

	if got := r.CountOnline(); got != 1 {
		t.Errorf("CountOnline() = %d, want 1", got)
	}

	// Sends must reach only the most recent handle.
	if !r.Send("dev-1", "msg") {
		t.Fatal("Send returned false for online device")
	}
	if first.count() != 0 {
		t.Errorf("superseded handle received %d messages, want 0", first.count())
	}
	if second.count() != 1 {
		t.Errorf("current handle received %d messages, want 1", second.count())
	}
}

// TestUnbindOnlyIfCurrent verifies that a superseded handle cannot remove
// its successor from the registry.
func TestUnbindOnlyIfCurrent(t *testing.T) {
	r := testRegistry()
	old := &fakeHandle{}
	current := &fakeHandle{}

	r.Bind("dev-1", old)
	r.Bind("dev-1", current)

	// The old handle's cleanup runs after it was superseded: no-op.
	if r.Unbind("dev-1", old) {
		t.Error("Unbind with stale handle returned true, want false")
	}
	if !r.IsOnline("dev-1") {
		t.Fatal("device went offline after stale unbind")
	}

	// The current handle removes the mapping.
	if !r.Unbind("dev-1", current) {
		t.Error("Unbind with current handle returned false, want true")
	}
	if r.IsOnline("dev-1") {
		t.Error("device still online after current unbind")
	}
}

// TestUnbindUnknownDevice verifies that unbinding a device with no entry is a no-op.
func TestUnbindUnknownDevice(t *testing.T) {
	r := testRegistry()
	if r.Unbind("dev-404", &fakeHandle{}) {
		t.Error("Unbind for unknown device returned true, want false")
	}
}

// TestSendOffline verifies that Send fails for devices with no connection.
func TestSendOffline(t *testing.T) {
	r := testRegistry()
	if r.Send("dev-404", "msg") {
		t.Error("Send to offline device returned true, want false")
	}
}

// TestSendQueueRejection verifies that a full write queue surfaces as a failed send.
func TestSendQueueRejection(t *testing.T) {
	r := testRegistry()
	h := &fakeHandle{reject: true}
	r.Bind("dev-1", h)

	if r.Send("dev-1", "msg") {
		t.Error("Send returned true although the queue rejected the message")
	}
}

// TestListOnline verifies the online device listing.
func TestListOnline(t *testing.T) {
	r := testRegistry()
	r.Bind("dev-a", &fakeHandle{})
	r.Bind("dev-b", &fakeHandle{})
	r.Bind("dev-c", &fakeHandle{})
	r.Unbind("dev-b", nil) // stale handle, must not remove

	got := r.ListOnline()
	sort.Strings(got)
	want := []string{"dev-a", "dev-b", "dev-c"}
	if len(got) != len(want) {
		t.Fatalf("ListOnline() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListOnline()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestBroadcast verifies that Broadcast counts only successful enqueues.
func TestBroadcast(t *testing.T) {
	r := testRegistry()
	ok1 := &fakeHandle{}
	ok2 := &fakeHandle{}
	full := &fakeHandle{reject: true}

	r.Bind("dev-1", ok1)
	r.Bind("dev-2", ok2)
	r.Bind("dev-3", full)

	if sent := r.Broadcast("ping"); sent != 2 {
		t.Errorf("Broadcast() = %d, want 2", sent)
	}
	if ok1.count() != 1 || ok2.count() != 1 {
		t.Errorf("healthy handles received %d/%d messages, want 1/1", ok1.count(), ok2.count())
	}
}

// TestConcurrentBindUnbindSend verifies registry safety under concurrent access.
func TestConcurrentBindUnbindSend(t *testing.T) {
	r := testRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%10))
			h := &fakeHandle{}
			r.Bind(id, h)
			r.Send(id, n)
			r.IsOnline(id)
			r.Unbind(id, h)
		}(i)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ListOnline()
			r.CountOnline()
		}()
	}
	wg.Wait()

	if got := r.CountOnline(); got < 0 || got > 10 {
		t.Errorf("CountOnline() = %d after concurrent churn, want 0..10", got)
	}
}
