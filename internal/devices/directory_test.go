package devices

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/internal/store"
	"github.com/HerbHall/fleetgate/pkg/models"
)

// fakeCapacity is an in-memory stand-in for the license service.
type fakeCapacity struct {
	mu    sync.Mutex
	max   int
	count int
}

func (c *fakeCapacity) CheckCapacity(_ context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count < c.max, nil
}

func (c *fakeCapacity) IncrementDeviceCount(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count >= c.max {
		return errors.New("device limit reached")
	}
	c.count++
	return nil
}

func (c *fakeCapacity) DecrementDeviceCount(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count > 0 {
		c.count--
	}
	return nil
}

func testDirectory(t *testing.T, maxDevices int) (*Directory, *fakeCapacity) {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	lic := &fakeCapacity{max: maxDevices}
	return NewDirectory(NewStore(db.DB()), lic, zap.NewNop()), lic
}

func descriptor(hostname, mac string) models.DeviceDescriptor {
	return models.DeviceDescriptor{
		Hostname:     hostname,
		MACAddress:   mac,
		Domain:       "corp.local",
		OSVersion:    "Windows 11 Pro",
		Architecture: "x64",
		IPAddress:    "10.0.0.5",
		AgentVersion: "1.4.2",
	}
}

// TestUpsertCreatesDevice verifies first-time enrollment.
func TestUpsertCreatesDevice(t *testing.T) {
	dir, lic := testDirectory(t, 10)
	ctx := context.Background()

	dev, err := dir.Upsert(ctx, descriptor("ws-01", "00:1a:2b:3c:4d:5e"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if dev.ID == "" {
		t.Error("Upsert() returned device with empty ID")
	}
	if dev.Status != models.StatusConnected {
		t.Errorf("Status = %q, want %q", dev.Status, models.StatusConnected)
	}
	if dev.LastSeenAt == nil {
		t.Error("LastSeenAt is nil, want set")
	}
	if lic.count != 1 {
		t.Errorf("license count = %d, want 1", lic.count)
	}
}

// TestUpsertMatchesByMAC verifies that a registration with a known MAC
// updates the existing row even when the hostname changed.
func TestUpsertMatchesByMAC(t *testing.T) {
	dir, lic := testDirectory(t, 10)
	ctx := context.Background()

	first, err := dir.Upsert(ctx, descriptor("ws-01", "00:1a:2b:3c:4d:5e"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	renamed := descriptor("ws-01-renamed", "00:1a:2b:3c:4d:5e")
	renamed.AgentVersion = "1.5.0"
	second, err := dir.Upsert(ctx, renamed)
	if err != nil {
		t.Fatalf("Upsert (second): %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second Upsert created new device %s, want reuse of %s", second.ID, first.ID)
	}
	if second.Hostname != "ws-01-renamed" {
		t.Errorf("Hostname = %q, want %q", second.Hostname, "ws-01-renamed")
	}
	if second.AgentVersion != "1.5.0" {
		t.Errorf("AgentVersion = %q, want %q", second.AgentVersion, "1.5.0")
	}
	if lic.count != 1 {
		t.Errorf("license count = %d, want 1 (no second seat consumed)", lic.count)
	}
}

// TestUpsertMatchesByHostname verifies the hostname fallback when the
// agent reports no MAC address, and that the reported MAC is backfilled.
func TestUpsertMatchesByHostname(t *testing.T) {
	dir, _ := testDirectory(t, 10)
	ctx := context.Background()

	first, err := dir.Upsert(ctx, descriptor("ws-02", ""))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	second, err := dir.Upsert(ctx, descriptor("ws-02", "aa:bb:cc:dd:ee:ff"))
	if err != nil {
		t.Fatalf("Upsert (second): %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("hostname match created new device %s, want %s", second.ID, first.ID)
	}
	if second.MACAddress != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("MACAddress = %q, want backfilled MAC", second.MACAddress)
	}
}

// TestUpsertCapacityExceeded verifies that a full license blocks new
// enrollments but not re-registrations of known devices.
func TestUpsertCapacityExceeded(t *testing.T) {
	dir, _ := testDirectory(t, 1)
	ctx := context.Background()

	if _, err := dir.Upsert(ctx, descriptor("ws-01", "00:00:00:00:00:01")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	_, err := dir.Upsert(ctx, descriptor("ws-02", "00:00:00:00:00:02"))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Upsert over capacity error = %v, want ErrCapacityExceeded", err)
	}

	// Known device still re-registers fine at capacity.
	if _, err := dir.Upsert(ctx, descriptor("ws-01", "00:00:00:00:00:01")); err != nil {
		t.Errorf("re-register at capacity error = %v, want nil", err)
	}
}

// TestConcurrentUpsertSameIdentity verifies that racing registrations of
// the same machine never create two rows.
func TestConcurrentUpsertSameIdentity(t *testing.T) {
	dir, lic := testDirectory(t, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = dir.Upsert(ctx, descriptor("ws-03", "00:00:00:00:00:03"))
		}()
	}
	wg.Wait()

	list, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() returned %d devices, want 1", len(list))
	}
	if lic.count != 1 {
		t.Errorf("license count = %d, want 1", lic.count)
	}
}

// TestMarkDisconnected verifies status and last_seen_at updates.
func TestMarkDisconnected(t *testing.T) {
	dir, _ := testDirectory(t, 10)
	ctx := context.Background()

	dev, err := dir.Upsert(ctx, descriptor("ws-04", "00:00:00:00:00:04"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := dir.MarkDisconnected(ctx, dev.ID); err != nil {
		t.Fatalf("MarkDisconnected: %v", err)
	}

	got, err := dir.Get(ctx, dev.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusDisconnected {
		t.Errorf("Status = %q, want %q", got.Status, models.StatusDisconnected)
	}
	if got.LastSeenAt == nil {
		t.Error("LastSeenAt is nil after disconnect, want set")
	}
}

// TestDeleteFreesSeat verifies deletion returns the license seat.
func TestDeleteFreesSeat(t *testing.T) {
	dir, lic := testDirectory(t, 1)
	ctx := context.Background()

	dev, err := dir.Upsert(ctx, descriptor("ws-05", "00:00:00:00:00:05"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := dir.Delete(ctx, dev.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if lic.count != 0 {
		t.Errorf("license count = %d after delete, want 0", lic.count)
	}
	if _, err := dir.Get(ctx, dev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}

	// The freed seat can be used by a new device.
	if _, err := dir.Upsert(ctx, descriptor("ws-06", "00:00:00:00:00:06")); err != nil {
		t.Errorf("Upsert after delete error = %v, want nil", err)
	}
}
