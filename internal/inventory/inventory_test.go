package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewService(db, zap.NewNop())
}

// TestSaveAndGet verifies round-tripping a snapshot including raw sections.
func TestSaveAndGet(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	snap := &Snapshot{
		DeviceID:      "dev-1",
		OSName:        "Windows 11 Pro",
		OSVersion:     "23H2",
		CPUModel:      "Intel Core i7-12700",
		TotalMemoryMB: 32768,
		Interfaces:    json.RawMessage(`[{"name":"eth0","mac":"00:11:22:33:44:55"}]`),
		Software:      json.RawMessage(`[{"name":"7-Zip","version":"23.01"}]`),
	}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OSName != "Windows 11 Pro" {
		t.Errorf("OSName = %q, want %q", got.OSName, "Windows 11 Pro")
	}
	if got.TotalMemoryMB != 32768 {
		t.Errorf("TotalMemoryMB = %d, want 32768", got.TotalMemoryMB)
	}
	if string(got.Interfaces) != string(snap.Interfaces) {
		t.Errorf("Interfaces = %s, want %s", got.Interfaces, snap.Interfaces)
	}
	if got.CollectedAt.IsZero() {
		t.Error("CollectedAt is zero, want stamped")
	}
}

// TestSaveReplacesPrevious verifies a device keeps exactly one snapshot.
func TestSaveReplacesPrevious(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if err := s.Save(ctx, &Snapshot{DeviceID: "dev-1", OSName: "Windows 10"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, &Snapshot{DeviceID: "dev-1", OSName: "Windows 11"}); err != nil {
		t.Fatalf("Save (second): %v", err)
	}

	got, err := s.Get(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OSName != "Windows 11" {
		t.Errorf("OSName = %q, want %q", got.OSName, "Windows 11")
	}
}

// TestGetMissing verifies ErrNotFound for devices without a snapshot.
func TestGetMissing(t *testing.T) {
	s := testService(t)
	if _, err := s.Get(context.Background(), "dev-404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

// TestSaveRaw verifies summary extraction from a full inventory payload.
func TestSaveRaw(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	raw := json.RawMessage(`{
		"timestampUtc": "2026-08-30T10:00:00Z",
		"hardware": {
			"manufacturer": "Dell Inc.",
			"model": "PowerEdge R650",
			"serialNumber": "SN-1234",
			"osName": "Windows Server 2022",
			"osVersion": "21H2",
			"processorName": "AMD EPYC 7443",
			"totalPhysicalMemory": 68719476736
		},
		"logicalDisks": [{"sizeGb": 480}, {"sizeGb": 960}],
		"installedSoftware": [{"name": "OpenSSL", "version": "3.1"}]
	}`)
	if err := s.SaveRaw(ctx, "dev-1", raw); err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}

	got, err := s.Get(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OSName != "Windows Server 2022" {
		t.Errorf("OSName = %q, want %q", got.OSName, "Windows Server 2022")
	}
	if got.TotalDiskGB != 1440 {
		t.Errorf("TotalDiskGB = %d, want 1440", got.TotalDiskGB)
	}
	if got.SerialNumber != "SN-1234" {
		t.Errorf("SerialNumber = %q, want %q", got.SerialNumber, "SN-1234")
	}
	if got.TotalMemoryMB != 65536 {
		t.Errorf("TotalMemoryMB = %d, want 65536", got.TotalMemoryMB)
	}
	if got.CollectedAt.UTC().Hour() != 10 {
		t.Errorf("CollectedAt = %v, want the reported timestamp", got.CollectedAt)
	}

	has, err := s.Has(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Error("Has() = false after SaveRaw, want true")
	}
}

// TestSaveRawMalformed verifies malformed payloads are rejected without a write.
func TestSaveRawMalformed(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if err := s.SaveRaw(ctx, "dev-1", json.RawMessage(`{broken`)); err == nil {
		t.Error("SaveRaw(malformed) returned nil error, want error")
	}
	has, err := s.Has(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if has {
		t.Error("Has() = true after rejected payload, want false")
	}
}
