package registry_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/database"
	"github.com/strandlab/dmx-rdm-core/internal/rdm"
	"github.com/strandlab/dmx-rdm-core/internal/registry"
)

func newTestRepo(t *testing.T) *registry.SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "registry.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := registry.NewSQLiteRepository(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return repo
}

func TestInit_Idempotent(t *testing.T) {
	repo := newTestRepo(t)

	// Second Init on an up-to-date database must be a no-op.
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("re-running Init: %v", err)
	}
}

func TestRecordSighting_NewDevice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run, err := repo.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}

	uid := rdm.NewUID(0x4c4c, 0x00000001)
	if err := repo.RecordSighting(ctx, run.ID, uid); err != nil {
		t.Fatalf("RecordSighting() error = %v", err)
	}

	device, err := repo.Get(ctx, uid)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if device.UID != uid {
		t.Errorf("UID = %v, want %v", device.UID, uid)
	}
	if device.ManufacturerID != 0x4c4c {
		t.Errorf("ManufacturerID = %#04x, want 0x4c4c", device.ManufacturerID)
	}
	if !device.Online {
		t.Error("new sighting should be online")
	}
	if device.LastRunID != run.ID {
		t.Errorf("LastRunID = %q, want %q", device.LastRunID, run.ID)
	}
	if device.FirstSeen.IsZero() || device.LastSeen.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestRecordSighting_UpsertKeepsFirstSeen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := rdm.NewUID(0x4c4c, 0x00000002)

	run1, _ := repo.BeginRun(ctx)
	if err := repo.RecordSighting(ctx, run1.ID, uid); err != nil {
		t.Fatalf("first sighting: %v", err)
	}
	first, _ := repo.Get(ctx, uid)

	run2, _ := repo.BeginRun(ctx)
	if err := repo.RecordSighting(ctx, run2.ID, uid); err != nil {
		t.Fatalf("second sighting: %v", err)
	}

	device, err := repo.Get(ctx, uid)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !device.FirstSeen.Equal(first.FirstSeen) {
		t.Errorf("FirstSeen changed on upsert: %v -> %v", first.FirstSeen, device.FirstSeen)
	}
	if device.LastSeen.Before(first.LastSeen) {
		t.Error("LastSeen should not move backwards")
	}
	if device.LastRunID != run2.ID {
		t.Errorf("LastRunID = %q, want %q", device.LastRunID, run2.ID)
	}
}

func TestRecordSighting_BadRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := rdm.NewUID(0x4c4c, 0x00000003)

	err := repo.RecordSighting(ctx, "no-such-run", uid)
	if !errors.Is(err, registry.ErrRunNotFound) {
		t.Errorf("RecordSighting() error = %v, want ErrRunNotFound", err)
	}

	run, _ := repo.BeginRun(ctx)
	if err := repo.CompleteRun(ctx, run.ID, 0, ""); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}
	err = repo.RecordSighting(ctx, run.ID, uid)
	if !errors.Is(err, registry.ErrRunCompleted) {
		t.Errorf("RecordSighting() after completion error = %v, want ErrRunCompleted", err)
	}
}

func TestCompleteRun_MarksMissingOffline(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stays := rdm.NewUID(0x4c4c, 0x0000000a)
	vanishes := rdm.NewUID(0x4c4c, 0x0000000b)

	run1, _ := repo.BeginRun(ctx)
	repo.RecordSighting(ctx, run1.ID, stays)
	repo.RecordSighting(ctx, run1.ID, vanishes)
	if err := repo.CompleteRun(ctx, run1.ID, 10, ""); err != nil {
		t.Fatalf("completing first run: %v", err)
	}

	run2, _ := repo.BeginRun(ctx)
	repo.RecordSighting(ctx, run2.ID, stays)
	if err := repo.CompleteRun(ctx, run2.ID, 6, ""); err != nil {
		t.Fatalf("completing second run: %v", err)
	}

	online, err := repo.ListOnline(ctx)
	if err != nil {
		t.Fatalf("ListOnline() error = %v", err)
	}
	if len(online) != 1 || online[0].UID != stays {
		t.Errorf("ListOnline() = %v, want only %v", online, stays)
	}

	gone, err := repo.Get(ctx, vanishes)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gone.Online {
		t.Error("device absent from run should be offline")
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List() returned %d devices, want 2 (offline devices are kept)", len(all))
	}
}

func TestCompleteRun_PartialRunKeepsOnlineFlags(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	known := rdm.NewUID(0x4c4c, 0x00000010)

	run1, _ := repo.BeginRun(ctx)
	repo.RecordSighting(ctx, run1.ID, known)
	if err := repo.CompleteRun(ctx, run1.ID, 4, ""); err != nil {
		t.Fatalf("completing first run: %v", err)
	}

	// Aborted sweep: no sightings, error recorded.
	run2, _ := repo.BeginRun(ctx)
	if err := repo.CompleteRun(ctx, run2.ID, 2048, "probe budget exhausted"); err != nil {
		t.Fatalf("completing partial run: %v", err)
	}

	device, err := repo.Get(ctx, known)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !device.Online {
		t.Error("partial run must not mark unprobed devices offline")
	}

	stored, err := repo.GetRun(ctx, run2.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if stored.Error != "probe budget exhausted" {
		t.Errorf("run error = %q, want recorded budget error", stored.Error)
	}
	if !stored.Completed() {
		t.Error("partial run should still be completed")
	}
}

func TestCompleteRun_CountsDevices(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run, _ := repo.BeginRun(ctx)
	for i := uint32(1); i <= 3; i++ {
		repo.RecordSighting(ctx, run.ID, rdm.NewUID(0x0102, i))
	}
	if err := repo.CompleteRun(ctx, run.ID, 21, ""); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}

	stored, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if stored.DevicesFound != 3 {
		t.Errorf("DevicesFound = %d, want 3", stored.DevicesFound)
	}
	if stored.Probes != 21 {
		t.Errorf("Probes = %d, want 21", stored.Probes)
	}

	if err := repo.CompleteRun(ctx, run.ID, 21, ""); !errors.Is(err, registry.ErrRunCompleted) {
		t.Errorf("double completion error = %v, want ErrRunCompleted", err)
	}
}

func TestSetLabels(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := rdm.NewUID(0x4c4c, 0x00000020)

	err := repo.SetLabels(ctx, uid, "Dimmer 1", "Strand")
	if !errors.Is(err, registry.ErrDeviceNotFound) {
		t.Errorf("SetLabels() on unknown UID error = %v, want ErrDeviceNotFound", err)
	}

	run, _ := repo.BeginRun(ctx)
	repo.RecordSighting(ctx, run.ID, uid)

	if err := repo.SetLabels(ctx, uid, "Dimmer 1", "Strand"); err != nil {
		t.Fatalf("SetLabels() error = %v", err)
	}

	device, _ := repo.Get(ctx, uid)
	if device.DeviceLabel != "Dimmer 1" || device.ManufacturerLabel != "Strand" {
		t.Errorf("labels = %q/%q, want Dimmer 1/Strand", device.DeviceLabel, device.ManufacturerLabel)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), rdm.NewUID(0xffff, 0x0))
	if !errors.Is(err, registry.ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetRun(context.Background(), "nope")
	if !errors.Is(err, registry.ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}
