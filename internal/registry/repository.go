package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/database"
	"github.com/strandlab/dmx-rdm-core/internal/rdm"
)

// schemaVersion is the registry's current schema. Bump together with
// the statements in Init.
const schemaVersion = 1

// Repository defines the interface for registry persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Get retrieves a device by UID.
	// Returns ErrDeviceNotFound if the UID has never been discovered.
	Get(ctx context.Context, uid rdm.UID) (*Device, error)

	// List retrieves all devices ever discovered, online first.
	List(ctx context.Context) ([]Device, error)

	// ListOnline retrieves devices that answered the most recent run.
	ListOnline(ctx context.Context) ([]Device, error)

	// SetLabels updates the label fields for a device.
	// Returns ErrDeviceNotFound if the UID has never been discovered.
	SetLabels(ctx context.Context, uid rdm.UID, deviceLabel, manufacturerLabel string) error

	// BeginRun creates a new discovery run and returns it.
	BeginRun(ctx context.Context) (*DiscoveryRun, error)

	// RecordSighting upserts a device seen during a run: new UIDs are
	// inserted, known UIDs get last_seen/online refreshed.
	// Returns ErrRunNotFound or ErrRunCompleted for a bad run ID.
	RecordSighting(ctx context.Context, runID string, uid rdm.UID) error

	// CompleteRun finalises a run. Devices not sighted by the run are
	// marked offline, unless runErr is non-empty (a partial run proves
	// nothing about responders it never probed).
	CompleteRun(ctx context.Context, runID string, probes int, runErr string) error

	// GetRun retrieves a discovery run by ID.
	// Returns ErrRunNotFound if the run does not exist.
	GetRun(ctx context.Context, id string) (*DiscoveryRun, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// Call Init before first use to apply the schema.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Init applies the registry schema if the database is older than the
// current schema version. Safe to call on every startup.
func (r *SQLiteRepository) Init(ctx context.Context) error {
	version, err := r.db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version >= schemaVersion {
		return nil
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS discovery_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			devices_found INTEGER NOT NULL DEFAULT 0,
			probes INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS devices (
			uid TEXT PRIMARY KEY,
			manufacturer_id INTEGER NOT NULL,
			device_label TEXT NOT NULL DEFAULT '',
			manufacturer_label TEXT NOT NULL DEFAULT '',
			first_seen TEXT NOT NULL,
			last_seen TEXT NOT NULL,
			online INTEGER NOT NULL DEFAULT 1,
			last_run_id TEXT REFERENCES discovery_runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_online ON devices(online)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying registry schema: %w", err)
		}
	}

	return r.db.SetSchemaVersion(ctx, schemaVersion)
}

// Get retrieves a device by UID.
func (r *SQLiteRepository) Get(ctx context.Context, uid rdm.UID) (*Device, error) {
	query := `
		SELECT uid, manufacturer_id, device_label, manufacturer_label,
			first_seen, last_seen, online, COALESCE(last_run_id, '')
		FROM devices
		WHERE uid = ?`

	row := r.db.QueryRowContext(ctx, query, uid.String())
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by uid: %w", err)
	}
	return device, nil
}

// List retrieves all devices ever discovered, online first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `
		SELECT uid, manufacturer_id, device_label, manufacturer_label,
			first_seen, last_seen, online, COALESCE(last_run_id, '')
		FROM devices
		ORDER BY online DESC, uid`

	return r.queryDevices(ctx, query)
}

// ListOnline retrieves devices that answered the most recent run.
func (r *SQLiteRepository) ListOnline(ctx context.Context) ([]Device, error) {
	query := `
		SELECT uid, manufacturer_id, device_label, manufacturer_label,
			first_seen, last_seen, online, COALESCE(last_run_id, '')
		FROM devices
		WHERE online = 1
		ORDER BY uid`

	return r.queryDevices(ctx, query)
}

// SetLabels updates the label fields for a device.
func (r *SQLiteRepository) SetLabels(ctx context.Context, uid rdm.UID, deviceLabel, manufacturerLabel string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET device_label = ?, manufacturer_label = ?
		WHERE uid = ?`,
		deviceLabel, manufacturerLabel, uid.String(),
	)
	if err != nil {
		return fmt.Errorf("updating device labels: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// BeginRun creates a new discovery run and returns it.
func (r *SQLiteRepository) BeginRun(ctx context.Context) (*DiscoveryRun, error) {
	run := &DiscoveryRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO discovery_runs (id, started_at) VALUES (?, ?)`,
		run.ID, run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("creating discovery run: %w", err)
	}
	return run, nil
}

// RecordSighting upserts a device seen during a run.
func (r *SQLiteRepository) RecordSighting(ctx context.Context, runID string, uid rdm.UID) error {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Completed() {
		return ErrRunCompleted
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (uid, manufacturer_id, first_seen, last_seen, online, last_run_id)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(uid) DO UPDATE SET
			last_seen = excluded.last_seen,
			online = 1,
			last_run_id = excluded.last_run_id`,
		uid.String(), uid.Manufacturer(), now, now, runID,
	)
	if err != nil {
		return fmt.Errorf("recording sighting: %w", err)
	}
	return nil
}

// CompleteRun finalises a run and reconciles online flags.
func (r *SQLiteRepository) CompleteRun(ctx context.Context, runID string, probes int, runErr string) error {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Completed() {
		return ErrRunCompleted
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var found int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM devices WHERE last_run_id = ?", runID,
	).Scan(&found)
	if err != nil {
		return fmt.Errorf("counting sightings: %w", err)
	}

	// A clean full sweep proves absence; a partial run does not.
	if runErr == "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE devices SET online = 0
			WHERE last_run_id IS NULL OR last_run_id != ?`, runID,
		); err != nil {
			return fmt.Errorf("marking missing devices offline: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE discovery_runs
		SET completed_at = ?, devices_found = ?, probes = ?, error = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), found, probes, runErr, runID,
	); err != nil {
		return fmt.Errorf("completing discovery run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run completion: %w", err)
	}
	return nil
}

// GetRun retrieves a discovery run by ID.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*DiscoveryRun, error) {
	var (
		run         DiscoveryRun
		startedAt   string
		completedAt sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, started_at, completed_at, devices_found, probes, error
		FROM discovery_runs
		WHERE id = ?`, id,
	).Scan(&run.ID, &startedAt, &completedAt, &run.DevicesFound, &run.Probes, &run.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying discovery run: %w", err)
	}

	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing run start time: %w", err)
	}
	if completedAt.Valid && completedAt.String != "" {
		run.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing run completion time: %w", err)
		}
	}
	return &run, nil
}

// queryDevices runs a query returning device rows and scans them all.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...interface{}) ([]Device, error) {
	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanDevice scans a single device row.
func scanDevice(row rowScanner) (*Device, error) {
	var (
		device    Device
		uidStr    string
		firstSeen string
		lastSeen  string
		online    int
	)

	err := row.Scan(
		&uidStr, &device.ManufacturerID,
		&device.DeviceLabel, &device.ManufacturerLabel,
		&firstSeen, &lastSeen, &online, &device.LastRunID,
	)
	if err != nil {
		return nil, err
	}

	device.UID, err = rdm.ParseUID(uidStr)
	if err != nil {
		return nil, fmt.Errorf("parsing stored uid %q: %w", uidStr, err)
	}
	device.FirstSeen, err = time.Parse(time.RFC3339Nano, firstSeen)
	if err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	device.LastSeen, err = time.Parse(time.RFC3339Nano, lastSeen)
	if err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}
	device.Online = online != 0

	return &device, nil
}
