// Package sqlite is the reference, swappable implementation of the
// Persistence Interface (spec.md §6, SPEC_FULL.md §4.10) backed by
// modernc.org/sqlite (pure-Go, no cgo) with schema migrations applied
// through golang-migrate/migrate/v4. Grounded on the pack's
// banshee-data-velocity.report repo, which pairs exactly these two
// libraries (db/db.go for the sql.Open/driver usage, internal/db/migrate.go
// for the iofs+sqlite migrate.Migrate wiring).
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/khansohel/traffometer-server/internal/store"
	"github.com/khansohel/traffometer-server/pkg/telemetry/event"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a database/sql-backed store.Persistence implementation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrateUp() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

var _ store.Persistence = (*Store)(nil)

func (s *Store) LookupAccount(ctx context.Context, accountID string) (store.Account, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id, description, is_active, password_hash
		FROM accounts WHERE account_id = ?`, accountID)
	var a store.Account
	var isActive int
	if err := row.Scan(&a.AccountID, &a.Description, &isActive, &a.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Account{}, false, nil
		}
		return store.Account{}, false, err
	}
	a.IsActive = isActive != 0
	return a, true, nil
}

func (s *Store) LookupDevice(ctx context.Context, accountID, deviceID string) (store.Device, bool, error) {
	row := s.db.QueryRowContext(ctx, deviceSelect+" WHERE account_id = ? AND device_id = ?", accountID, deviceID)
	return scanDevice(row)
}

func (s *Store) LookupDeviceByUniqueID(ctx context.Context, uniqueID uint64) (store.Account, store.Device, bool, error) {
	row := s.db.QueryRowContext(ctx, deviceSelect+" WHERE unique_id = ?", uniqueID)
	d, ok, err := scanDevice(row)
	if err != nil || !ok {
		return store.Account{}, store.Device{}, ok, err
	}
	a, ok, err := s.LookupAccount(ctx, d.AccountID)
	if err != nil || !ok {
		return store.Account{}, store.Device{}, false, err
	}
	return a, d, true, nil
}

func (s *Store) InsertEvent(ctx context.Context, accountID, deviceID string, ev event.GeoEvent) (store.InsertResult, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events
			(account_id, device_id, timestamp, status_code, lat, lon, speed_kph, heading_deg,
			 altitude_m, odometer, top_speed, geofence_0, geofence_1, sequence, data_source, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, deviceID, ev.Timestamp, ev.StatusCode, ev.Point.Lat, ev.Point.Lon,
		ev.SpeedKPH, ev.HeadingDeg, ev.AltitudeM, ev.Odometer, ev.TopSpeed,
		ev.GeofenceIDs[0], ev.GeofenceIDs[1], ev.Sequence, ev.DataSource, ev.Raw)
	if err != nil {
		return store.InsertEventError, err
	}
	return store.InsertOK, nil
}

func (s *Store) UpdateDeviceSessionStats(ctx context.Context, accountID, deviceID string,
	totalProfileMask uint64, lastTotalConnectTime time.Time,
	duplexProfileMask uint64, lastDuplexConnectTime time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE devices SET
			total_profile_mask = ?, last_total_connect_time = ?,
			duplex_profile_mask = ?, last_duplex_connect_time = ?
		WHERE account_id = ? AND device_id = ?`,
		totalProfileMask, lastTotalConnectTime.Unix(),
		duplexProfileMask, lastDuplexConnectTime.Unix(),
		accountID, deviceID)
	return err
}

const deviceSelect = `
	SELECT account_id, device_id, unique_id, description, is_active, supported_encodings,
	       unit_limit_interval_minutes, max_allowed_events,
	       total_max_conn, total_max_conn_per_min, last_total_connect_time, total_profile_mask,
	       duplex_max_conn, duplex_max_conn_per_min, last_duplex_connect_time, duplex_profile_mask
	FROM devices`

func scanDevice(row *sql.Row) (store.Device, bool, error) {
	var d store.Device
	var isActive int
	var lastTotal, lastDuplex int64
	err := row.Scan(&d.AccountID, &d.DeviceID, &d.UniqueID, &d.Description, &isActive, &d.SupportedEncodings,
		&d.UnitLimitIntervalMinutes, &d.MaxAllowedEvents,
		&d.TotalMaxConn, &d.TotalMaxConnPerMin, &lastTotal, &d.TotalProfileMask,
		&d.DuplexMaxConn, &d.DuplexMaxConnPerMin, &lastDuplex, &d.DuplexProfileMask)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Device{}, false, nil
		}
		return store.Device{}, false, err
	}
	d.IsActive = isActive != 0
	d.LastTotalConnectTime = time.Unix(lastTotal, 0)
	d.LastDuplexConnectTime = time.Unix(lastDuplex, 0)
	return d, true, nil
}
