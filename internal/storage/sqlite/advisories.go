// Package sqlite persists advisories and schedule slots so a session
// can be reviewed after the fact.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yegors/mp-director/internal/advisory"
	"github.com/yegors/mp-director/internal/scheduler"
	"github.com/yegors/mp-director/pkg/logger"
)

// Open opens (or creates) the SQLite database at path
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set database pragmas: %w", err)
	}
	return db, nil
}

// AdvisoryStorage handles storage of advisories and schedule slots
type AdvisoryStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAdvisoryStorage creates a new SQLite advisory storage
func NewAdvisoryStorage(db *sql.DB, log *logger.Logger) (*AdvisoryStorage, error) {
	storage := &AdvisoryStorage{
		db:     db,
		logger: log.Named("sqlite-advisories"),
	}
	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *AdvisoryStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS advisories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			callsign TEXT NOT NULL,
			target_altitude_ft REAL,
			target_speed_kt REAL,
			vertical_rate_fpm REAL,
			route TEXT,
			reason TEXT,
			issued_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create advisories table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schedule_slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick_time TIMESTAMP NOT NULL,
			callsign TEXT NOT NULL,
			eta_min REAL NOT NULL,
			assigned_min REAL NOT NULL,
			adjustment_min REAL NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schedule_slots table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_advisories_callsign ON advisories(callsign)`,
		`CREATE INDEX IF NOT EXISTS idx_advisories_issued_at ON advisories(issued_at)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_callsign ON schedule_slots(callsign)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_tick_time ON schedule_slots(tick_time)`,
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// StoreAdvisories persists one tick's advisories
func (s *AdvisoryStorage) StoreAdvisories(ctx context.Context, advisories []*advisory.Advisory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, adv := range advisories {
		var route string
		if len(adv.Route) > 0 {
			names := make([]string, len(adv.Route))
			for i, wp := range adv.Route {
				names[i] = wp.Name
			}
			route = strings.Join(names, ",")
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO advisories
			(callsign, target_altitude_ft, target_speed_kt, vertical_rate_fpm, route, reason, issued_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			adv.Callsign,
			nullableFloat(adv.TargetAltitudeFt),
			nullableFloat(adv.TargetSpeedKt),
			nullableFloat(adv.VerticalRateFpm),
			route,
			adv.Reason,
			adv.IssuedAt.UTC().Format(time.RFC3339),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert advisory for %s: %w", adv.Callsign, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit advisories: %w", err)
	}
	return nil
}

// StoreSlots persists one tick's schedule
func (s *AdvisoryStorage) StoreSlots(ctx context.Context, tickTime time.Time, slots []scheduler.Slot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	tick := tickTime.UTC().Format(time.RFC3339)
	for _, slot := range slots {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_slots
			(tick_time, callsign, eta_min, assigned_min, adjustment_min, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			tick, slot.Callsign, slot.ETAMin, slot.AssignedMin, slot.AdjustmentMin, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert slot for %s: %w", slot.Callsign, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit slots: %w", err)
	}
	return nil
}

// GetRecentAdvisories returns recent advisories across all aircraft
func (s *AdvisoryStorage) GetRecentAdvisories(ctx context.Context, limit int) ([]*AdvisoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, callsign, target_altitude_ft, target_speed_kt, vertical_rate_fpm, route, reason, issued_at, created_at
		FROM advisories
		ORDER BY issued_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent advisories: %w", err)
	}
	defer rows.Close()

	return s.scanAdvisoryRows(rows)
}

// GetAdvisoriesByCallsign returns advisories for a specific aircraft
func (s *AdvisoryStorage) GetAdvisoriesByCallsign(ctx context.Context, callsign string, limit int) ([]*AdvisoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, callsign, target_altitude_ft, target_speed_kt, vertical_rate_fpm, route, reason, issued_at, created_at
		FROM advisories
		WHERE callsign = ?
		ORDER BY issued_at DESC
		LIMIT ?`,
		callsign, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query advisories by callsign: %w", err)
	}
	defer rows.Close()

	return s.scanAdvisoryRows(rows)
}

// GetSlotsByTimeRange returns schedule slots within a time range
func (s *AdvisoryStorage) GetSlotsByTimeRange(ctx context.Context, startTime, endTime time.Time) ([]*SlotRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tick_time, callsign, eta_min, assigned_min, adjustment_min, created_at
		FROM schedule_slots
		WHERE tick_time BETWEEN ? AND ?
		ORDER BY tick_time DESC, assigned_min ASC`,
		startTime.UTC().Format(time.RFC3339), endTime.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots by time range: %w", err)
	}
	defer rows.Close()

	var records []*SlotRecord
	for rows.Next() {
		var record SlotRecord
		var tickTime, createdAt string
		if err := rows.Scan(
			&record.ID, &tickTime, &record.Callsign,
			&record.ETAMin, &record.AssignedMin, &record.AdjustmentMin, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		if record.TickTime, err = time.Parse(time.RFC3339, tickTime); err != nil {
			return nil, fmt.Errorf("failed to parse tick_time: %w", err)
		}
		if record.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// scanAdvisoryRows scans database rows into AdvisoryRecord structs
func (s *AdvisoryStorage) scanAdvisoryRows(rows *sql.Rows) ([]*AdvisoryRecord, error) {
	var records []*AdvisoryRecord
	for rows.Next() {
		var record AdvisoryRecord
		var alt, speed, rate sql.NullFloat64
		var route, reason sql.NullString
		var issuedAt, createdAt string

		if err := rows.Scan(
			&record.ID, &record.Callsign, &alt, &speed, &rate,
			&route, &reason, &issuedAt, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan advisory: %w", err)
		}

		var err error
		if record.IssuedAt, err = time.Parse(time.RFC3339, issuedAt); err != nil {
			return nil, fmt.Errorf("failed to parse issued_at: %w", err)
		}
		if record.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		if alt.Valid {
			record.TargetAltitudeFt = &alt.Float64
		}
		if speed.Valid {
			record.TargetSpeedKt = &speed.Float64
		}
		if rate.Valid {
			record.VerticalRateFpm = &rate.Float64
		}
		if route.Valid {
			record.Route = route.String
		}
		if reason.Valid {
			record.Reason = reason.String
		}

		records = append(records, &record)
	}
	return records, rows.Err()
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
