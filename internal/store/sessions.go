package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is one connect/disconnect cycle with a device.
type Session struct {
	ID             int64
	Serial         string
	Model          string
	Manufacturer   string
	Release        string
	SDK            string
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
}

// RecordConnect stores a new open session and returns its ID.
func (s *DB) RecordConnect(serial, model, manufacturer, release, sdk string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO sessions (serial, model, manufacturer, android_release, sdk, connected_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		serial, model, manufacturer, release, sdk, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("record connect: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record connect: %w", err)
	}
	return id, nil
}

// RecordDisconnect closes the session with the given ID.
func (s *DB) RecordDisconnect(id int64) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET disconnected_at = ? WHERE id = ? AND disconnected_at IS NULL`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("record disconnect: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record disconnect: session %d not open", id)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first. An empty serial
// matches every device; limit <= 0 means no limit.
func (s *DB) Sessions(serial string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, serial, model, manufacturer, android_release, sdk, connected_at, disconnected_at
		 FROM sessions
		 WHERE ? = '' OR serial = ?
		 ORDER BY connected_at DESC, id DESC
		 LIMIT ?`,
		serial, serial, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			ss   Session
			disc sql.NullTime
		)
		if err := rows.Scan(&ss.ID, &ss.Serial, &ss.Model, &ss.Manufacturer, &ss.Release, &ss.SDK, &ss.ConnectedAt, &disc); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if disc.Valid {
			t := disc.Time
			ss.DisconnectedAt = &t
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

// DeviceStats summarizes the history of one device.
type DeviceStats struct {
	Sessions int
	Open     int // sessions never closed cleanly
	LastSeen *time.Time
}

// GetDeviceStats returns history statistics for a device.
func (s *DB) GetDeviceStats(serial string) (DeviceStats, error) {
	var stats DeviceStats
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sessions WHERE serial = ?`, serial,
	).Scan(&stats.Sessions)
	if err != nil {
		return stats, err
	}
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM sessions WHERE serial = ? AND disconnected_at IS NULL`, serial,
	).Scan(&stats.Open)
	if err != nil {
		return stats, err
	}
	if stats.Sessions > 0 {
		var last time.Time
		err = s.db.QueryRow(
			`SELECT connected_at FROM sessions WHERE serial = ? ORDER BY connected_at DESC, id DESC LIMIT 1`, serial,
		).Scan(&last)
		if err != nil {
			return stats, err
		}
		stats.LastSeen = &last
	}
	return stats, nil
}
