package stats

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Store persists session snapshots to MySQL. One row per session,
// upserted on each flush.
type Store struct {
	db *sql.DB
}

// OpenStore connects with a go-sql-driver DSN
// (user:pass@tcp(host:3306)/dbname?parseTime=true).
func OpenStore(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping stats db: %w", err)
	}

	create := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id VARCHAR(36) PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		uptime_ms BIGINT NOT NULL,
		ticks BIGINT NOT NULL,
		detections BIGINT NOT NULL,
		locks_acquired BIGINT NOT NULL,
		locks_lost BIGINT NOT NULL,
		attacks_started BIGINT NOT NULL,
		attacks_completed BIGINT NOT NULL,
		avg_attack_ms BIGINT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(create); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the snapshot's session row.
func (st *Store) Save(snap Snapshot) error {
	upsert := `
	INSERT INTO sessions
		(session_id, started_at, uptime_ms, ticks, detections,
		 locks_acquired, locks_lost, attacks_started, attacks_completed, avg_attack_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		uptime_ms = VALUES(uptime_ms),
		ticks = VALUES(ticks),
		detections = VALUES(detections),
		locks_acquired = VALUES(locks_acquired),
		locks_lost = VALUES(locks_lost),
		attacks_started = VALUES(attacks_started),
		attacks_completed = VALUES(attacks_completed),
		avg_attack_ms = VALUES(avg_attack_ms)`

	_, err := st.db.Exec(upsert,
		snap.SessionID, snap.StartedAt, snap.UptimeMs, snap.Ticks, snap.Detections,
		snap.LocksAcquired, snap.LocksLost, snap.AttacksStarted, snap.AttacksCompleted, snap.AvgAttackMs)
	if err != nil {
		return fmt.Errorf("save session %s: %w", snap.SessionID, err)
	}
	return nil
}

// Close releases the connection pool.
func (st *Store) Close() error { return st.db.Close() }
