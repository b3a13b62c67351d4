// Package stats tracks per-session run counters for the overlay and
// an optional database sink.
package stats

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session accumulates counters for one bot run. Safe for concurrent
// use.
type Session struct {
	id        string
	startedAt time.Time

	mu               sync.Mutex
	ticks            int64
	detections       int64
	locksAcquired    int64
	locksLost        int64
	attacksStarted   int64
	attacksCompleted int64
	attackTotal      time.Duration
}

// NewSession starts a session with a fresh ID.
func NewSession() *Session {
	return &Session{id: uuid.NewString(), startedAt: time.Now()}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Tick counts one loop iteration.
func (s *Session) Tick() {
	s.mu.Lock()
	s.ticks++
	s.mu.Unlock()
}

// Detection counts one accepted detection.
func (s *Session) Detection() {
	s.mu.Lock()
	s.detections++
	s.mu.Unlock()
}

// LockAcquired counts a lock commit.
func (s *Session) LockAcquired() {
	s.mu.Lock()
	s.locksAcquired++
	s.mu.Unlock()
}

// LockLost counts a lock release.
func (s *Session) LockLost() {
	s.mu.Lock()
	s.locksLost++
	s.mu.Unlock()
}

// AttackStarted counts an attack cycle entering load.
func (s *Session) AttackStarted() {
	s.mu.Lock()
	s.attacksStarted++
	s.mu.Unlock()
}

// AttackCompleted counts a finished cycle and its duration.
func (s *Session) AttackCompleted(d time.Duration) {
	s.mu.Lock()
	s.attacksCompleted++
	s.attackTotal += d
	s.mu.Unlock()
}

// Snapshot is a wire-friendly copy of the counters.
type Snapshot struct {
	SessionID        string    `json:"session_id"`
	StartedAt        time.Time `json:"started_at"`
	UptimeMs         int64     `json:"uptime_ms"`
	Ticks            int64     `json:"ticks"`
	Detections       int64     `json:"detections"`
	LocksAcquired    int64     `json:"locks_acquired"`
	LocksLost        int64     `json:"locks_lost"`
	AttacksStarted   int64     `json:"attacks_started"`
	AttacksCompleted int64     `json:"attacks_completed"`
	AvgAttackMs      int64     `json:"avg_attack_ms"`
}

// Snapshot copies the counters as of now.
func (s *Session) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:        s.id,
		StartedAt:        s.startedAt,
		UptimeMs:         now.Sub(s.startedAt).Milliseconds(),
		Ticks:            s.ticks,
		Detections:       s.detections,
		LocksAcquired:    s.locksAcquired,
		LocksLost:        s.locksLost,
		AttacksStarted:   s.attacksStarted,
		AttacksCompleted: s.attacksCompleted,
	}
	if s.attacksCompleted > 0 {
		snap.AvgAttackMs = (s.attackTotal / time.Duration(s.attacksCompleted)).Milliseconds()
	}
	return snap
}
