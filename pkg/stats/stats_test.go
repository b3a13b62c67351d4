package stats

import (
	"sync"
	"testing"
	"time"
)

func TestSessionCounters(t *testing.T) {
	s := NewSession()
	if s.ID() == "" {
		t.Fatalf("session has no ID")
	}

	s.Tick()
	s.Tick()
	s.Detection()
	s.LockAcquired()
	s.LockLost()
	s.AttackStarted()
	s.AttackCompleted(6 * time.Second)
	s.AttackStarted()
	s.AttackCompleted(12 * time.Second)

	snap := s.Snapshot(time.Now())
	if snap.Ticks != 2 || snap.Detections != 1 {
		t.Errorf("ticks=%d detections=%d", snap.Ticks, snap.Detections)
	}
	if snap.LocksAcquired != 1 || snap.LocksLost != 1 {
		t.Errorf("locks=%d/%d", snap.LocksAcquired, snap.LocksLost)
	}
	if snap.AttacksStarted != 2 || snap.AttacksCompleted != 2 {
		t.Errorf("attacks=%d/%d", snap.AttacksStarted, snap.AttacksCompleted)
	}
	if snap.AvgAttackMs != 9000 {
		t.Errorf("avg attack = %dms, want 9000", snap.AvgAttackMs)
	}
}

func TestSnapshotUptime(t *testing.T) {
	s := NewSession()
	snap := s.Snapshot(s.startedAt.Add(90 * time.Second))
	if snap.UptimeMs != 90_000 {
		t.Errorf("uptime = %dms, want 90000", snap.UptimeMs)
	}
	if snap.AvgAttackMs != 0 {
		t.Errorf("avg attack without attacks = %d", snap.AvgAttackMs)
	}
}

func TestConcurrentCounting(t *testing.T) {
	s := NewSession()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				s.Tick()
				s.Detection()
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot(time.Now())
	if snap.Ticks != 4000 || snap.Detections != 4000 {
		t.Fatalf("ticks=%d detections=%d, want 4000 each", snap.Ticks, snap.Detections)
	}
}
