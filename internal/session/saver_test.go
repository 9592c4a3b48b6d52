package session

import (
	"testing"
	"time"
)

func TestDebouncedSaver_ImmediateFirstSave(t *testing.T) {
	saves := 0
	s := NewDebouncedSaver(50*time.Millisecond, func() error { saves++; return nil })

	if err := s.Request(); err != nil {
		t.Fatal(err)
	}
	if saves != 1 {
		t.Errorf("first request should save immediately, saves=%d", saves)
	}
}

func TestDebouncedSaver_CoalescesWithinInterval(t *testing.T) {
	saves := 0
	s := NewDebouncedSaver(time.Hour, func() error { saves++; return nil })

	s.Request()
	s.Request()
	s.Request()
	if saves != 1 {
		t.Errorf("requests within the interval must coalesce, saves=%d", saves)
	}
	if !s.Pending() {
		t.Error("coalesced request must be marked pending")
	}

	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if saves != 2 {
		t.Errorf("flush should run the pending save, saves=%d", saves)
	}
	if s.Pending() {
		t.Error("flush must clear pending")
	}
}

func TestDebouncedSaver_SavesAfterInterval(t *testing.T) {
	saves := 0
	s := NewDebouncedSaver(10*time.Millisecond, func() error { saves++; return nil })

	s.Request()
	time.Sleep(20 * time.Millisecond)
	s.Request()
	if saves != 2 {
		t.Errorf("request after the interval should save, saves=%d", saves)
	}
}

func TestDebouncedSaver_FlushWithoutPendingIsNoOp(t *testing.T) {
	saves := 0
	s := NewDebouncedSaver(time.Hour, func() error { saves++; return nil })
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if saves != 0 {
		t.Errorf("flush with nothing pending must not save, saves=%d", saves)
	}
}
