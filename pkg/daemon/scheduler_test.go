package daemon

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DerRheingold/deskd/pkg/config"
	"github.com/DerRheingold/deskd/pkg/desk"
)

func TestCronParse(t *testing.T) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse("@every 10m")
	if err != nil {
		t.Fatalf("failed to parse cron expression: %v", err)
	}

	now := time.Now()
	next1 := schedule.Next(now)
	t.Logf("next1: %v", next1)
	next2 := schedule.Next(next1)
	t.Logf("next2: %v", next2)

	if !next2.After(next1) {
		t.Fatalf("expected next2 to be after next1, got next1=%v next2=%v", next1, next2)
	}
}

func TestSchedulerSetEntriesValidates(t *testing.T) {
	s := NewScheduler(func(string, desk.Slot) error { return nil }, nil, nil)

	good := []config.Schedule{{Name: "morning", Cron: "0 9 * * *", Action: "stand"}}
	if err := s.SetEntries(good); err != nil {
		t.Fatalf("SetEntries returned error for valid entries: %v", err)
	}

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Name != "morning" || entries[0].Action != "stand" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].NextRun.IsZero() {
		t.Fatalf("next run should be set after SetEntries")
	}

	bad := []struct {
		name    string
		entries []config.Schedule
	}{
		{"bad cron", []config.Schedule{{Name: "x", Cron: "not a cron", Action: "sit"}}},
		{"bad action", []config.Schedule{{Name: "x", Cron: "@every 1m", Action: "dance"}}},
		{"missing name", []config.Schedule{{Cron: "@every 1m", Action: "sit"}}},
		{"duplicate name", []config.Schedule{
			{Name: "x", Cron: "@every 1m", Action: "sit"},
			{Name: "x", Cron: "@every 2m", Action: "stand"},
		}},
	}
	for _, tt := range bad {
		if err := s.SetEntries(tt.entries); err == nil {
			t.Errorf("%s: SetEntries accepted invalid entries", tt.name)
		}
	}

	// A failed replace must leave the previous entries in place.
	entries = s.Entries()
	if len(entries) != 1 || entries[0].Name != "morning" {
		t.Fatalf("failed SetEntries disturbed existing entries: %+v", entries)
	}
}

func TestSchedulerSkipNext(t *testing.T) {
	s := NewScheduler(func(string, desk.Slot) error { return nil }, nil, nil)
	if err := s.SetEntries([]config.Schedule{{Name: "lunch", Cron: "@every 10m", Action: "sit"}}); err != nil {
		t.Fatalf("SetEntries returned error: %v", err)
	}

	orig := s.Entries()[0].NextRun
	if orig.IsZero() {
		t.Fatalf("expected next run after SetEntries")
	}

	s.Start()
	defer s.Stop()

	skippedTo, err := s.SkipNext("lunch")
	if err != nil {
		t.Fatalf("SkipNext returned error: %v", err)
	}
	if !skippedTo.After(orig) {
		t.Fatalf("expected skip to move schedule forward, got %v <= %v", skippedTo, orig)
	}

	if _, err := s.SkipNext("nope"); err == nil {
		t.Fatalf("SkipNext accepted an unknown name")
	}
}

func TestSchedulerRunCycle(t *testing.T) {
	type run struct {
		name string
		slot desk.Slot
	}
	taskCh := make(chan run, 1)
	resultCh := make(chan string, 1)
	var preChecks int32

	task := func(name string, slot desk.Slot) error {
		taskCh <- run{name: name, slot: slot}
		return nil
	}
	preCheck := func(string, desk.Slot) error {
		atomic.AddInt32(&preChecks, 1)
		return nil
	}
	onResult := func(name, action, result string, err error) {
		resultCh <- result
	}

	s := NewScheduler(task, preCheck, onResult)
	if err := s.SetEntries([]config.Schedule{{Name: "morning", Cron: "@every 1h", Action: "stand"}}); err != nil {
		t.Fatalf("SetEntries returned error: %v", err)
	}

	s.mu.Lock()
	s.entries[0].next = time.Now().Add(50 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	select {
	case got := <-taskCh:
		if got.name != "morning" || got.slot != desk.SlotStand {
			t.Fatalf("task ran with %+v, want morning/stand", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not execute in time")
	}

	select {
	case result := <-resultCh:
		if result != "done" {
			t.Fatalf("result = %q, want done", result)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not receive result callback in time")
	}

	if atomic.LoadInt32(&preChecks) == 0 {
		t.Fatalf("precheck should have been executed")
	}
}

func TestSchedulerPreCheckSkips(t *testing.T) {
	taskCh := make(chan struct{}, 1)
	resultCh := make(chan string, 1)

	task := func(string, desk.Slot) error {
		taskCh <- struct{}{}
		return nil
	}
	preCheck := func(string, desk.Slot) error {
		return errors.New("desk is busy")
	}
	onResult := func(name, action, result string, err error) {
		resultCh <- result
	}

	s := NewScheduler(task, preCheck, onResult)
	s.preCheckMax = 2
	s.preCheckEvery = 10 * time.Millisecond
	if err := s.SetEntries([]config.Schedule{{Name: "morning", Cron: "@every 1h", Action: "sit"}}); err != nil {
		t.Fatalf("SetEntries returned error: %v", err)
	}

	s.mu.Lock()
	s.entries[0].next = time.Now().Add(20 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	select {
	case result := <-resultCh:
		if result != "skipped" {
			t.Fatalf("result = %q, want skipped", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a skipped result after precheck retries ran out")
	}

	select {
	case <-taskCh:
		t.Fatalf("task should not execute when precheck keeps failing")
	default:
	}
}

func TestSchedulerPicksEarliest(t *testing.T) {
	taskCh := make(chan string, 2)

	task := func(name string, slot desk.Slot) error {
		taskCh <- name
		return nil
	}

	s := NewScheduler(task, nil, nil)
	entries := []config.Schedule{
		{Name: "later", Cron: "@every 1h", Action: "sit"},
		{Name: "sooner", Cron: "@every 1h", Action: "stand"},
	}
	if err := s.SetEntries(entries); err != nil {
		t.Fatalf("SetEntries returned error: %v", err)
	}

	s.mu.Lock()
	s.entries[0].next = time.Now().Add(5 * time.Second)
	s.entries[1].next = time.Now().Add(50 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	select {
	case name := <-taskCh:
		if name != "sooner" {
			t.Fatalf("ran %q first, want sooner", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no task executed in time")
	}
}
