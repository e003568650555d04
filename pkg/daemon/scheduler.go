package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/DerRheingold/deskd/pkg/config"
	"github.com/DerRheingold/deskd/pkg/desk"
)

const (
	preCheckMaxTimes = 6
	preCheckInterval = time.Second * 10
)

// TaskFunc runs one scheduled move.
type TaskFunc func(name string, slot desk.Slot) error

// ResultFunc reports the outcome of a scheduled run: "done", "skipped"
// or "failed". err is nil for "done".
type ResultFunc func(name, action, result string, err error)

// Scheduler fires preset moves on cron schedules. Each configured entry
// has its own next-run time; one goroutine waits for the earliest of
// them. A run is skipped, not queued, when the desk stays busy through
// the precheck retries.
type Scheduler struct {
	Task     TaskFunc
	PreCheck TaskFunc // condition check before a run, with the entry it gates
	OnResult ResultFunc

	parser cron.Parser

	preCheckMax   int
	preCheckEvery time.Duration

	mu      sync.Mutex
	entries []*scheduleEntry
	running bool

	controlCh chan controlMsg
	stopCh    chan struct{}
}

type scheduleEntry struct {
	cfg  config.Schedule
	slot desk.Slot
	sch  cron.Schedule
	next time.Time
}

// internal control kinds (not user visible events)
type controlKind int

const (
	ctrlRecalculate controlKind = iota // timer needs recalculation due to entry change
	ctrlSkip                           // a next run was skipped
)

type controlMsg struct {
	kind controlKind
	data any
}

func NewScheduler(task TaskFunc, preCheck TaskFunc, onResult ResultFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Scheduler{
		Task:          task,
		PreCheck:      preCheck,
		OnResult:      onResult,
		parser:        cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		preCheckMax:   preCheckMaxTimes,
		preCheckEvery: preCheckInterval,
		controlCh:     make(chan controlMsg, 4),
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.runScheduled()
}

// SetEntries replaces all schedule entries. Every entry is validated
// first; on any error the current entries stay untouched.
func (s *Scheduler) SetEntries(schedules []config.Schedule) error {
	parsed := make([]*scheduleEntry, 0, len(schedules))
	seen := map[string]bool{}
	now := time.Now()
	for _, cfg := range schedules {
		if cfg.Name == "" {
			return fmt.Errorf("schedule entry without a name")
		}
		if seen[cfg.Name] {
			return fmt.Errorf("duplicate schedule name %q", cfg.Name)
		}
		seen[cfg.Name] = true
		slot, err := desk.ParseSlot(cfg.Action)
		if err != nil {
			return fmt.Errorf("schedule %q: %v", cfg.Name, err)
		}
		sch, err := s.parser.Parse(cfg.Cron)
		if err != nil {
			return fmt.Errorf("schedule %q: bad cron expression %q: %v", cfg.Name, cfg.Cron, err)
		}
		parsed = append(parsed, &scheduleEntry{
			cfg:  cfg,
			slot: slot,
			sch:  sch,
			next: sch.Next(now),
		})
	}

	s.mu.Lock()
	s.entries = parsed
	running := s.running
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlRecalculate, len(parsed))
	}
	return nil
}

// SkipNext advances the named entry past its next run.
func (s *Scheduler) SkipNext(name string) (time.Time, error) {
	s.mu.Lock()
	var skippedTo time.Time
	found := false
	for _, e := range s.entries {
		if e.cfg.Name != name {
			continue
		}
		e.next = e.sch.Next(e.next)
		skippedTo = e.next
		found = true
		break
	}
	running := s.running
	s.mu.Unlock()

	if !found {
		return time.Time{}, fmt.Errorf("no schedule named %q", name)
	}
	if running {
		s.trySendControl(ctrlSkip, name)
	}
	return skippedTo, nil
}

// EntryStatus is one entry's schedule and next run, as served to
// clients.
type EntryStatus struct {
	Name    string    `json:"name"`
	Cron    string    `json:"cron"`
	Action  string    `json:"action"`
	NextRun time.Time `json:"nextRun"`
}

// Entries returns the status of every entry, ordered as configured.
func (s *Scheduler) Entries() []EntryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EntryStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, EntryStatus{
			Name:    e.cfg.Name,
			Cron:    e.cfg.Cron,
			Action:  e.cfg.Action,
			NextRun: e.next,
		})
	}
	return out
}

func (s *Scheduler) runScheduled() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("scheduler stopped")
	}()

	logrus.Debug("scheduler started")

	for {
		attempts := 0
		var precheckErr error

		entry, runAt := s.earliest()
		var timer *time.Timer
		if entry == nil {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(runAt)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		for {
			select {
			case <-timer.C:
				if entry == nil {
					break
				}

				logrus.WithFields(logrus.Fields{
					"name":   entry.cfg.Name,
					"action": entry.cfg.Action,
				}).Debugf("running scheduled move planned for %s", runAt.Format(time.DateTime))

				if s.PreCheck != nil {
					if err := s.PreCheck(entry.cfg.Name, entry.slot); err != nil {
						if precheckErr == nil || err.Error() != precheckErr.Error() {
							precheckErr = err
						}

						attempts++
						if attempts <= s.preCheckMax {
							logrus.Debugf("precheck failed (%d/%d): %v; retrying in %s", attempts, s.preCheckMax, err, s.preCheckEvery)
							timer.Reset(s.preCheckEvery)
							continue
						}

						timer.Stop()
						s.advance(entry)
						s.report(entry, "skipped", precheckErr)
						break
					}
				}

				timer.Stop()

				e := entry
				go func() {
					if err := s.Task(e.cfg.Name, e.slot); err != nil {
						s.report(e, "failed", err)
						return
					}
					s.report(e, "done", nil)
				}()
				s.advance(entry)
			case <-s.stopCh:
				timer.Stop()
				s.mu.Lock()
				s.running = false
				s.mu.Unlock()
				return
			case msg := <-s.controlCh: // internal control messages
				logrus.WithFields(logrus.Fields{
					"kind": msg.kind,
					"data": msg.data,
				}).Debug("received control msg")
				timer.Stop()
			}

			break
		}
	}
}

// earliest returns the entry with the soonest next run, nil when no
// entry is armed.
func (s *Scheduler) earliest() (*scheduleEntry, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *scheduleEntry
	for _, e := range s.entries {
		if e.next.IsZero() {
			continue
		}
		if best == nil || e.next.Before(best.next) {
			best = e
		}
	}
	if best == nil {
		return nil, time.Time{}
	}
	return best, best.next
}

func (s *Scheduler) advance(e *scheduleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.next = e.sch.Next(e.next)
}

func (s *Scheduler) report(e *scheduleEntry, result string, err error) {
	if err != nil {
		logrus.WithError(err).Warnf("scheduled move %q %s", e.cfg.Name, result)
	} else {
		logrus.Infof("scheduled move %q %s", e.cfg.Name, result)
	}
	if s.OnResult == nil {
		return
	}
	go s.OnResult(e.cfg.Name, e.cfg.Action, result, err)
}

func (s *Scheduler) trySendControl(kind controlKind, data any) {
	select {
	case s.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}
