// Package rig provides the two ways the daemon can reach a desk: a
// software simulator that stands in for the frame, and a serial link
// to the real controller board.
package rig

import (
	"math"
	"sync"
	"time"

	"github.com/DerRheingold/deskd/pkg/desk"
)

// Simulator defaults. The rates differ on purpose: the frame lifts
// against gravity at full duty and descends faster at reduced duty.
const (
	DefaultStartHeight = 74.0
	DefaultMinHeight   = 62.0
	DefaultMaxHeight   = 128.0
	DefaultRaiseRate   = 2.8 // cm/s
	DefaultLowerRate   = 3.2 // cm/s
)

// SimParams tunes the simulated frame. Zero fields take defaults.
type SimParams struct {
	StartHeight float64
	MinHeight   float64
	MaxHeight   float64
	RaiseRate   float64
	LowerRate   float64
}

func (p SimParams) withDefaults() SimParams {
	if p.StartHeight <= 0 {
		p.StartHeight = DefaultStartHeight
	}
	if p.MinHeight <= 0 {
		p.MinHeight = DefaultMinHeight
	}
	if p.MaxHeight <= 0 {
		p.MaxHeight = DefaultMaxHeight
	}
	if p.RaiseRate <= 0 {
		p.RaiseRate = DefaultRaiseRate
	}
	if p.LowerRate <= 0 {
		p.LowerRate = DefaultLowerRate
	}
	return p
}

// Sim is a desk frame in software: a motor driver that latches the
// last command and a distance sensor that reads the integrated
// position. The control loop advances it once per tick; handlers may
// poke it concurrently for fault injection.
type Sim struct {
	mu     sync.Mutex
	params SimParams
	pos    float64
	cmd    desk.Command
	fault  bool
}

var (
	_ desk.MotionDriver   = &Sim{}
	_ desk.DistanceSensor = &Sim{}
)

func NewSim(params SimParams) *Sim {
	p := params.withDefaults()
	return &Sim{params: p, pos: p.StartHeight}
}

func (s *Sim) Raise() {
	s.mu.Lock()
	s.cmd = desk.CommandRaise
	s.mu.Unlock()
}

func (s *Sim) Lower() {
	s.mu.Lock()
	s.cmd = desk.CommandLower
	s.mu.Unlock()
}

func (s *Sim) Stop() {
	s.mu.Lock()
	s.cmd = desk.CommandStop
	s.mu.Unlock()
}

// Advance integrates the commanded motion over dt, clamping at the
// travel limits like the physical frame's end stops.
func (s *Sim) Advance(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.cmd {
	case desk.CommandRaise:
		s.pos += s.params.RaiseRate * dt.Seconds()
	case desk.CommandLower:
		s.pos -= s.params.LowerRate * dt.Seconds()
	}
	if s.pos > s.params.MaxHeight {
		s.pos = s.params.MaxHeight
	}
	if s.pos < s.params.MinHeight {
		s.pos = s.params.MinHeight
	}
}

// ReadHeight reports the position rounded to whole centimeters, or the
// fault sentinel while fault injection is on.
func (s *Sim) ReadHeight() desk.Height {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fault {
		return desk.HeightFault
	}
	h := desk.Height(math.Round(s.pos))
	if h.Fault() {
		// The travel limits keep the position well above zero; never
		// let a degenerate configuration read as a sensor fault.
		return 1
	}
	return h
}

// SetFault switches the simulated sensor between working and dead.
func (s *Sim) SetFault(on bool) {
	s.mu.Lock()
	s.fault = on
	s.mu.Unlock()
}

func (s *Sim) FaultInjected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

// Command reports the currently latched motor command.
func (s *Sim) Command() desk.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd
}

// Position reports the exact position in centimeters.
func (s *Sim) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// SetPosition teleports the frame, clamped to the travel limits.
func (s *Sim) SetPosition(cm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cm > s.params.MaxHeight {
		cm = s.params.MaxHeight
	}
	if cm < s.params.MinHeight {
		cm = s.params.MinHeight
	}
	s.pos = cm
}
