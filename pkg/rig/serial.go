package rig

import (
	"bufio"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/DerRheingold/deskd/pkg/desk"
)

// Serial link defaults.
const (
	DefaultBaudRate   = 115200
	DefaultStaleAfter = 2 * time.Second
)

// errNone is the telemetry value for "no error recorded".
const errNone = 255

// Telemetry flag bits.
const (
	telemetryRaiseRecorded = 1 << 0
	telemetryLowerRecorded = 1 << 1
	telemetryMoving        = 1 << 2
	telemetryMovingRaise   = 1 << 3
)

// BoardState is one telemetry snapshot from the controller board.
type BoardState struct {
	Uptime  time.Duration
	Height  desk.Height
	Mode    desk.Mode
	ErrCode desk.ErrCode
	ErrSet  bool
	// Moving reports whether the drivetrain is commanded; MoveDir is
	// only meaningful while Moving is true.
	Moving   bool
	MoveDir  desk.Direction
	Settings desk.Settings
	At       time.Time
}

// SerialParams configures the link to the controller board.
type SerialParams struct {
	Device   string
	BaudRate int
	// StaleAfter bounds how old the last telemetry line may be before
	// State reports the link as down.
	StaleAfter time.Duration
}

func (p SerialParams) withDefaults() SerialParams {
	if p.BaudRate <= 0 {
		p.BaudRate = DefaultBaudRate
	}
	if p.StaleAfter <= 0 {
		p.StaleAfter = DefaultStaleAfter
	}
	return p
}

// Serial mirrors a controller board over a serial device. The board
// streams telemetry lines; the daemon injects virtual button levels
// and storage commands as single-letter lines. The board stays
// authoritative for all control decisions.
type Serial struct {
	params SerialParams
	port   serial.Port

	mu         sync.Mutex
	state      BoardState
	stateValid bool
	closed     bool
}

// OpenSerial opens the device and starts consuming telemetry.
func OpenSerial(params SerialParams) (*Serial, error) {
	p := params.withDefaults()
	port, err := serial.Open(p.Device, &serial.Mode{BaudRate: p.BaudRate})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open serial device %s", p.Device)
	}

	s := &Serial{params: p, port: port}
	go s.readLoop()
	return s, nil
}

func (s *Serial) readLoop() {
	sc := bufio.NewScanner(s.port)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		st, ok := parseTelemetry(line)
		if !ok {
			logrus.Debugf("ignoring malformed telemetry line: %q", line)
			continue
		}
		st.At = time.Now()
		s.mu.Lock()
		s.state = st
		s.stateValid = true
		s.mu.Unlock()
	}
	if err := sc.Err(); err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			logrus.WithError(err).Error("serial telemetry stream broke")
		}
	}
}

// State returns the last telemetry snapshot. ok is false until the
// first line arrives or once the stream has gone stale.
func (s *Serial) State() (BoardState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stateValid {
		return BoardState{}, false
	}
	if time.Since(s.state.At) > s.params.StaleAfter {
		return s.state, false
	}
	return s.state, true
}

// SetButton injects a virtual button level into the board's input
// scan. The board debounces and classifies it exactly like a wired
// button.
func (s *Serial) SetButton(b desk.Button, pressed bool) error {
	letter, ok := buttonLetter(b)
	if !ok {
		return pkgerrors.Errorf("no injection letter for button %d", b)
	}
	level := byte('0')
	if pressed {
		level = '1'
	}
	return s.writeLine([]byte{letter, level})
}

// Wipe asks the board to clear its settings flash.
func (s *Serial) Wipe() error {
	return s.writeLine([]byte{'W'})
}

func (s *Serial) writeLine(cmd []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pkgerrors.New("serial link is closed")
	}
	if _, err := s.port.Write(append(cmd, '\n')); err != nil {
		return pkgerrors.Wrapf(err, "failed to write %q to board", cmd)
	}
	return nil
}

func (s *Serial) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.port.Close()
}

func buttonLetter(b desk.Button) (byte, bool) {
	switch b {
	case desk.ButtonUp:
		return 'U', true
	case desk.ButtonDown:
		return 'D', true
	case desk.ButtonSit:
		return 'S', true
	case desk.ButtonStand:
		return 'T', true
	}
	return 0, false
}

// parseTelemetry parses one board line:
//
//	millis,height,mode,err,sit,stand,raiseMs,lowerMs,flags
//
// with height and the setpoints in centimeters, durations in
// milliseconds, and err 255 when none. Flags bits 0/1 mark the recorded
// programs, bit 2 reports drivetrain motion and bit 3 its direction
// (set means raising). Anything that does not parse is dropped so boot
// chatter on the line is harmless.
func parseTelemetry(line string) (BoardState, bool) {
	fields := strings.Split(line, ",")
	if len(fields) != 9 {
		return BoardState{}, false
	}
	nums := make([]int64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil || n < 0 {
			return BoardState{}, false
		}
		nums[i] = n
	}

	mode := desk.Mode(nums[2])
	if mode > desk.ModeRecord {
		return BoardState{}, false
	}

	st := BoardState{
		Uptime: time.Duration(nums[0]) * time.Millisecond,
		Height: desk.Height(nums[1]),
		Mode:   mode,
	}
	if nums[3] != errNone {
		st.ErrCode = desk.ErrCode(nums[3])
		st.ErrSet = true
	}
	st.Settings.Calibration.SitHeight = desk.Height(nums[4])
	st.Settings.Calibration.StandHeight = desk.Height(nums[5])
	flags := nums[8]
	if flags&telemetryRaiseRecorded != 0 {
		st.Settings.Program.RaiseDuration = time.Duration(nums[6]) * time.Millisecond
		st.Settings.Program.RaiseRecorded = true
	}
	if flags&telemetryLowerRecorded != 0 {
		st.Settings.Program.LowerDuration = time.Duration(nums[7]) * time.Millisecond
		st.Settings.Program.LowerRecorded = true
	}
	if flags&telemetryMoving != 0 {
		st.Moving = true
		st.MoveDir = desk.Lower
		if flags&telemetryMovingRaise != 0 {
			st.MoveDir = desk.Raise
		}
	}
	return st, true
}
