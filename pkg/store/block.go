package store

import (
	"encoding/binary"
	"math"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/DerRheingold/deskd/pkg/desk"
)

// BlockDevice is the minimal random-access surface of the settings
// flash page. The firmware adapts the chip's flash API to it; tests use
// a byte slice.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (n int, err error)
	WriteAt(p []byte, off int64) (n int, err error)
}

// Binary block layout, little-endian:
//
//	0      magic (0xD5)
//	1      layout version
//	2-3    sit height, cm
//	4-5    stand height, cm
//	6-9    raise duration, ms
//	10-13  lower duration, ms
//	14     recorded flags (bit 0 raise, bit 1 lower)
//	15     XOR checksum of bytes 0-14
//
// A block with a wrong magic, version, or checksum loads as the zero
// settings. Blank flash (all 0xFF) and a wiped block (all 0x00) both
// fail the magic check, so first boot and factory reset look the same.
const (
	blockMagic   = 0xD5
	blockVersion = 1

	// BlockLen is the size of the persisted block in bytes.
	BlockLen = 16

	flagRaiseRecorded = 1 << 0
	flagLowerRecorded = 1 << 1
)

var _ Store = &Block{}

// Block persists the settings in a fixed binary layout at a fixed
// offset of a block device.
type Block struct {
	dev BlockDevice
	off int64
}

func NewBlock(dev BlockDevice, off int64) *Block {
	return &Block{dev: dev, off: off}
}

func (b *Block) Load() (desk.Settings, error) {
	buf := make([]byte, BlockLen)
	if _, err := b.dev.ReadAt(buf, b.off); err != nil {
		return desk.Settings{}, pkgerrors.Wrap(err, "failed to read settings block")
	}
	if buf[0] != blockMagic || buf[1] != blockVersion {
		return desk.Settings{}, nil
	}
	if xorChecksum(buf[:BlockLen-1]) != buf[BlockLen-1] {
		return desk.Settings{}, nil
	}

	var s desk.Settings
	s.Calibration.SitHeight = desk.Height(binary.LittleEndian.Uint16(buf[2:4]))
	s.Calibration.StandHeight = desk.Height(binary.LittleEndian.Uint16(buf[4:6]))
	if buf[14]&flagRaiseRecorded != 0 {
		s.Program.RaiseDuration = time.Duration(binary.LittleEndian.Uint32(buf[6:10])) * time.Millisecond
		s.Program.RaiseRecorded = true
	}
	if buf[14]&flagLowerRecorded != 0 {
		s.Program.LowerDuration = time.Duration(binary.LittleEndian.Uint32(buf[10:14])) * time.Millisecond
		s.Program.LowerRecorded = true
	}
	return sanitize(s), nil
}

func (b *Block) Save(s desk.Settings) error {
	buf := make([]byte, BlockLen)
	buf[0] = blockMagic
	buf[1] = blockVersion
	binary.LittleEndian.PutUint16(buf[2:4], heightU16(s.Calibration.SitHeight))
	binary.LittleEndian.PutUint16(buf[4:6], heightU16(s.Calibration.StandHeight))
	var flags byte
	if s.Program.RaiseRecorded {
		binary.LittleEndian.PutUint32(buf[6:10], millisU32(s.Program.RaiseDuration))
		flags |= flagRaiseRecorded
	}
	if s.Program.LowerRecorded {
		binary.LittleEndian.PutUint32(buf[10:14], millisU32(s.Program.LowerDuration))
		flags |= flagLowerRecorded
	}
	buf[14] = flags
	buf[BlockLen-1] = xorChecksum(buf[:BlockLen-1])

	if _, err := b.dev.WriteAt(buf, b.off); err != nil {
		return pkgerrors.Wrap(err, "failed to write settings block")
	}
	return nil
}

func (b *Block) Wipe() error {
	if _, err := b.dev.WriteAt(make([]byte, BlockLen), b.off); err != nil {
		return pkgerrors.Wrap(err, "failed to wipe settings block")
	}
	return nil
}

func xorChecksum(p []byte) byte {
	var x byte
	for _, c := range p {
		x ^= c
	}
	return x
}

func heightU16(h desk.Height) uint16 {
	if h < 0 {
		return 0
	}
	if int(h) > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(h)
}

func millisU32(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}
