//go:build tinygo

package main

import (
	"machine"

	"github.com/DerRheingold/deskd/pkg/store"
)

// flashSettings adapts the on-chip flash to the settings block store.
// Offsets are relative to the data area past the program image. Flash
// only clears bits on write, so every write erases the containing
// sector first; the settings block sits at the start of the first one.
type flashSettings struct{}

var _ store.BlockDevice = flashSettings{}

func (flashSettings) ReadAt(p []byte, off int64) (int, error) {
	return machine.Flash.ReadAt(p, off)
}

func (flashSettings) WriteAt(p []byte, off int64) (int, error) {
	if err := machine.Flash.EraseBlocks(off/machine.Flash.EraseBlockSize(), 1); err != nil {
		return 0, err
	}
	if _, err := machine.Flash.WriteAt(p, off); err != nil {
		return 0, err
	}
	return len(p), nil
}
