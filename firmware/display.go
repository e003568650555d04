//go:build tinygo

package main

import (
	"time"

	"tinygo.org/x/drivers/tm1637"

	"github.com/DerRheingold/deskd/pkg/desk"
)

// segDisplay renders the controller's display calls on the TM1637
// 4-digit module: heights as plain numbers, errors as En, a fresh
// save as S plus the height. It also remembers whether an error code
// is on the glass right now, because telemetry reports the code for
// exactly that window.
type segDisplay struct {
	dev tm1637.Device

	errCode desk.ErrCode
	errSet  bool
}

var _ desk.Display = &segDisplay{}

func newSegDisplay() *segDisplay {
	d := &segDisplay{dev: tm1637.New(pinDisplayCLK, pinDisplayDIO, displayBrightness)}
	d.dev.Configure()
	d.dev.ClearDisplay()
	return d
}

// BootPattern lights every segment for a moment so a dead digit is
// obvious before the height takes over.
func (d *segDisplay) BootPattern() {
	d.dev.DisplayText([]byte("8888"))
	time.Sleep(800 * time.Millisecond)
	d.dev.ClearDisplay()
}

func (d *segDisplay) ShowHeight(h desk.Height) {
	d.errSet = false
	d.dev.ClearDisplay()
	d.dev.DisplayText(appendHeight(nil, h))
}

func (d *segDisplay) ShowError(code desk.ErrCode) {
	d.errCode = code
	d.errSet = true
	d.dev.ClearDisplay()
	d.dev.DisplayText([]byte{'E', '0' + byte(code)})
}

func (d *segDisplay) ShowSaved(slot desk.Slot, h desk.Height) {
	d.errSet = false
	d.dev.ClearDisplay()
	d.dev.DisplayText(appendHeight([]byte{'S'}, h))
}

func (d *segDisplay) Clear() {
	d.errSet = false
	d.dev.ClearDisplay()
}

// CurrentError reports the error code on the glass, if any.
func (d *segDisplay) CurrentError() (desk.ErrCode, bool) {
	return d.errCode, d.errSet
}

// appendHeight appends the decimal digits of h. Heights fit the
// display: three digits plus an optional leading letter.
func appendHeight(buf []byte, h desk.Height) []byte {
	n := int(h)
	if n <= 0 {
		return append(buf, '0')
	}
	var tmp [5]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
	}
	return append(buf, tmp[i:]...)
}
