//go:generate tinygo flash -target=pico

//go:build tinygo

// Firmware image for the desk controller board. It runs the same
// control core as the daemon's simulated backend, with GPIO buttons in
// place of virtual levels, an H-bridge pair on the drivetrain, an
// ultrasonic height sensor and a 7-segment display. The USB serial
// port carries telemetry out and virtual button levels in, so a host
// running the daemon in serial mode sees the board as just another
// backend.
package main

import (
	"time"

	"github.com/DerRheingold/deskd/pkg/control"
	"github.com/DerRheingold/deskd/pkg/debounce"
	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/input"
	"github.com/DerRheingold/deskd/pkg/store"
)

var (
	motors  *motorPair
	sensor  *heightSensor
	display *segDisplay

	settingsStore *store.Block
	inputs        [desk.ButtonCount]*debounce.Input
	classifier    *input.Classifier
	ctrl          *control.Controller

	// Button levels injected over serial, OR'd with the wired buttons
	// during the input scan.
	virtual desk.Buttons

	// Set by a W command, consumed at the top of the next tick so the
	// wipe never races the controller.
	wipeRequested bool

	bootTime   time.Time
	lastHeight desk.Height
	tickCount  uint
)

func main() {
	motors = newMotorPair()
	sensor = newHeightSensor()
	display = newSegDisplay()

	display.BootPattern()

	settingsStore = store.NewBlock(flashSettings{}, 0)
	settings, err := settingsStore.Load()
	if err != nil {
		// Unreadable flash starts blank, same as first boot.
		settings = desk.Settings{}
	}

	configureButtons()
	deb := debounce.New(0)
	for i := range inputs {
		b := desk.Button(i)
		pin := buttonPins[i]
		inputs[i] = debounce.NewInput(deb, func() bool {
			return !pin.Get() || virtual.Get(b)
		})
	}
	classifier = input.New(input.Options{})
	ctrl = control.New(control.Params{}, settingsStore, motors, display, settings)

	bootTime = time.Now()
	lastTick := bootTime
	for {
		processSerial()
		now := time.Now()
		if now.Sub(lastTick) >= control.DefaultTick {
			step(now)
			lastTick = now
		}
		time.Sleep(time.Millisecond)
	}
}

func step(now time.Time) {
	if wipeRequested {
		wipeRequested = false
		if err := settingsStore.Wipe(); err == nil {
			ctrl.ReplaceSettings(desk.Settings{})
		}
	}

	var levels desk.Buttons
	for i := range inputs {
		levels = levels.Set(desk.Button(i), inputs[i].Read())
	}
	evs := classifier.Update(now, levels)

	lastHeight = sensor.ReadHeight()
	ctrl.Tick(now, control.Inputs{Buttons: levels, Height: lastHeight}, evs)

	tickCount++
	if tickCount%telemetryTicks == 0 {
		emitTelemetry(now)
	}
}
