// Package tray is the deskd system tray app: live height and mode in
// the tray plus sit/stand/stop actions, driven through the daemon API.
package tray

import (
	"fmt"
	"time"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"github.com/DerRheingold/deskd/pkg/client"
	"github.com/DerRheingold/deskd/pkg/desk"
)

var apiClient *client.Client

// Run starts the tray app and blocks until it quits.
func Run(unixSocketPath string) {
	apiClient = client.NewClient(unixSocketPath)
	systray.Run(onReady, onExit)
}

func onReady() {
	systray.SetTitle("🪑 Loading...")
	systray.SetTooltip("deskd - Desk Controller")

	mStatus := systray.AddMenuItem("Status: Connecting...", "Current desk status")
	mStatus.Disable()

	mPresets := systray.AddMenuItem("Presets: -", "Saved sit/stand heights")
	mPresets.Disable()

	systray.AddSeparator()

	mSit := systray.AddMenuItem("Sit", "Move the desk to the sit preset")
	mStand := systray.AddMenuItem("Stand", "Move the desk to the stand preset")
	mStop := systray.AddMenuItem("Stop", "Stop the desk")

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the tray app. The daemon keeps running.")

	go func() {
		actionChan := make(chan string)
		go func() {
			for {
				select {
				case <-mSit.ClickedCh:
					actionChan <- "sit"
				case <-mStand.ClickedCh:
					actionChan <- "stand"
				case <-mStop.ClickedCh:
					actionChan <- "stop"
				case <-mQuit.ClickedCh:
					systray.Quit()
					return
				}
			}
		}()

		for {
			select {
			case action := <-actionChan:
				runAction(action)

			case <-time.After(2 * time.Second):
				updateStatus(mStatus, mPresets)
			}
		}
	}()

	updateStatus(mStatus, mPresets)
}

func onExit() {
	logrus.Info("deskd tray exiting")
}

func runAction(action string) {
	var err error
	switch action {
	case "sit":
		systray.SetTitle("🪑 Moving to sit...")
		_, err = apiClient.Seek(desk.SlotSit)
	case "stand":
		systray.SetTitle("🪑 Moving to stand...")
		_, err = apiClient.Seek(desk.SlotStand)
	case "stop":
		_, err = apiClient.Stop()
	}
	if err != nil {
		logrus.Errorf("failed to %s: %v", action, err)
	}
}

func updateStatus(mStatus, mPresets *systray.MenuItem) {
	st, err := apiClient.GetStatus()
	if err != nil {
		systray.SetTitle("🚫 Offline")
		mStatus.SetTitle("Status: Disconnected")
		mPresets.SetTitle("Presets: -")
		logrus.Debugf("cannot connect to daemon: %v", err)
		return
	}

	statusIcon := "🪑"
	state := st.Mode.String()
	switch st.Moving {
	case "raise":
		statusIcon = "⬆"
		state = fmt.Sprintf("%s, raising", st.Mode)
	case "lower":
		statusIcon = "⬇"
		state = fmt.Sprintf("%s, lowering", st.Mode)
	}

	if st.Height.Fault() {
		systray.SetTitle("⚠️ Sensor fault")
	} else {
		systray.SetTitle(fmt.Sprintf("%s %s", statusIcon, st.Height))
	}
	if !st.Linked {
		systray.SetTitle("⚠️ Board link down")
	}
	mStatus.SetTitle(fmt.Sprintf("Status: %s", state))

	sit := "not saved"
	if h := desk.Height(st.Presets.SitHeightCm); h.Set() {
		sit = h.String()
	}
	stand := "not saved"
	if h := desk.Height(st.Presets.StandHeightCm); h.Set() {
		stand = h.String()
	}
	mPresets.SetTitle(fmt.Sprintf("Presets: sit %s / stand %s", sit, stand))
}
