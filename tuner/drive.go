package main

import (
	"fmt"

	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"
)

// handleDriveToggle switches between driving and holding the vehicle.
func handleDriveToggle(state *appState) {
	if state.chain == nil || state.device == nil || !state.device.IsConnected() {
		return
	}

	on := !state.chain.actuator.isDriving()
	state.chain.actuator.setDriving(on)
	log.Info().Bool("driving", on).Msg("Drive toggled")

	updateDriveButton(state)
}

// updateDriveButton updates the visual state of the drive button.
func updateDriveButton(state *appState) {
	driving := state.chain != nil && state.chain.actuator.isDriving()
	if driving {
		state.driveBtn.SetText("Hold")
		state.driveBtn.SetIcon(theme.MediaPauseIcon())
		state.driveBtn.Importance = widget.HighImportance
	} else {
		state.driveBtn.SetText("Drive")
		state.driveBtn.SetIcon(theme.MediaPlayIcon())
		state.driveBtn.Importance = widget.MediumImportance
	}
	state.driveBtn.Refresh()
}

// applyGains pushes new PID gains to the running loop and to the firmware's
// onboard controller.
func applyGains(state *appState) {
	if state.chain == nil {
		return
	}
	state.chain.cycle.Steering().SetGains(state.cfg.PID)

	if state.device != nil && state.device.IsConnected() {
		if err := state.device.SetGains(state.cfg.PID); err != nil {
			dialog.ShowError(fmt.Errorf("failed to send gains: %w", err), state.window)
		}
	}
}
