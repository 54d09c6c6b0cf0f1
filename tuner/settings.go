package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/golinecar/pkg/car"
	"github.com/itohio/golinecar/pkg/config"
	"github.com/itohio/golinecar/pkg/edge"
	"github.com/itohio/golinecar/pkg/steer"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createPIDTab(state),
		createSteeringTab(state),
		createMotorTab(state),
		createCameraTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig applies edit to a copy of the configuration, validates and saves
// it, and only then swaps it in. Errors are reported in a dialog and leave the
// current configuration untouched.
func saveConfig(state *appState, edit func(*config.Config)) bool {
	next, err := state.cfg.Edit(edit)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
		return false
	}
	if err := next.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	state.cfg = next
	return true
}

// restartIfConnected rebuilds the control chain so structural changes
// (ranges, strategy, timing) take effect.
func restartIfConnected(state *appState) {
	if state.device == nil || !state.device.IsConnected() {
		return
	}
	disconnect(state)
	handleConnect(state)
}

func floatEntry(v float64, format string) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(fmt.Sprintf(format, v))
	return e
}

func parseFloat32(e *widget.Entry, dst *float32) {
	if v, err := strconv.ParseFloat(e.Text, 32); err == nil {
		*dst = float32(v)
	}
}

func parseFloat64(e *widget.Entry, dst *float64) {
	if v, err := strconv.ParseFloat(e.Text, 64); err == nil {
		*dst = v
	}
}

func parseInt(e *widget.Entry, dst *int) {
	if v, err := strconv.Atoi(e.Text); err == nil {
		*dst = v
	}
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := car.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected == "" {
				return
			}
			selectedPort := portMap[portSelect.Selected]
			if selectedPort == "" {
				selectedPort = portSelect.Selected // Fallback to selected text
			}

			prev := state.cfg.Serial
			if !saveConfig(state, func(c *config.Config) {
				c.Serial.Port = selectedPort
				parseInt(baudEntry, &c.Serial.BaudRate)
			}) {
				return
			}
			changed := prev != state.cfg.Serial
			if changed && !state.useMock {
				restartIfConnected(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createPIDTab creates the PID gains tab. Gains apply to the running loop
// without a restart.
func createPIDTab(state *appState) *container.TabItem {
	kpEntry := floatEntry(float64(state.cfg.PID.Kp), "%g")
	kiEntry := floatEntry(float64(state.cfg.PID.Ki), "%g")
	kdEntry := floatEntry(float64(state.cfg.PID.Kd), "%g")

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Kp", Widget: kpEntry},
			{Text: "Ki", Widget: kiEntry},
			{Text: "Kd", Widget: kdEntry},
		},
		OnSubmit: func() {
			if saveConfig(state, func(c *config.Config) {
				parseFloat32(kpEntry, &c.PID.Kp)
				parseFloat32(kiEntry, &c.PID.Ki)
				parseFloat32(kdEntry, &c.PID.Kd)
			}) {
				applyGains(state)
			}
		},
	}

	return container.NewTabItem("PID", form)
}

// createSteeringTab creates the servo and edge detection tab.
func createSteeringTab(state *appState) *container.TabItem {
	minEntry := floatEntry(float64(state.cfg.Servo.Min), "%.3f")
	maxEntry := floatEntry(float64(state.cfg.Servo.Max), "%.3f")
	centerEntry := floatEntry(float64(state.cfg.Servo.Center), "%.3f")

	nominalEntry := widget.NewEntry()
	nominalEntry.SetText(strconv.Itoa(state.cfg.Edge.NominalCenter))

	strategySelect := widget.NewSelect([]string{edge.Adaptive.String(), edge.Extrema.String()}, nil)
	strategySelect.SetSelected(state.cfg.Edge.Strategy.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Servo Min (%)", Widget: minEntry},
			{Text: "Servo Max (%)", Widget: maxEntry},
			{Text: "Servo Center (%)", Widget: centerEntry},
			{Text: "Nominal Center (px)", Widget: nominalEntry},
			{Text: "Edge Strategy", Widget: strategySelect},
		},
		OnSubmit: func() {
			if saveConfig(state, func(c *config.Config) {
				parseFloat32(minEntry, &c.Servo.Min)
				parseFloat32(maxEntry, &c.Servo.Max)
				parseFloat32(centerEntry, &c.Servo.Center)
				parseInt(nominalEntry, &c.Edge.NominalCenter)
				if s, err := edge.ParseStrategy(strategySelect.Selected); err == nil {
					c.Edge.Strategy = s
				}
			}) {
				restartIfConnected(state)
			}
		},
	}

	return container.NewTabItem("Steering", form)
}

// createMotorTab creates the drive motor tab.
func createMotorTab(state *appState) *container.TabItem {
	minEntry := floatEntry(float64(state.cfg.Motor.Min), "%.1f")
	maxEntry := floatEntry(float64(state.cfg.Motor.Max), "%.1f")

	allocSelect := widget.NewSelect([]string{
		steer.AllocSymmetric.String(),
		steer.AllocBlend.String(),
		steer.AllocUniform.String(),
	}, nil)
	allocSelect.SetSelected(state.cfg.Motor.Allocation.String())

	gov := state.cfg.Motor.Governor
	governorCheck := widget.NewCheck("", nil)
	governorCheck.SetChecked(gov.Enabled)
	marginEntry := widget.NewEntry()
	marginEntry.SetText(strconv.Itoa(gov.Margin))
	baseEntry := floatEntry(float64(gov.Base), "%.1f")
	decelEntry := floatEntry(float64(gov.Decel), "%.1f")
	accelEntry := floatEntry(float64(gov.Accel), "%.1f")

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Motor Min (%)", Widget: minEntry},
			{Text: "Motor Max (%)", Widget: maxEntry},
			{Text: "Allocation", Widget: allocSelect},
			{Text: "Speed Governor", Widget: governorCheck},
			{Text: "On-track Margin (px)", Widget: marginEntry},
			{Text: "Base Speed (%)", Widget: baseEntry},
			{Text: "Decel Step (%)", Widget: decelEntry},
			{Text: "Accel Step (%)", Widget: accelEntry},
		},
		OnSubmit: func() {
			if saveConfig(state, func(c *config.Config) {
				parseFloat32(minEntry, &c.Motor.Min)
				parseFloat32(maxEntry, &c.Motor.Max)
				if a, err := steer.ParseAllocation(allocSelect.Selected); err == nil {
					c.Motor.Allocation = a
				}
				g := &c.Motor.Governor
				g.Enabled = governorCheck.Checked
				parseInt(marginEntry, &g.Margin)
				parseFloat32(baseEntry, &g.Base)
				parseFloat32(decelEntry, &g.Decel)
				parseFloat32(accelEntry, &g.Accel)
			}) {
				restartIfConnected(state)
			}
		},
	}

	return container.NewTabItem("Motor", form)
}

// createCameraTab creates the line sensor timing and diagnostics tab.
func createCameraTab(state *appState) *container.TabItem {
	integrationEntry := widget.NewEntry()
	integrationEntry.SetText(state.cfg.Camera.IntegrationPeriod.String())

	pixelTickEntry := widget.NewEntry()
	pixelTickEntry.SetText(state.cfg.Camera.PixelTick.String())

	averageEntry := widget.NewEntry()
	averageEntry.SetText(strconv.Itoa(state.cfg.Diagnostics.AverageFrames))

	everyEntry := widget.NewEntry()
	everyEntry.SetText(strconv.Itoa(state.cfg.Diagnostics.Every))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Integration Period", Widget: integrationEntry},
			{Text: "Pixel Tick", Widget: pixelTickEntry},
			{Text: "Average Frames (0=disabled)", Widget: averageEntry},
			{Text: "Log Every N Cycles (0=off)", Widget: everyEntry},
		},
		OnSubmit: func() {
			if saveConfig(state, func(c *config.Config) {
				if d, err := time.ParseDuration(integrationEntry.Text); err == nil {
					c.Camera.IntegrationPeriod = d
				}
				if d, err := time.ParseDuration(pixelTickEntry.Text); err == nil {
					c.Camera.PixelTick = d
				}
				parseInt(averageEntry, &c.Diagnostics.AverageFrames)
				parseInt(everyEntry, &c.Diagnostics.Every)
			}) {
				restartIfConnected(state)
			}
		},
	}

	return container.NewTabItem("Camera", form)
}

// createMockTab creates the simulated vehicle tab.
func createMockTab(state *appState) *container.TabItem {
	m := state.cfg.Mock
	widthEntry := floatEntry(m.TrackWidth, "%.1f")
	backgroundEntry := widget.NewEntry()
	backgroundEntry.SetText(strconv.Itoa(int(m.Background)))
	trackEntry := widget.NewEntry()
	trackEntry.SetText(strconv.Itoa(int(m.Track)))
	noiseEntry := floatEntry(m.NoiseLevel, "%.1f")
	curvatureEntry := floatEntry(m.Curvature, "%.2f")
	periodEntry := floatEntry(m.Period, "%.1f")
	gainEntry := floatEntry(m.SteerGain, "%.2f")

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Track Width (px)", Widget: widthEntry},
			{Text: "Floor Level (ADC)", Widget: backgroundEntry},
			{Text: "Track Level (ADC)", Widget: trackEntry},
			{Text: "Noise Level (ADC)", Widget: noiseEntry},
			{Text: "Curvature (px/frame)", Widget: curvatureEntry},
			{Text: "Curve Period (s)", Widget: periodEntry},
			{Text: "Steer Gain (px/frame/%)", Widget: gainEntry},
		},
		OnSubmit: func() {
			edit := func(c *config.Config) {
				m := &c.Mock
				parseFloat64(widthEntry, &m.TrackWidth)
				if v, err := strconv.ParseUint(backgroundEntry.Text, 10, 12); err == nil {
					m.Background = uint16(v)
				}
				if v, err := strconv.ParseUint(trackEntry.Text, 10, 12); err == nil {
					m.Track = uint16(v)
				}
				parseFloat64(noiseEntry, &m.NoiseLevel)
				parseFloat64(curvatureEntry, &m.Curvature)
				parseFloat64(periodEntry, &m.Period)
				parseFloat64(gainEntry, &m.SteerGain)
			}
			if saveConfig(state, edit) && state.useMock {
				restartIfConnected(state)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}
