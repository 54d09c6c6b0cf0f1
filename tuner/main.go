package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/golinecar/pkg/car"
	"github.com/itohio/golinecar/pkg/config"
	"github.com/itohio/golinecar/pkg/diag"
	"github.com/itohio/golinecar/pkg/loop"
	"github.com/itohio/golinecar/pkg/scope"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		portFlag          = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag        = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag          = flag.Bool("mock", false, "Use simulated vehicle instead of serial port")
		headlessFlag      = flag.Bool("headless", false, "Run the control loop without the GUI")
		cyclesFlag        = flag.Int("cycles", 0, "Stop after this many cycles in headless mode (0 = until interrupted)")
		averageFramesFlag = flag.Int("average-frames", -1, "Number of frames to average for display (0 = disabled, overrides config)")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Diagnostics.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.Diagnostics.Level).Msg("Unknown log level, using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	// Override averaged frames if provided via command line
	if *averageFramesFlag >= 0 {
		cfg.Diagnostics.AverageFrames = *averageFramesFlag
	}

	if *headlessFlag {
		if err := runHeadless(cfg, *mockFlag, *cyclesFlag); err != nil {
			log.Fatal().Err(err).Msg("Headless run failed")
		}
		return
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.golinecar")

	// Create main window
	window := application.NewWindow("Line Car Tuner")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		window:     window,
		useMock:    *mockFlag,
	}

	toolbar := createToolbar(state)

	// Create scope widget for frame display
	state.scopeWidget = scope.New(cfg)

	content := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		state.scopeWidget,
	)

	window.SetContent(content)
	window.SetOnClosed(func() {
		closeControlChain(state.chain)
	})
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	device      car.Device
	scopeWidget *scope.ScopeWidget
	window      fyne.Window
	connectBtn  *widget.Button
	driveBtn    *widget.Button
	useMock     bool
	chain       *controlChain // Current control chain (nil if not connected)

	// Throttling for scope updates
	throttle throttle
}

// createToolbar creates the application toolbar with Connect, Settings and Drive buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	driveBtn := widget.NewButtonWithIcon("Drive", theme.MediaPlayIcon(), func() {
		handleDriveToggle(state)
	})
	driveBtn.Disable()
	state.driveBtn = driveBtn

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn), // left
		container.NewHBox(driveBtn),                // right
		nil,                                        // center (spacer)
	)
}

// newDevice creates the configured vehicle link.
func newDevice(cfg *config.Config, useMock bool) car.Device {
	if useMock {
		return car.NewMock(cfg)
	}
	return car.New(cfg.Serial.Port, cfg.Serial.BaudRate, car.DefaultBufferSize)
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		disconnect(state)
		return
	}

	device := newDevice(state.cfg, state.useMock)
	if err := device.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to start simulated vehicle: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}

	// Throttle updates to ~60 FPS to keep the UI smooth
	const updateInterval = 16 * time.Millisecond
	onUpdate := func(snap loop.Snapshot) {
		if !state.throttle.allow(time.Now(), updateInterval) {
			return
		}
		fyne.Do(func() {
			state.scopeWidget.UpdateData(snap)
		})
	}
	onAverage := func(f car.RawFrame) {
		fyne.Do(func() {
			state.scopeWidget.UpdateAverage(f.Samples)
		})
	}

	chain, err := startChain(state.cfg, device, diag.NewLog(log.Logger, state.cfg.Diagnostics.Every), onUpdate, onAverage)
	if err != nil {
		device.Close()
		dialog.ShowError(fmt.Errorf("failed to start control loop: %w", err), state.window)
		return
	}

	state.device = device
	state.chain = chain
	state.driveBtn.Enable()
	updateDriveButton(state)

	if state.useMock {
		log.Info().Msg("Connected to simulated vehicle")
	} else {
		log.Info().Str("port", state.cfg.Serial.Port).Msg("Connected to vehicle")
	}
}

// disconnect gracefully closes the control chain and resets the UI.
func disconnect(state *appState) {
	closeControlChain(state.chain)
	state.chain = nil
	state.device = nil

	state.driveBtn.Disable()
	updateDriveButton(state)
	state.scopeWidget.Clear()

	log.Info().Msg("Disconnected")
}

// runHeadless runs the control loop without a window, reporting cycles to
// stdout and the log until interrupted or cycles have run.
func runHeadless(cfg *config.Config, useMock bool, cycles int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	device := newDevice(cfg, useMock)
	if err := device.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	sink := diag.Multi{
		diag.NewText(os.Stdout, cfg.Diagnostics.Every, cfg.Diagnostics.FrameEvery),
		diag.NewLog(log.Logger, cfg.Diagnostics.Every),
	}

	var once sync.Once
	finished := make(chan struct{})
	onUpdate := func(snap loop.Snapshot) {
		if cycles > 0 && snap.Stats.Cycles >= uint64(cycles) {
			once.Do(func() { close(finished) })
		}
	}

	chain, err := startChain(cfg, device, sink, onUpdate, nil)
	if err != nil {
		device.Close()
		return err
	}
	chain.actuator.setDriving(true)

	select {
	case <-ctx.Done():
	case <-finished:
	case <-chain.loopDone:
	}
	closeControlChain(chain)

	st := chain.loop.Stats()
	log.Info().
		Uint64("cycles", st.Cycles).
		Uint64("torn", st.Torn).
		Uint64("actuate_errors", st.ActuateErrors).
		Float64("mean_abs_error", st.MeanAbsError).
		Dur("mean_cycle", st.MeanCycle).
		Msg("Control loop stopped")
	return nil
}
