// Package scope provides a Fyne widget that plots one line sensor frame
// together with its conditioned signals and the current edge estimate.
package scope

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/config"
	"github.com/itohio/golinecar/pkg/loop"
)

// ADCFullScale is the top of the intensity axis.
const ADCFullScale = 4095

// ScopeWidget is a custom Fyne widget that displays the latest control cycle.
type ScopeWidget struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu      sync.RWMutex
	snap    loop.Snapshot
	hasData bool
	average []uint16 // nil when frame averaging is off

	// Auto-scaling of the derivative pane
	dMin, dMax float64
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		cfg:  cfg,
		dMin: -1,
		dMax: 1,
	}
	s.ExtendBaseWidget(s)
	// Trigger initial refresh to display empty scope
	s.Refresh()
	return s
}

// UpdateData updates the widget with the latest cycle.
// This should be called from the loop callback using fyne.Do().
func (s *ScopeWidget) UpdateData(snap loop.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.hasData = true
	s.dMin, s.dMax = derivativeRange(snap.Result.Signals.Derivative)
	s.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	s.Refresh()
}

// UpdateAverage sets the frame-averaged trace.
func (s *ScopeWidget) UpdateAverage(f acquire.Frame) {
	s.mu.Lock()
	if s.average == nil {
		s.average = make([]uint16, acquire.FrameLength)
	}
	copy(s.average, f[:])
	s.mu.Unlock()

	s.Refresh()
}

// Clear removes all data, e.g. after disconnecting.
func (s *ScopeWidget) Clear() {
	s.mu.Lock()
	s.snap = loop.Snapshot{}
	s.hasData = false
	s.average = nil
	s.dMin, s.dMax = -1, 1
	s.mu.Unlock()

	s.Refresh()
}

// derivativeRange returns a symmetric axis range covering deriv with a 10%
// margin so the zero line stays centered.
func derivativeRange(deriv []int16) (lo, hi float64) {
	peak := 0.0
	for _, d := range deriv {
		v := float64(d)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		peak = 1
	}
	peak *= 1.1
	return -peak, peak
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:    s,
		grid:     grid,
		objects:  []fyne.CanvasObject{grid},
		lastSize: fyne.Size{Width: 0, Height: 0},
	}
}
