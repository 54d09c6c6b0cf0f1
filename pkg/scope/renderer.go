package scope

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/loop"
)

var (
	gridColor     = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	rawColor      = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	averageColor  = color.RGBA{R: 255, G: 165, B: 0, A: 110}   // Dim orange
	smoothedColor = color.RGBA{R: 230, G: 230, B: 230, A: 255} // Light gray
	derivColor    = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	edgeColor     = color.RGBA{R: 0, G: 100, B: 200, A: 255}   // Dark blue
	centerColor   = color.RGBA{R: 80, G: 220, B: 80, A: 255}   // Green
	nominalColor  = color.RGBA{R: 90, G: 90, B: 90, A: 255}
)

// pane is a plot area with a linear value axis.
type pane struct {
	x, y, w, h float32
	lo, hi     float64
}

func (p pane) px(pixel float64) float32 {
	return p.x + float32(pixel/float64(acquire.FrameLength-1))*p.w
}

func (p pane) py(v float64) float32 {
	return p.y + p.h - float32((v-p.lo)/(p.hi-p.lo))*p.h
}

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	// Background fills entire widget
	r.grid.Resize(size)

	if r.lastSize.Width != size.Width || r.lastSize.Height != size.Height {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	snap := r.scope.snap
	hasData := r.scope.hasData
	average := r.scope.average
	dMin, dMax := r.scope.dMin, r.scope.dMax
	nominal := r.scope.cfg.Edge.NominalCenter
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.grid}

	marginLeft := float32(60.0)
	marginRight := float32(20.0)
	marginTop := float32(30.0)
	marginBottom := float32(30.0)
	gap := float32(20.0)

	plotWidth := size.Width - marginLeft - marginRight
	plotHeight := size.Height - marginTop - marginBottom - gap
	intensity := pane{x: marginLeft, y: marginTop, w: plotWidth, h: plotHeight * 0.6, lo: 0, hi: ADCFullScale}
	deriv := pane{x: marginLeft, y: marginTop + intensity.h + gap, w: plotWidth, h: plotHeight * 0.4, lo: dMin, hi: dMax}

	r.drawGrid(intensity, 4, "%.0f")
	r.drawGrid(deriv, 2, "%.0f")
	r.drawPixelAxis(deriv)
	r.drawMarker(intensity, deriv, float64(nominal), nominalColor, 1)

	if !hasData {
		return
	}

	if average != nil {
		r.drawTrace(intensity, len(average), func(i int) float64 { return float64(average[i]) }, averageColor, 1)
	}
	r.drawTrace(intensity, len(snap.Frame), func(i int) float64 { return float64(snap.Frame[i]) }, rawColor, 1.5)

	sig := snap.Result.Signals
	r.drawTrace(intensity, len(sig.Smoothed), func(i int) float64 { return float64(sig.Smoothed[i]) }, smoothedColor, 1)
	r.drawTrace(deriv, len(sig.Derivative), func(i int) float64 { return float64(sig.Derivative[i]) }, derivColor, 2.5)

	est := snap.Result.Estimate
	r.drawMarker(intensity, deriv, float64(est.Left), edgeColor, 1.5)
	r.drawMarker(intensity, deriv, float64(est.Right), edgeColor, 1.5)
	r.drawMarker(intensity, deriv, float64(est.Center), centerColor, 2)

	r.drawStatus(intensity, snap)
}

// drawGrid draws horizontal grid lines with value labels.
func (r *scopeRenderer) drawGrid(p pane, divisions int, format string) {
	for i := range divisions + 1 {
		v := p.hi - float64(i)*(p.hi-p.lo)/float64(divisions)
		y := p.py(v)
		r.line(fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y), gridColor, 1)

		text := canvas.NewText(fmt.Sprintf(format, v), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(p.x-5, y-6))
		r.objects = append(r.objects, text)
	}
}

// drawPixelAxis draws vertical grid lines every 16 pixels below p.
func (r *scopeRenderer) drawPixelAxis(p pane) {
	for pixel := 0; pixel < acquire.FrameLength; pixel += 16 {
		x := p.px(float64(pixel))
		text := canvas.NewText(fmt.Sprint(pixel), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-10, p.y+p.h+5))
		r.objects = append(r.objects, text)
	}
}

// drawTrace draws n values as connected line segments.
func (r *scopeRenderer) drawTrace(p pane, n int, value func(int) float64, c color.Color, width float32) {
	if n < 2 {
		return
	}
	prev := fyne.NewPos(p.px(0), p.py(value(0)))
	for i := 1; i < n; i++ {
		cur := fyne.NewPos(p.px(float64(i)), p.py(value(i)))
		r.line(prev, cur, c, width)
		prev = cur
	}
}

// drawMarker draws a vertical line at pixel across both panes.
func (r *scopeRenderer) drawMarker(top, bottom pane, pixel float64, c color.Color, width float32) {
	x := top.px(pixel)
	r.line(fyne.NewPos(x, top.y), fyne.NewPos(x, bottom.y+bottom.h), c, width)
}

// drawStatus draws the command and loop statistics above the plot.
func (r *scopeRenderer) drawStatus(p pane, snap loop.Snapshot) {
	cmd, est, st := snap.Result.Command, snap.Result.Estimate, snap.Stats
	status := fmt.Sprintf("#%d  L %d  R %d  C %d   servo %.2f%%  motors %.1f%% / %.1f%%   |err| %.1f px   cycle %s",
		snap.Seq, est.Left, est.Right, est.Center, cmd.Servo, cmd.Left, cmd.Right, st.MeanAbsError, st.MeanCycle)
	text := canvas.NewText(status, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	text.TextSize = 11
	text.Alignment = fyne.TextAlignLeading
	text.Move(fyne.NewPos(p.x, p.y-22))
	r.objects = append(r.objects, text)
}

func (r *scopeRenderer) line(a, b fyne.Position, c color.Color, width float32) {
	l := canvas.NewLine(c)
	l.Position1 = a
	l.Position2 = b
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}
