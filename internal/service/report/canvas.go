// Package report renders the detection history as a paginated PDF document.
//
// Layout code works in points with the origin at the bottom-left corner of
// the page, so a decreasing y moves down the page.
package report

import (
	"github.com/lucasb-eyer/go-colorful"
)

var (
	black     = colorful.Color{R: 0, G: 0, B: 0}
	green     = colorful.Color{R: 0, G: 0.6, B: 0}
	red       = colorful.Color{R: 0.9, G: 0, B: 0}
	alertRed  = colorful.Color{R: 1, G: 0, B: 0}
	okGreen   = colorful.Color{R: 0, G: 0.5, B: 0}
	frameGray = gray(0.7)
	boxGray   = gray(0.8)
	textGray  = gray(0.4)
	mutedGray = gray(0.75)
)

func gray(v float64) colorful.Color {
	return colorful.Color{R: v, G: v, B: v}
}

// Image is an image registered with a canvas, sized in source pixels.
type Image struct {
	Name   string
	Width  float64
	Height float64
}

// Canvas is the drawing surface the renderer writes to. Text is drawn in the
// current fill color, like a PDF text object.
type Canvas interface {
	PageSize() (width, height float64)
	NewPage()

	SetFont(size float64)
	SetFillColor(c colorful.Color)
	FillColor() colorful.Color
	SetStrokeColor(c colorful.Color)
	StrokeColor() colorful.Color
	SetLineWidth(w float64)
	LineWidth() float64

	DrawString(x, y float64, text string)
	Rect(x, y, w, h float64, fill, stroke bool)

	// EmbedImage decodes the file at path and registers it for drawing.
	EmbedImage(path string) (Image, error)
	DrawImage(img Image, x, y, w, h float64)
}

// withFill runs draw with fill color c and restores the previous color afterwards.
func withFill(cv Canvas, c colorful.Color, draw func()) {
	prev := cv.FillColor()
	cv.SetFillColor(c)
	defer cv.SetFillColor(prev)
	draw()
}

// withStroke runs draw with stroke color c and line width w, restoring both afterwards.
func withStroke(cv Canvas, c colorful.Color, w float64, draw func()) {
	prevColor, prevWidth := cv.StrokeColor(), cv.LineWidth()
	cv.SetStrokeColor(c)
	cv.SetLineWidth(w)
	defer func() {
		cv.SetStrokeColor(prevColor)
		cv.SetLineWidth(prevWidth)
	}()
	draw()
}
