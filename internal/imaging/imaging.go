// Package imaging loads, annotates and encodes raster images.
//
// Coordinates follow image.Image conventions: (0,0) is the top-left corner
// and detection boxes are x1, y1, x2, y2 in source pixels.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"muzzlewatch/internal/model"
)

// JPEGQuality is used for every JPEG this package writes.
const JPEGQuality = 90

// BoxThickness is the stroke width of annotation rectangles in pixels.
const BoxThickness = 2

// Load opens and decodes an image, applying EXIF orientation.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Decode decodes an in-memory image.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Save writes img to path, choosing PNG or JPEG from the extension.
func Save(path string, img image.Image) error {
	var encoder imgio.Encoder
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		encoder = imgio.PNGEncoder()
	default:
		encoder = imgio.JPEGEncoder(JPEGQuality)
	}
	if err := imgio.Save(path, img, encoder); err != nil {
		return fmt.Errorf("failed to save image %s: %w", filepath.Base(path), err)
	}
	return nil
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit scales img down to fit within width x height, keeping its aspect ratio.
func Fit(img image.Image, width, height int) *image.NRGBA {
	return imaging.Fit(img, width, height, imaging.Lanczos)
}

// FitBox returns the size of a w x h image scaled to fit a boxW x boxH box
// with its aspect ratio preserved. Images smaller than the box are scaled up.
func FitBox(w, h, boxW, boxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return boxW, boxH
	}
	scale := math.Min(boxW/w, boxH/h)
	return w * scale, h * scale
}

// ClassColor returns a stable, distinct color for a class id.
func ClassColor(classID int) color.RGBA {
	hue := math.Mod(float64(classID)*137.508+120, 360)
	if hue < 0 {
		hue += 360
	}
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Annotate returns a copy of img with a box and "label confidence" caption
// drawn for each detection.
func Annotate(img image.Image, detections []model.Detection) *image.NRGBA {
	out := imaging.Clone(img)
	bounds := out.Bounds()

	for _, d := range detections {
		c := ClassColor(d.ClassID)
		rect := image.Rect(
			int(math.Round(d.BBox[0])), int(math.Round(d.BBox[1])),
			int(math.Round(d.BBox[2])), int(math.Round(d.BBox[3])),
		).Canon().Intersect(bounds)
		if rect.Empty() {
			continue
		}
		drawRect(out, rect, c, BoxThickness)

		label := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		drawCaption(out, rect.Min.X, rect.Min.Y, label, c)
	}
	return out
}

// drawRect strokes rect with the given thickness, inset into the rectangle.
func drawRect(dst draw.Image, rect image.Rectangle, c color.Color, thickness int) {
	src := image.NewUniform(c)
	for i := 0; i < thickness; i++ {
		r := rect.Inset(i)
		if r.Empty() {
			return
		}
		draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), src, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), src, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	}
}

// drawCaption draws text on a filled background above (x, y), or just below
// it when there is no room above.
func drawCaption(dst draw.Image, x, y int, text string, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 2

	top := y - height
	if top < dst.Bounds().Min.Y {
		top = y
	}
	box := image.Rect(x, top, x+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, box, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColorOn(bg)),
		Face: face,
		Dot:  fixed.P(x+2, top+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}

// textColorOn picks black or white text for legibility on bg.
func textColorOn(bg color.RGBA) color.Color {
	c, _ := colorful.MakeColor(bg)
	_, _, l := c.Hsl()
	if l > 0.6 {
		return color.Black
	}
	return color.White
}

// Placeholder renders a size x size black square with centered white text.
// The text is drawn at the bitmap font's native size and scaled up.
func Placeholder(size int, text string) *image.NRGBA {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil() + 8
	h := w

	small := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(4, (h+face.Metrics().Ascent.Ceil())/2),
	}
	d.DrawString(text)

	return imaging.Resize(small, size, size, imaging.NearestNeighbor)
}
