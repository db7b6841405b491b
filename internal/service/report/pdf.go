package report

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/sfnt"

	"muzzlewatch/internal/imaging"
)

const (
	coreFont   = "Helvetica"
	customFont = "ReportFont"

	// Embedded images are downscaled to twice the gallery box for print quality.
	embedMaxWidth  = 2 * imageWidth
	embedMaxHeight = 2 * imageHeight
)

// PDFCanvas implements Canvas on US Letter pages.
type PDFCanvas struct {
	pdf       *fpdf.Fpdf
	family    string
	translate func(string) string
	height    float64
	width     float64
	fill      colorful.Color
	stroke    colorful.Color
	lineWidth float64
	images    int
}

var _ Canvas = (*PDFCanvas)(nil)

// NewPDFCanvas creates a document with one empty page. When fontPath names a
// readable TrueType font it is embedded so any script renders; otherwise the
// core Helvetica font with cp1252 encoding is used.
func NewPDFCanvas(fontPath string) (*PDFCanvas, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		SizeStr:        "Letter",
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCreator("muzzlewatch", true)
	pdf.SetTitle("Dog muzzle detection report", true)

	c := &PDFCanvas{
		pdf:       pdf,
		family:    coreFont,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
		lineWidth: 1,
	}

	if data, ok := loadFont(fontPath); ok {
		pdf.AddUTF8FontFromBytes(customFont, "", data)
		c.family = customFont
		c.translate = func(s string) string { return s }
	}

	c.width, c.height = pdf.GetPageSize()
	pdf.AddPage()
	c.SetFont(10)
	c.SetFillColor(black)
	c.SetStrokeColor(black)
	c.SetLineWidth(1)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to initialize pdf: %w", err)
	}
	return c, nil
}

// loadFont reads and validates a TrueType font so a broken file never
// poisons the document.
func loadFont(path string) ([]byte, bool) {
	if path == "" {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	// fpdf only embeds glyf-based TrueType outlines.
	if len(data) < 4 || !(bytes.Equal(data[:4], []byte{0, 1, 0, 0}) || bytes.Equal(data[:4], []byte("true"))) {
		return nil, false
	}
	if _, err := sfnt.Parse(data); err != nil {
		return nil, false
	}
	return data, true
}

// FontFamily returns the family used for all text.
func (c *PDFCanvas) FontFamily() string {
	return c.family
}

func (c *PDFCanvas) PageSize() (float64, float64) {
	return c.width, c.height
}

func (c *PDFCanvas) NewPage() {
	c.pdf.AddPage()
}

// PageCount returns the number of pages started so far.
func (c *PDFCanvas) PageCount() int {
	return c.pdf.PageCount()
}

func (c *PDFCanvas) SetFont(size float64) {
	c.pdf.SetFont(c.family, "", size)
}

func (c *PDFCanvas) SetFillColor(col colorful.Color) {
	c.fill = col
	r, g, b := col.RGB255()
	c.pdf.SetFillColor(int(r), int(g), int(b))
	c.pdf.SetTextColor(int(r), int(g), int(b))
}

func (c *PDFCanvas) FillColor() colorful.Color {
	return c.fill
}

func (c *PDFCanvas) SetStrokeColor(col colorful.Color) {
	c.stroke = col
	r, g, b := col.RGB255()
	c.pdf.SetDrawColor(int(r), int(g), int(b))
}

func (c *PDFCanvas) StrokeColor() colorful.Color {
	return c.stroke
}

func (c *PDFCanvas) SetLineWidth(w float64) {
	c.lineWidth = w
	c.pdf.SetLineWidth(w)
}

func (c *PDFCanvas) LineWidth() float64 {
	return c.lineWidth
}

func (c *PDFCanvas) DrawString(x, y float64, text string) {
	c.pdf.Text(x, c.height-y, c.translate(text))
}

func (c *PDFCanvas) Rect(x, y, w, h float64, fill, stroke bool) {
	style := ""
	switch {
	case fill && stroke:
		style = "FD"
	case fill:
		style = "F"
	case stroke:
		style = "D"
	default:
		return
	}
	c.pdf.Rect(x, c.height-y-h, w, h, style)
}

// EmbedImage decodes the image with Go decoders and re-encodes it as JPEG, so
// the PDF writer only ever parses data it produced itself.
func (c *PDFCanvas) EmbedImage(path string) (Image, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return Image{}, err
	}
	thumb := imaging.Fit(img, embedMaxWidth, embedMaxHeight)
	data, err := imaging.EncodeJPEG(thumb)
	if err != nil {
		return Image{}, err
	}

	c.images++
	name := fmt.Sprintf("gallery-%d", c.images)
	c.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "JPG"}, bytes.NewReader(data))
	if err := c.pdf.Error(); err != nil {
		return Image{}, fmt.Errorf("failed to register image: %w", err)
	}

	b := thumb.Bounds()
	return Image{Name: name, Width: float64(b.Dx()), Height: float64(b.Dy())}, nil
}

func (c *PDFCanvas) DrawImage(img Image, x, y, w, h float64) {
	c.pdf.ImageOptions(img.Name, x, c.height-y-h, w, h, false, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")
}

// Output writes the finished document.
func (c *PDFCanvas) Output(w io.Writer) error {
	if err := c.pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
