package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"muzzlewatch/internal/imaging"
	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/model"
	"muzzlewatch/internal/service/assets"
	"muzzlewatch/internal/service/stats"
)

const (
	// GalleryLimit is how many of the most recent records get an image block.
	GalleryLimit = 10

	leftMargin  = 50
	textIndent  = 70
	barX        = 270
	barScale    = 2 // points per percent
	barHeight   = 10
	imageWidth  = 250
	imageHeight = 180
	imageBlock  = 220 // vertical space per gallery item

	galleryMargin = 100
	galleryTop    = 250 // distance from the top of the page after a gallery break
	textMargin    = 50
	textTop       = 50

	maxNameLength = 30
	keptNameRunes = 27
)

const (
	titleText        = "MUZZLE-LESS DOG DETECTION REPORT"
	statsHeader      = "GLOBAL STATISTICS:"
	galleryHeader    = "LATEST DETECTION IMAGES:"
	conclusionHeader = "CONCLUSION:"
	adviceHeader     = "RECOMMENDATIONS:"
	missingImageText = "Image not found"
	attributionText  = "Generated by the muzzle-less dog detection system for public places"

	conclusionNone    = "No dogs detected."
	conclusionWarning = "WARNING! Many dogs without muzzles detected."
	conclusionNormal  = "Situation normal: most dogs wear muzzles."
)

// Recommendations are listed whenever at least one dog without a muzzle was seen.
var Recommendations = []string{
	"1. Increase monitoring at detection locations",
	"2. Place warning signs",
	"3. Hold conversations with dog owners",
}

var errAssetMissing = errors.New("asset not found")

// AssetResolver maps a stored image reference to a file.
type AssetResolver interface {
	Resolve(ref string) assets.Asset
}

// Renderer lays out the report on a Canvas.
type Renderer struct {
	resolver  AssetResolver
	modelName string
	logger    *logger.Logger
}

// NewRenderer creates a renderer resolving gallery images through resolver.
func NewRenderer(resolver AssetResolver, modelName string, logger *logger.Logger) *Renderer {
	return &Renderer{resolver: resolver, modelName: modelName, logger: logger}
}

// page tracks the vertical write position.
type page struct {
	cv     Canvas
	height float64
	y      float64
}

// advance moves the cursor down by dy and starts a new page when the cursor
// drops below margin, continuing top points below the top edge.
func (p *page) advance(dy, margin, top float64) {
	p.y -= dy
	if p.y < margin {
		p.cv.NewPage()
		p.y = p.height - top
	}
}

// Render draws the whole report for records (oldest first) as of at.
// It never fails: unusable gallery images are replaced by placeholder blocks.
func (r *Renderer) Render(cv Canvas, records []model.DetectionRecord, at time.Time) {
	_, height := cv.PageSize()
	p := &page{cv: cv, height: height}
	totals := stats.Aggregate(records)

	r.header(p, len(records), at)
	r.statistics(p, totals)
	r.gallery(p, records)
	r.conclusion(p, totals)
	if stats.NeedsRecommendations(totals) {
		r.recommendations(p)
	}
	r.footer(p, at)
}

func (r *Renderer) header(p *page, count int, at time.Time) {
	p.y = p.height - 50
	p.cv.SetFont(16)
	p.cv.DrawString(leftMargin, p.y, titleText)

	p.cv.SetFont(10)
	p.cv.DrawString(leftMargin, p.height-80, "Generated: "+at.Format("2006-01-02 15:04:05"))
	p.cv.DrawString(leftMargin, p.height-100, fmt.Sprintf("Total records in history: %d", count))
}

func (r *Renderer) statistics(p *page, g model.GlobalStats) {
	p.y = p.height - 140
	p.cv.SetFont(12)
	p.cv.DrawString(leftMargin, p.y, statsHeader)

	p.y -= 25
	p.cv.SetFont(10)
	p.cv.DrawString(textIndent, p.y, fmt.Sprintf("Total dogs detected: %d", g.TotalDogs))

	p.y -= 20
	r.categoryLine(p, "With muzzle", g.WithMuzzle, g.WithMuzzleShare(), g.TotalDogs > 0, green)
	p.y -= 20
	r.categoryLine(p, "Without muzzle", g.WithoutMuzzle, g.WithoutMuzzleShare(), g.TotalDogs > 0, red)
}

func (r *Renderer) categoryLine(p *page, name string, count int, share float64, withBar bool, barColor colorful.Color) {
	pct := share * 100
	p.cv.DrawString(textIndent, p.y, fmt.Sprintf("%s: %d (%.1f%%)", name, count, pct))
	if !withBar {
		return
	}
	withFill(p.cv, barColor, func() {
		p.cv.Rect(barX, p.y, pct*barScale, barHeight, true, false)
	})
}

// galleryImage is the outcome of embedding one record's image. A non-nil err
// means the block is drawn as a placeholder.
type galleryImage struct {
	img Image
	err error
}

func (r *Renderer) embed(cv Canvas, asset assets.Asset) galleryImage {
	if !asset.Found {
		return galleryImage{err: errAssetMissing}
	}
	img, err := cv.EmbedImage(asset.Path)
	if err != nil {
		return galleryImage{err: err}
	}
	return galleryImage{img: img}
}

func (r *Renderer) gallery(p *page, records []model.DetectionRecord) {
	p.y -= 40
	p.cv.SetFont(12)
	p.cv.DrawString(leftMargin, p.y, galleryHeader)

	recent := records
	if len(recent) > GalleryLimit {
		recent = recent[len(recent)-GalleryLimit:]
	}

	for i := len(recent) - 1; i >= 0; i-- {
		p.advance(imageBlock, galleryMargin, galleryTop)
		r.galleryItem(p, len(recent)-i, recent[i])
	}
}

func (r *Renderer) galleryItem(p *page, index int, rec model.DetectionRecord) {
	asset := r.resolver.Resolve(rec.ProcessedImage)
	result := r.embed(p.cv, asset)

	if result.err != nil {
		if !errors.Is(result.err, errAssetMissing) {
			r.logger.Warning("Error adding image %s to report: %v", asset.Path, result.err)
		}
		r.missingImage(p)
	} else {
		r.drawImage(p, result.img)
	}
	r.caption(p, index, rec)
}

func (r *Renderer) drawImage(p *page, img Image) {
	w, h := imaging.FitBox(img.Width, img.Height, imageWidth, imageHeight)
	x := textIndent + (imageWidth-w)/2
	y := p.y + (imageHeight-h)/2
	p.cv.DrawImage(img, x, y, w, h)

	withStroke(p.cv, frameGray, 0.5, func() {
		p.cv.Rect(textIndent-2, p.y-1, imageWidth+4, imageHeight+2, false, true)
	})
}

func (r *Renderer) missingImage(p *page) {
	p.cv.SetFont(8)
	withFill(p.cv, boxGray, func() {
		p.cv.Rect(textIndent, p.y, imageWidth, imageHeight, true, false)
	})
	withFill(p.cv, textGray, func() {
		p.cv.DrawString(textIndent+imageWidth/2-30, p.y+imageHeight/2, missingImageText)
	})
}

func (r *Renderer) caption(p *page, index int, rec model.DetectionRecord) {
	p.cv.SetFont(9)
	name := truncateName(filepath.Base(rec.Filename))
	p.cv.DrawString(textIndent, p.y+imageHeight+20,
		fmt.Sprintf("Image %d: %s - %s", index, name, rec.Timestamp.Format("15:04:05")))
	p.cv.DrawString(textIndent, p.y+imageHeight+5,
		fmt.Sprintf("Dogs: %d, with muzzle: %d, without: %d",
			rec.Stats.TotalDogs, rec.Stats.WithMuzzle, rec.Stats.WithoutMuzzle))
}

// truncateName shortens names longer than maxNameLength runes.
func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNameLength {
		return name
	}
	return string(runes[:keptNameRunes]) + "..."
}

// Conclusion returns the sentence and color summarizing g.
func Conclusion(g model.GlobalStats) (string, colorful.Color) {
	switch stats.Assess(g) {
	case stats.VerdictWarning:
		return conclusionWarning, alertRed
	case stats.VerdictNormal:
		return conclusionNormal, okGreen
	default:
		return conclusionNone, black
	}
}

func (r *Renderer) conclusion(p *page, g model.GlobalStats) {
	p.advance(40, textMargin, textTop)
	p.cv.SetFont(12)
	p.cv.DrawString(leftMargin, p.y, conclusionHeader)

	p.advance(20, textMargin, textTop)
	p.cv.SetFont(10)
	text, col := Conclusion(g)
	withFill(p.cv, col, func() {
		p.cv.DrawString(textIndent, p.y, text)
	})
}

func (r *Renderer) recommendations(p *page) {
	p.advance(40, textMargin, textTop)
	p.cv.SetFont(11)
	p.cv.DrawString(leftMargin, p.y, adviceHeader)

	for _, line := range Recommendations {
		p.advance(20, textMargin, textTop)
		p.cv.SetFont(9)
		p.cv.DrawString(textIndent, p.y, line)
	}
}

func (r *Renderer) footer(p *page, at time.Time) {
	withFill(p.cv, mutedGray, func() {
		p.advance(40, textMargin, textTop)
		p.cv.SetFont(9)
		p.cv.DrawString(leftMargin, p.y, attributionText)

		p.advance(15, textMargin, textTop)
		p.cv.SetFont(8)
		p.cv.DrawString(leftMargin, p.y, fmt.Sprintf("Model: %s | Date: %s", r.modelName, at.Format("02.01.2006")))
	})
}
