package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/model"
)

// FilePrefix starts the name of every generated report.
const FilePrefix = "detection_report_"

// Generator renders reports into PDF files in a directory.
type Generator struct {
	dir      string
	fontPath string
	renderer *Renderer
	logger   *logger.Logger
	now      func() time.Time
	mu       sync.Mutex
}

// NewGenerator creates a generator writing into dir.
func NewGenerator(dir, fontPath string, renderer *Renderer, logger *logger.Logger) *Generator {
	return &Generator{
		dir:      dir,
		fontPath: fontPath,
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source used for the file name and report dates.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// FileName returns the report file name for a generation time, to the millisecond.
func FileName(at time.Time) string {
	return fmt.Sprintf("%s%s.pdf", FilePrefix, at.Format("20060102_150405_000"))
}

// freePath returns a path for name in dir that no existing file uses,
// adding a numeric suffix when needed.
func freePath(dir, name string) string {
	path := filepath.Join(dir, name)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, filepath.Ext(name)))
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Generate renders records into a new PDF and returns its path. The file
// appears under its final name only once it is completely written.
func (g *Generator) Generate(records []model.DetectionRecord) (string, error) {
	at := g.now()

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	canvas, err := NewPDFCanvas(g.fontPath)
	if err != nil {
		return "", err
	}
	if canvas.FontFamily() == coreFont && g.fontPath != "" {
		g.logger.Warning("Font %s unavailable, using %s", g.fontPath, coreFont)
	}
	g.renderer.Render(canvas, records, at)

	tmp, err := os.CreateTemp(g.dir, FilePrefix+"*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	tmpName := tmp.Name()

	if err := canvas.Output(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close report file: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	path := freePath(g.dir, FileName(at))
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	g.logger.Info("Report generated: %s (%d records, %d pages)", filepath.Base(path), len(records), canvas.PageCount())
	return path, nil
}
