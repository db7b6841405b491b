package imaging

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"muzzlewatch/internal/model"
)

func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	img := createInMemoryImage(40, 20, color.RGBA{0, 128, 255, 255})

	for _, name := range []string{"out.jpg", "out.png"} {
		path := filepath.Join(dir, name)
		if err := Save(path, img); err != nil {
			t.Fatalf("Save %s failed: %v", name, err)
		}

		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s failed: %v", name, err)
		}
		if b := loaded.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
			t.Errorf("%s: got %dx%d, want 40x20", name, b.Dx(), b.Dy())
		}
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for undecodable file")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestEncodeJPEG_RoundTrip(t *testing.T) {
	data, err := EncodeJPEG(createInMemoryImage(10, 10, color.White))
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 10 {
		t.Errorf("Expected width 10, got %d", img.Bounds().Dx())
	}
}

func TestFitBox(t *testing.T) {
	tests := []struct {
		w, h, bw, bh float64
		wantW, wantH float64
	}{
		{500, 360, 250, 180, 250, 180},
		{1000, 100, 250, 180, 250, 25},
		{100, 400, 250, 180, 45, 180},
		{50, 36, 250, 180, 250, 180},
		{0, 10, 250, 180, 250, 180},
	}

	for _, tt := range tests {
		gotW, gotH := FitBox(tt.w, tt.h, tt.bw, tt.bh)
		if math.Abs(gotW-tt.wantW) > 1e-9 || math.Abs(gotH-tt.wantH) > 1e-9 {
			t.Errorf("FitBox(%v,%v): got %vx%v, want %vx%v", tt.w, tt.h, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}

func TestFit(t *testing.T) {
	out := Fit(createInMemoryImage(400, 100, color.White), 200, 200)
	if b := out.Bounds(); b.Dx() != 200 || b.Dy() != 50 {
		t.Errorf("got %dx%d, want 200x50", b.Dx(), b.Dy())
	}
}

func TestClassColor_StableAndDistinct(t *testing.T) {
	if ClassColor(0) != ClassColor(0) {
		t.Error("ClassColor should be deterministic")
	}
	if ClassColor(0) == ClassColor(1) {
		t.Error("Expected different colors for different classes")
	}
	if ClassColor(-1).A != 255 {
		t.Error("Expected opaque color for negative class id")
	}
}

func TestAnnotate(t *testing.T) {
	src := createInMemoryImage(100, 100, color.Black)
	detections := []model.Detection{
		{BBox: [4]float64{20, 30, 80, 90}, Label: model.LabelWithMuzzle, Confidence: 0.87, ClassID: 0},
		{BBox: [4]float64{500, 500, 600, 600}, Label: "outside", ClassID: 1},
	}

	out := Annotate(src, detections)

	want := ClassColor(0)
	got := out.NRGBAAt(20, 60)
	if got.R != want.R || got.G != want.G || got.B != want.B {
		t.Errorf("Expected box edge in class color %v, got %v", want, got)
	}
	if inner := out.NRGBAAt(50, 60); inner.R != 0 || inner.G != 0 || inner.B != 0 {
		t.Errorf("Box interior should be untouched, got %v", inner)
	}
	if r, _, _, _ := src.At(20, 60).RGBA(); r != 0 {
		t.Error("Annotate must not modify the source image")
	}
}

func TestPlaceholder(t *testing.T) {
	img := Placeholder(300, "No image")
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 300 {
		t.Fatalf("got %dx%d, want 300x300", b.Dx(), b.Dy())
	}

	if c := img.NRGBAAt(0, 0); c.R != 0 || c.G != 0 || c.B != 0 {
		t.Errorf("Expected black corner, got %v", c)
	}

	white := 0
	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			if c := img.NRGBAAt(x, y); c.R == 255 && c.G == 255 && c.B == 255 {
				white++
			}
		}
	}
	if white == 0 {
		t.Error("Expected white marker text on the placeholder")
	}
}
