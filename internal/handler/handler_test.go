package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"muzzlewatch/internal/config"
	"muzzlewatch/internal/detection"
	"muzzlewatch/internal/dto"
	"muzzlewatch/internal/imaging"
	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/repository/jsonfile"
	"muzzlewatch/internal/service"
	"muzzlewatch/internal/service/assets"
	"muzzlewatch/internal/service/report"
	"muzzlewatch/internal/service/storage"
)

type stubDetector struct {
	out detection.RawOutput
}

func (d *stubDetector) Infer(ctx context.Context, imagePath string, confidenceThreshold float64) (detection.RawOutput, error) {
	return d.out, nil
}

type stubChecker struct {
	err error
}

func (c stubChecker) CheckHealth(ctx context.Context) error {
	return c.err
}

type testServer struct {
	mux         *http.ServeMux
	cfg         *config.Config
	history     *jsonfile.HistoryStore
	images      *storage.ImageStore
	placeholder string
	reportsDir  string
	logger      *logger.Logger
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	log, err := logger.NewLogger(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	cfg := &config.Config{
		Labels:              "with_muzzle,without_muzzle",
		ConfidenceThreshold: 0.5,
		MaxUploadSize:       1 << 20,
		HistoryPageSize:     50,
		ReportHistoryLimit:  50,
		ModelName:           "test-model",
	}

	history, err := jsonfile.Open(filepath.Join(dir, "history.json"), log)
	if err != nil {
		t.Fatalf("Open history failed: %v", err)
	}
	images, err := storage.NewImageStore(filepath.Join(dir, "uploads"), log)
	if err != nil {
		t.Fatalf("NewImageStore failed: %v", err)
	}
	placeholder := filepath.Join(dir, "static", "placeholder.jpg")
	resolver := assets.NewResolver(images, placeholder)
	reportsDir := filepath.Join(dir, "reports")
	generator := report.NewGenerator(reportsDir, "", report.NewRenderer(resolver, cfg.ModelName, log), log)

	detector := &stubDetector{out: detection.RawOutput{
		Boxes:       [][4]float64{{5, 5, 40, 40}},
		Confidences: []float64{0.9},
		ClassIDs:    []int{1},
	}}
	manager := service.NewManager(detector, history, images, resolver, generator, nil, cfg, log)
	manager.SetClock(func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 123456000, time.UTC) })

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", UploadHandler(manager, cfg, log))
	mux.HandleFunc("GET /uploads/{filename}", ServeUploadHandler(manager, log))
	mux.HandleFunc("GET /history", GetHistoryHandler(manager, cfg, log))
	mux.HandleFunc("GET /report", ReportHandler(manager, log))
	mux.HandleFunc("POST /clear_history", ClearHistoryHandler(manager, log))
	mux.HandleFunc("GET /logs/{level}", ShowLogsHandler(log))
	mux.HandleFunc("POST /logs/{level}/clear", ClearLogsHandler(log))

	return &testServer{
		mux:         mux,
		cfg:         cfg,
		history:     history,
		images:      images,
		placeholder: placeholder,
		reportsDir:  reportsDir,
		logger:      log,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{100, 120, 140, 255})
		}
	}
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	return data
}

func uploadRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Error body is not JSON: %v", err)
	}
	return resp.Error
}

func TestUploadHandler_Success(t *testing.T) {
	s := setupServer(t)

	rec := s.do(uploadRequest(t, "file", "my dog.jpg", jpegBytes(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.UploadResult
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || resp.Outcome != "detections" {
		t.Errorf("Unexpected result %+v", resp)
	}
	if resp.OriginalFilename != "my_dog.jpg" {
		t.Errorf("Expected sanitized name, got %s", resp.OriginalFilename)
	}
	if resp.ProcessedFilename != "processed_20240615_100000_123456_my_dog.jpg" {
		t.Errorf("Unexpected processed name %s", resp.ProcessedFilename)
	}
	if resp.OriginalURL != "/uploads/original_20240615_100000_123456_my_dog.jpg" {
		t.Errorf("Unexpected original URL %s", resp.OriginalURL)
	}
	if resp.Stats.TotalDogs != 1 || resp.Stats.WithoutMuzzle != 1 {
		t.Errorf("Unexpected stats %+v", resp.Stats)
	}
	if !s.images.Exists("original_20240615_100000_123456_my_dog.jpg") || !s.images.Exists(resp.ProcessedFilename) {
		t.Error("Both original and processed images should be stored")
	}
	if n, _ := s.history.Count(); n != 1 {
		t.Errorf("Expected one history record, got %d", n)
	}
}

func TestUploadHandler_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		data     []byte
		status   int
		message  string
	}{
		{"missing file part", "other", "dog.jpg", []byte("x"), http.StatusBadRequest, "No file part"},
		{"extension not allowed", "file", "dog.gif", []byte("GIF89a"), http.StatusBadRequest, "File type not allowed"},
		{"no extension", "file", "dog", []byte("x"), http.StatusBadRequest, "File type not allowed"},
		{"unreadable image", "file", "dog.jpg", []byte("not an image"), http.StatusInternalServerError, "Failed to process image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupServer(t)
			rec := s.do(uploadRequest(t, tt.field, tt.filename, tt.data))
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d", tt.status, rec.Code)
			}
			if msg := decodeError(t, rec); msg != tt.message {
				t.Errorf("Expected %q, got %q", tt.message, msg)
			}
			if n, _ := s.history.Count(); n != 0 {
				t.Errorf("No record expected, got %d", n)
			}
			if entries, _ := os.ReadDir(s.images.Dir()); len(entries) != 0 {
				t.Errorf("Rejected upload left %d files behind", len(entries))
			}
		})
	}
}

func TestUploadHandler_TooLarge(t *testing.T) {
	s := setupServer(t)
	s.cfg.MaxUploadSize = 512

	rec := s.do(uploadRequest(t, "file", "big.jpg", bytes.Repeat([]byte{0xFF}, 4096)))
	if rec.Code < 400 || rec.Code >= 500 {
		t.Errorf("Expected a client error, got %d", rec.Code)
	}
}

func TestServeUploadHandler(t *testing.T) {
	s := setupServer(t)
	if _, err := s.images.SaveBytes("stored.jpg", jpegBytes(t)); err != nil {
		t.Fatalf("SaveBytes failed: %v", err)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/uploads/stored.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for stored image, got %d", rec.Code)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/uploads/unknown.jpg", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a placeholder, got %d", rec.Code)
	}

	if err := assets.EnsurePlaceholder(s.placeholder); err != nil {
		t.Fatalf("EnsurePlaceholder failed: %v", err)
	}
	rec = s.do(httptest.NewRequest(http.MethodGet, "/uploads/unknown.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected placeholder, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", ct)
	}
}

func TestGetHistoryHandler_Pagination(t *testing.T) {
	s := setupServer(t)
	for _, name := range []string{"r1.jpg", "r2.jpg", "r3.jpg", "r4.jpg", "r5.jpg"} {
		if _, err := s.history.Append(name, nil, "processed_"+name); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	tests := []struct {
		query string
		names []string
	}{
		{"?limit=2", []string{"r4.jpg", "r5.jpg"}},
		{"?limit=2&page=2", []string{"r2.jpg", "r3.jpg"}},
		{"?limit=2&page=3", []string{"r1.jpg"}},
		{"?limit=2&page=4", []string{}},
		{"", []string{"r1.jpg", "r2.jpg", "r3.jpg", "r4.jpg", "r5.jpg"}},
		{"?page=6148914691236517206&limit=3", []string{}},
		{"?limit=9223372036854775807", []string{"r1.jpg", "r2.jpg", "r3.jpg", "r4.jpg", "r5.jpg"}},
		{"?page=9223372036854775807&limit=9223372036854775807", []string{}},
	}

	for _, tt := range tests {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/history"+tt.query, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.query, rec.Code)
		}
		var data dto.HistoryData
		if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
			t.Fatalf("%s: failed to decode: %v", tt.query, err)
		}
		if data.Length != 5 {
			t.Errorf("%s: expected length 5, got %d", tt.query, data.Length)
		}
		if data.TotalPages < 1 {
			t.Errorf("%s: expected at least one page, got %d", tt.query, data.TotalPages)
		}
		if len(data.Records) != len(tt.names) {
			t.Fatalf("%s: expected %d records, got %d", tt.query, len(tt.names), len(data.Records))
		}
		for i, item := range data.Records {
			if item.Filename != tt.names[i] {
				t.Errorf("%s: record %d is %s, expected %s", tt.query, i, item.Filename, tt.names[i])
			}
			if item.ProcessedURL != "/uploads/processed_"+tt.names[i] {
				t.Errorf("%s: unexpected processed_url %s", tt.query, item.ProcessedURL)
			}
		}
	}
}

func TestGetHistoryHandler_CorruptHistoryIsEmpty(t *testing.T) {
	s := setupServer(t)
	if err := os.WriteFile(s.history.Path(), []byte("not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var data dto.HistoryData
	json.NewDecoder(rec.Body).Decode(&data)
	if data.Length != 0 || len(data.Records) != 0 {
		t.Errorf("Expected empty history, got %+v", data)
	}
}

func TestReportHandler(t *testing.T) {
	s := setupServer(t)
	if _, err := s.history.Append("dog.jpg", nil, "processed_missing.jpg"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/report", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "detection_report_") {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("Body is not a PDF document")
	}
}

func TestReportHandler_Unwritable(t *testing.T) {
	s := setupServer(t)
	if err := os.WriteFile(s.reportsDir, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/report", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Failed to generate report" {
		t.Errorf("Unexpected error %q", msg)
	}
}

func TestClearHistoryHandler(t *testing.T) {
	s := setupServer(t)
	s.do(uploadRequest(t, "file", "dog.jpg", jpegBytes(t)))

	rec := s.do(httptest.NewRequest(http.MethodPost, "/clear_history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp dto.StatusResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Success {
		t.Error("Expected success")
	}
	if n, _ := s.history.Count(); n != 0 {
		t.Errorf("Expected empty history, got %d", n)
	}
	entries, _ := os.ReadDir(s.images.Dir())
	if len(entries) != 0 {
		t.Errorf("Expected no stored images, got %d", len(entries))
	}
}

func TestLogsHandlers(t *testing.T) {
	s := setupServer(t)
	s.logger.Info("marker entry")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "marker entry") {
		t.Errorf("Expected info log with marker, got %d %q", rec.Code, rec.Body.String())
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/logs/debug", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown level, got %d", rec.Code)
	}

	rec = s.do(httptest.NewRequest(http.MethodPost, "/logs/info/clear", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	data, err := os.ReadFile(filepath.Join(s.logger.Dir(), "info.log"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Expected truncated log, got %q", data)
	}
}

func TestHealthHandler(t *testing.T) {
	s := setupServer(t)
	history, _ := jsonfile.Open(filepath.Join(t.TempDir(), "h.json"), logger.Discard())
	manager := service.NewManager(&stubDetector{}, history, s.images, nil, nil, nil, s.cfg, logger.Discard())

	tests := []struct {
		name     string
		checker  HealthChecker
		detector string
	}{
		{"no checker", nil, "ok"},
		{"healthy", stubChecker{}, "ok"},
		{"unreachable", stubChecker{err: errors.New("connection refused")}, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthHandler(manager, tt.checker, logger.Discard())(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			var resp healthResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp.Detector != tt.detector {
				t.Errorf("Expected detector %q, got %q", tt.detector, resp.Detector)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"dog.jpg", "dog.jpg"},
		{"my dog.jpg", "my_dog.jpg"},
		{"../../etc/passwd", "passwd"},
		{"C:\\photos\\dog.png", "dog.png"},
		{"..hidden.jpg", "hidden.jpg"},
		{"пёс.jpg", "jpg"},
		{"a/b/", "b"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.input); got != tt.expected {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestAllowedFile(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"dog.jpg", true},
		{"dog.JPEG", true},
		{"dog.png", true},
		{"dog.gif", false},
		{"jpg", false},
		{"dog.", false},
	}

	for _, tt := range tests {
		if got := AllowedFile(tt.name); got != tt.expected {
			t.Errorf("AllowedFile(%q) = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		if got := atoiDefault(tt.input, tt.def); got != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, got, tt.expected)
		}
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		n, limit, expected int
	}{
		{0, 50, 0},
		{5, 2, 3},
		{4, 2, 2},
		{5, 9223372036854775807, 1},
	}

	for _, tt := range tests {
		if got := totalPages(tt.n, tt.limit); got != tt.expected {
			t.Errorf("totalPages(%d, %d) = %d, expected %d", tt.n, tt.limit, got, tt.expected)
		}
	}
}
