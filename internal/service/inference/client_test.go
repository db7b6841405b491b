package inference

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dog.jpg")
	if err := os.WriteFile(path, []byte("fake jpeg bytes"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestInfer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing file part: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "fake jpeg bytes" || header.Filename != "dog.jpg" {
			t.Errorf("Unexpected upload %q (%s)", data, header.Filename)
		}
		if got := r.FormValue("conf"); got != "0.35" {
			t.Errorf("Expected conf 0.35, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"boxes":[[1,2,3,4],[5,6,7,8]],"confidences":[0.9,0.4],"class_ids":[0,1],"names":{"0":"with_muzzle","1":"without_muzzle"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL + "/predict")
	out, err := client.Infer(context.Background(), writeImage(t), 0.35)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	if out.Len() != 2 {
		t.Fatalf("Expected 2 detections, got %d", out.Len())
	}
	if out.Boxes[1] != [4]float64{5, 6, 7, 8} || out.ClassIDs[1] != 1 {
		t.Errorf("Unexpected output %+v", out)
	}
	if out.Labels.Resolve(1) != "without_muzzle" {
		t.Errorf("Expected label table from response, got %v", out.Labels)
	}
}

func TestInfer_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			w.Write([]byte("not json"))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	image := writeImage(t)
	for _, path := range []string{"/predict", "/broken"} {
		if _, err := NewClient(server.URL+path).Infer(context.Background(), image, 0.5); err == nil {
			t.Errorf("%s: expected error", path)
		}
	}

	if _, err := NewClient(server.URL).Infer(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), 0.5); err == nil {
		t.Error("Expected error for missing image")
	}
}

func TestCheckHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL + "/api/predict")
	if err := client.CheckHealth(context.Background()); err != nil {
		t.Errorf("Expected healthy service, got %v", err)
	}

	healthy = false
	if err := client.CheckHealth(context.Background()); err == nil {
		t.Error("Expected unhealthy error")
	}
}
