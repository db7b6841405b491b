// Package inference talks to an external detection service over HTTP.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"muzzlewatch/internal/detection"
)

// DefaultTimeout bounds a single inference request.
const DefaultTimeout = 60 * time.Second

// Client sends images to an inference service. The service receives a
// multipart form with "file" and "conf" and answers with
// {"boxes": [[x1,y1,x2,y2]...], "confidences": [...], "class_ids": [...], "names": [...]}.
type Client struct {
	inferenceURL string
	httpClient   *http.Client
}

var _ detection.Detector = (*Client)(nil)

// NewClient creates a client posting to inferenceURL.
func NewClient(inferenceURL string) *Client {
	return &Client{
		inferenceURL: inferenceURL,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
	}
}

// Infer uploads the image and decodes the raw detections.
func (c *Client) Infer(ctx context.Context, imagePath string, confidenceThreshold float64) (detection.RawOutput, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return detection.RawOutput{}, fmt.Errorf("read image: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return detection.RawOutput{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return detection.RawOutput{}, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.WriteField("conf", strconv.FormatFloat(confidenceThreshold, 'f', -1, 64)); err != nil {
		return detection.RawOutput{}, fmt.Errorf("write conf field: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.inferenceURL, body)
	if err != nil {
		return detection.RawOutput{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return detection.RawOutput{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return detection.RawOutput{}, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var out detection.RawOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return detection.RawOutput{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// CheckHealth checks the service's /health endpoint next to the inference path.
func (c *Client) CheckHealth(ctx context.Context) error {
	u, err := url.Parse(c.inferenceURL)
	if err != nil {
		return fmt.Errorf("parse inference url: %w", err)
	}
	u.Path = path.Join(path.Dir(u.Path), "health")
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
