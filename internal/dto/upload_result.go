package dto

import "muzzlewatch/internal/model"

// UploadResult is the response of a successful upload.
type UploadResult struct {
	Success           bool              `json:"success"`
	Outcome           string            `json:"outcome"`
	OriginalFilename  string            `json:"original_filename"`
	ProcessedFilename string            `json:"processed_filename"`
	OriginalURL       string            `json:"original_url"`
	ProcessedURL      string            `json:"processed_url"`
	Detections        []model.Detection `json:"detections"`
	Stats             model.Stats       `json:"stats"`
}

// ErrorResponse is returned with every 4xx/5xx JSON response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StatusResponse acknowledges an action without a payload.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
