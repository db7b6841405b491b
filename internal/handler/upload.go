package handler

import (
	"errors"
	"io"
	"net/http"

	"muzzlewatch/internal/config"
	"muzzlewatch/internal/dto"
	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/service"
)

// UploadHandler handles POST /upload: stores the original image, runs the
// detection pipeline and returns the detections with both image URLs.
func UploadHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				writeError(w, logger, http.StatusRequestEntityTooLarge, "File too large")
			case errors.Is(err, http.ErrMissingFile):
				writeError(w, logger, http.StatusBadRequest, "No file part")
			default:
				writeError(w, logger, http.StatusBadRequest, "Invalid upload")
			}
			return
		}
		defer file.Close()

		if header.Filename == "" {
			writeError(w, logger, http.StatusBadRequest, "No selected file")
			return
		}
		name := SanitizeFilename(header.Filename)
		if name == "" || !AllowedFile(name) {
			writeError(w, logger, http.StatusBadRequest, "File type not allowed")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, "Invalid upload")
			return
		}

		originalName := manager.StoredName("original", name)
		originalPath, err := manager.GetImageStore().SaveBytes(originalName, data)
		if err != nil {
			logger.Error("Error saving upload %s: %v", originalName, err)
			writeError(w, logger, http.StatusInternalServerError, "Failed to save file")
			return
		}

		result, err := manager.ProcessImage(r.Context(), originalPath, name)
		if err != nil {
			manager.DiscardUpload(originalName)
			switch {
			case errors.Is(err, service.ErrProcessImage):
				writeError(w, logger, http.StatusInternalServerError, "Failed to process image")
			case errors.Is(err, service.ErrSaveProcessed):
				writeError(w, logger, http.StatusInternalServerError, "Failed to save processed image")
			default:
				writeError(w, logger, http.StatusInternalServerError, "Failed to save history")
			}
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.UploadResult{
			Success:           true,
			Outcome:           result.Outcome.String(),
			OriginalFilename:  name,
			ProcessedFilename: result.ProcessedFilename,
			OriginalURL:       service.UploadURL(originalName),
			ProcessedURL:      service.UploadURL(result.ProcessedFilename),
			Detections:        result.Record.Detections,
			Stats:             result.Record.Stats,
		})
	}
}

// ServeUploadHandler serves GET /uploads/{filename}, falling back to the
// placeholder image for unknown names.
func ServeUploadHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset := manager.GetResolver().Resolve(r.PathValue("filename"))
		if !asset.Found && !fileExists(asset.Path) {
			logger.Warning("Placeholder %s is missing", asset.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, asset.Path)
	}
}
