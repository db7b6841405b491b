package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/service"
)

// ReportHandler generates a PDF report and sends it as an attachment.
func ReportHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := manager.GenerateReport()
		if err != nil || !fileExists(path) {
			writeError(w, logger, http.StatusInternalServerError, "Failed to generate report")
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
		http.ServeFile(w, r, path)
	}
}
