package handler

import (
	"context"
	"net/http"
	"os"
	"time"

	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/service"
)

// HealthChecker is implemented by detectors that depend on a remote service.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

type healthResponse struct {
	Status   string `json:"status"`
	Records  int    `json:"records"`
	Detector string `json:"detector"`
}

// HealthHandler reports whether the history store and the detector are usable.
func HealthHandler(manager *service.Manager, checker HealthChecker, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Detector: "ok"}
		status := http.StatusOK

		count, err := manager.GetHistory().Count()
		if err != nil {
			logger.Warning("Health check: history unavailable: %v", err)
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		resp.Records = count

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := checker.CheckHealth(ctx); err != nil {
				logger.Warning("Health check: detector unavailable: %v", err)
				resp.Detector = "unavailable"
				resp.Status = "degraded"
			}
		}

		writeJSON(w, logger, status, resp)
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
