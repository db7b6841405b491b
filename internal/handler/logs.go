package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"muzzlewatch/internal/logger"
)

// ShowLogsHandler serves GET /logs/{level} as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := r.PathValue("level")
		if !knownLevel(level) {
			http.NotFound(w, r)
			return
		}
		serveLogFile(w, r, logger.Dir(), level+".log")
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler handles POST /logs/{level}/clear by truncating that log.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := r.PathValue("level")
		if !knownLevel(level) {
			http.NotFound(w, r)
			return
		}
		if err := logger.CleanLogs(level); err != nil {
			logger.Error("Error clearing %s log: %v", level, err)
			http.Error(w, "Failed to clear log", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func knownLevel(level string) bool {
	for _, l := range logger.Levels {
		if l == level {
			return true
		}
	}
	return false
}
