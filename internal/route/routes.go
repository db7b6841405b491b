package route

import (
	"net/http"
	"os"
	"path/filepath"

	"muzzlewatch/internal/config"
	"muzzlewatch/internal/handler"
	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/middleware"
	"muzzlewatch/internal/service"
	hubsvc "muzzlewatch/internal/service/websocket"
)

// dynamicHTMLHandler serves /path as <staticDir>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers static file serving, the detection API and the log
// endpoints, and wraps the mux with request logging.
func SetupRoutes(manager *service.Manager, hub *hubsvc.HubService, checker handler.HealthChecker,
	cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// Detection API
	mux.HandleFunc("POST /upload", handler.UploadHandler(manager, cfg, logger))
	mux.HandleFunc("GET /uploads/{filename}", handler.ServeUploadHandler(manager, logger))
	mux.HandleFunc("GET /history", handler.GetHistoryHandler(manager, cfg, logger))
	mux.HandleFunc("GET /report", handler.ReportHandler(manager, logger))
	mux.HandleFunc("POST /clear_history", handler.ClearHistoryHandler(manager, logger))
	mux.HandleFunc("GET /api/live", handler.LiveWebsocketHandler(hub, logger))
	mux.HandleFunc("GET /health", handler.HealthHandler(manager, checker, logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Automatic HTML handler mapping for example: /about -> <static>/about.html
	mux.HandleFunc("GET /", dynamicHTMLHandler(cfg.StaticDirectory))

	return middleware.RecoverMiddleware(logger, middleware.LoggingMiddleware(logger, mux))
}
