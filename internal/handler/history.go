package handler

import (
	"net/http"

	"muzzlewatch/internal/config"
	"muzzlewatch/internal/dto"
	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/model"
	"muzzlewatch/internal/service"
	"muzzlewatch/internal/service/stats"
)

// GetHistoryHandler returns one page of the history. Page 1 holds the most
// recent records.
func GetHistoryHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), cfg.HistoryPageSize)

		records := manager.History(0)
		window := pageWindow(records, page, limit)

		items := make([]dto.HistoryItem, 0, len(window))
		for _, rec := range window {
			items = append(items, service.NewHistoryItem(rec))
		}

		writeJSON(w, logger, http.StatusOK, dto.HistoryData{
			Records:     items,
			Totals:      stats.Aggregate(records),
			Length:      len(records),
			TotalPages:  totalPages(len(records), limit),
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// pageWindow returns the records of page counted from the end of records.
// page and limit must be positive; huge values yield an empty window.
func pageWindow(records []model.DetectionRecord, page, limit int) []model.DetectionRecord {
	if page-1 >= totalPages(len(records), limit) {
		return nil
	}
	end := len(records) - (page-1)*limit
	start := end - limit
	if start < 0 {
		start = 0
	}
	return records[start:end]
}

func totalPages(n, limit int) int {
	pages := n / limit
	if n%limit != 0 {
		pages++
	}
	return pages
}

// ClearHistoryHandler handles POST /clear_history: removes stored images and records.
func ClearHistoryHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.ClearHistory(); err != nil {
			logger.Error("Error clearing history: %v", err)
			writeError(w, logger, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.StatusResponse{Success: true, Message: "History and files cleared"})
	}
}
