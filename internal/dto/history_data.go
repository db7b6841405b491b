package dto

import "muzzlewatch/internal/model"

// HistoryItem is a history record with the public URL of its processed image.
type HistoryItem struct {
	model.DetectionRecord
	ProcessedURL string `json:"processed_url"`
}

// HistoryData is a paginated history payload. Page 1 holds the newest records;
// records within a page are oldest first.
type HistoryData struct {
	Records     []HistoryItem     `json:"records"`
	Totals      model.GlobalStats `json:"totals"`
	Length      int               `json:"length"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	Limit       int               `json:"pageSize"`
}
