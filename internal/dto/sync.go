package dto

import (
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
)

// SyncItemResponse defines the data returned for a sync queue item.
type SyncItemResponse struct {
	ItemID        string     `json:"itemID"`
	TransactionID string     `json:"transactionID"`
	Field         string     `json:"field"`
	Category      *string    `json:"category,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Attempts      int        `json:"attempts"`
	Status        string     `json:"status"`
	LastAttemptAt *time.Time `json:"lastAttemptAt"`
	NextAttemptAt time.Time  `json:"nextAttemptAt"`
	LastError     *string    `json:"lastError"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ToSyncItemResponse converts a domain.SyncQueueItem to its DTO.
func ToSyncItemResponse(i *domain.SyncQueueItem) SyncItemResponse {
	return SyncItemResponse{
		ItemID:        i.ItemID,
		TransactionID: i.TransactionID,
		Field:         string(i.Field),
		Category:      i.Category,
		Tags:          i.Tags,
		Attempts:      i.Attempts,
		Status:        string(i.Status),
		LastAttemptAt: i.LastAttemptAt,
		NextAttemptAt: i.NextAttemptAt,
		LastError:     i.LastError,
		CreatedAt:     i.CreatedAt,
	}
}

// ToListSyncItemResponse converts a slice of queue items to response DTOs.
func ToListSyncItemResponse(items []domain.SyncQueueItem) []SyncItemResponse {
	res := make([]SyncItemResponse, len(items))
	for i := range items {
		res[i] = ToSyncItemResponse(&items[i])
	}
	return res
}

// ListSyncItemsParams defines query parameters for listing queue items.
type ListSyncItemsParams struct {
	Status        string `form:"status" binding:"omitempty,oneof=pending processing completed failed"`
	TransactionID string `form:"transactionID"`
	Limit         int    `form:"limit,default=20" binding:"omitempty,min=1,max=200"`
	Offset        int    `form:"offset,default=0" binding:"omitempty,min=0"`
}

// ApiLogResponse exposes one outbound bank call record.
type ApiLogResponse struct {
	LogID       string    `json:"logID"`
	Endpoint    string    `json:"endpoint"`
	Method      string    `json:"method"`
	StatusCode  int       `json:"statusCode"`
	LatencyMs   int64     `json:"latencyMs"`
	RateLimited bool      `json:"rateLimited"`
	Error       *string   `json:"error"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToListApiLogResponse converts a slice of api logs to response DTOs.
func ToListApiLogResponse(logs []domain.ApiLog) []ApiLogResponse {
	res := make([]ApiLogResponse, len(logs))
	for i, l := range logs {
		res[i] = ApiLogResponse{
			LogID:       l.LogID,
			Endpoint:    l.Endpoint,
			Method:      l.Method,
			StatusCode:  l.StatusCode,
			LatencyMs:   l.LatencyMs,
			RateLimited: l.RateLimited,
			Error:       l.Error,
			CreatedAt:   l.CreatedAt,
		}
	}
	return res
}

// PutSettingRequest defines the body for writing one settings entry.
type PutSettingRequest struct {
	Value     string `json:"value" binding:"required"`
	Encrypted bool   `json:"encrypted"`
}

// SettingResponse exposes one settings entry.
type SettingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToSettingResponse converts a domain.Setting to its DTO.
func ToSettingResponse(s *domain.Setting) SettingResponse {
	return SettingResponse{Key: s.Key, Value: s.Value, Encrypted: s.Encrypted, UpdatedAt: s.UpdatedAt}
}
