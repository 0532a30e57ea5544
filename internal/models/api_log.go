package models

import "time"

// ApiLog is the persistence model for one outbound call record.
type ApiLog struct {
	LogID       string    `json:"logID"`
	Endpoint    string    `json:"endpoint"`
	Method      string    `json:"method"`
	StatusCode  int       `json:"statusCode"`
	LatencyMs   int64     `json:"latencyMs"`
	RateLimited bool      `json:"rateLimited"`
	Error       *string   `json:"error"`
	CreatedAt   time.Time `json:"createdAt"`
}
