package domain

import "time"

// ApiLog is an append-only record of one outbound bank API call. Rows are
// write-once and never mutated after insert; they exist for diagnostics.
type ApiLog struct {
	LogID       string    `json:"logID"` // Primary key (UUID)
	Endpoint    string    `json:"endpoint"`
	Method      string    `json:"method"`
	StatusCode  int       `json:"statusCode"` // 0 when the request never got a response
	LatencyMs   int64     `json:"latencyMs"`
	RateLimited bool      `json:"rateLimited"`
	Error       *string   `json:"error"`
	CreatedAt   time.Time `json:"createdAt"`
}
