package models

import "time"

// Setting is the persistence model for one opaque per-user key/value entry.
type Setting struct {
	UserID    string    `json:"userID"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	UpdatedAt time.Time `json:"updatedAt"`
}
