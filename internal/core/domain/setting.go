package domain

import "time"

// Setting is one opaque per-user key/value entry. This core only reads it as
// a source of bank API credentials and per-user configuration; values are
// stored verbatim and some may be ciphertext written by another subsystem.
type Setting struct {
	UserID    string    `json:"userID"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Well-known setting keys consumed by the sync core.
const (
	SettingBankAPIToken   = "bank_api_token"
	SettingBankWebhookKey = "bank_webhook_secret"
)
