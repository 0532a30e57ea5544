package repositories

import (
	"context"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
)

// SettingsRepository is the opaque per-user key/value store. Values are
// persisted verbatim; whether an entry is ciphertext is another subsystem's
// concern.
type SettingsRepository interface {
	// GetSetting retrieves one entry. Returns apperrors.ErrNotFound when the
	// key is absent for the user.
	GetSetting(ctx context.Context, userID string, key string) (*domain.Setting, error)

	// PutSetting inserts or replaces an entry.
	PutSetting(ctx context.Context, setting domain.Setting) error
}
