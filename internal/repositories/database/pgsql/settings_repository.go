package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	"github.com/TallySync/tally_sync_app/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxSettingsRepository struct {
	db *pgxpool.Pool
}

func NewSettingsRepository(db *pgxpool.Pool) portsrepo.SettingsRepository {
	return &PgxSettingsRepository{db: db}
}

var _ portsrepo.SettingsRepository = (*PgxSettingsRepository)(nil)

func (r *PgxSettingsRepository) GetSetting(ctx context.Context, userID string, key string) (*domain.Setting, error) {
	query := `
        SELECT user_id, key, value, encrypted, updated_at
        FROM settings
        WHERE user_id = $1 AND key = $2;
    `
	var m models.Setting
	err := r.db.QueryRow(ctx, query, userID, key).Scan(&m.UserID, &m.Key, &m.Value, &m.Encrypted, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &domain.Setting{
		UserID:    m.UserID,
		Key:       m.Key,
		Value:     m.Value,
		Encrypted: m.Encrypted,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func (r *PgxSettingsRepository) PutSetting(ctx context.Context, setting domain.Setting) error {
	query := `
        INSERT INTO settings (user_id, key, value, encrypted, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, key)
        DO UPDATE SET value = EXCLUDED.value, encrypted = EXCLUDED.encrypted, updated_at = EXCLUDED.updated_at;
    `
	_, err := r.db.Exec(ctx, query,
		setting.UserID, setting.Key, setting.Value, setting.Encrypted, setting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put setting %s: %w", setting.Key, err)
	}
	return nil
}
