package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
)

// settingsService implements the SettingsSvcFacade interface
type settingsService struct {
	BaseService
	settingsRepo portsrepo.SettingsRepository
}

// NewSettingsService creates a new settings service with the provided dependencies
func NewSettingsService(settingsRepo portsrepo.SettingsRepository) portssvc.SettingsSvcFacade {
	return &settingsService{settingsRepo: settingsRepo}
}

var _ portssvc.SettingsSvcFacade = (*settingsService)(nil)

func (s *settingsService) GetSetting(ctx context.Context, userID string, key string) (*domain.Setting, error) {
	return s.settingsRepo.GetSetting(ctx, userID, key)
}

func (s *settingsService) PutSetting(ctx context.Context, userID string, key string, value string, encrypted bool) (*domain.Setting, error) {
	setting := domain.Setting{
		UserID:    userID,
		Key:       key,
		Value:     value,
		Encrypted: encrypted,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.settingsRepo.PutSetting(ctx, setting); err != nil {
		s.LogError(ctx, err, "Failed to put setting",
			slog.String("key", key))
		return nil, err
	}
	return &setting, nil
}
