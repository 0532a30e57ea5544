package pgsql

import (
	"context"
	"fmt"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	"github.com/TallySync/tally_sync_app/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxApiLogRepository struct {
	db *pgxpool.Pool
}

func NewApiLogRepository(db *pgxpool.Pool) portsrepo.ApiLogRepositoryFacade {
	return &PgxApiLogRepository{db: db}
}

var _ portsrepo.ApiLogRepositoryFacade = (*PgxApiLogRepository)(nil)

func (r *PgxApiLogRepository) AppendLog(ctx context.Context, log domain.ApiLog) error {
	query := `
        INSERT INTO api_logs (log_id, endpoint, method, status_code, latency_ms, rate_limited, error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `
	_, err := r.db.Exec(ctx, query,
		log.LogID, log.Endpoint, log.Method, log.StatusCode, log.LatencyMs,
		log.RateLimited, log.Error, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append api log: %w", err)
	}
	return nil
}

func (r *PgxApiLogRepository) FindRecentLogs(ctx context.Context, limit int) ([]domain.ApiLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT log_id, endpoint, method, status_code, latency_ms, rate_limited, error, created_at
        FROM api_logs
        ORDER BY created_at DESC
        LIMIT $1;
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query api logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ApiLog{}
	for rows.Next() {
		var m models.ApiLog
		err := rows.Scan(&m.LogID, &m.Endpoint, &m.Method, &m.StatusCode, &m.LatencyMs, &m.RateLimited, &m.Error, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api log row: %w", err)
		}
		logs = append(logs, domain.ApiLog{
			LogID:       m.LogID,
			Endpoint:    m.Endpoint,
			Method:      m.Method,
			StatusCode:  m.StatusCode,
			LatencyMs:   m.LatencyMs,
			RateLimited: m.RateLimited,
			Error:       m.Error,
			CreatedAt:   m.CreatedAt,
		})
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating api log rows: %w", rows.Err())
	}
	return logs, nil
}
