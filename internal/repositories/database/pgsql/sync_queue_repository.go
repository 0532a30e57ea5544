package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	"github.com/TallySync/tally_sync_app/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxSyncQueueRepository struct {
	db *pgxpool.Pool
}

func NewSyncQueueRepository(db *pgxpool.Pool) portsrepo.SyncQueueRepositoryFacade {
	return &PgxSyncQueueRepository{db: db}
}

var _ portsrepo.SyncQueueRepositoryFacade = (*PgxSyncQueueRepository)(nil)

const syncQueueColumns = `item_id, transaction_id, field, category, tags, attempts, status,
	last_attempt_at, next_attempt_at, lease_expires_at, last_error, created_at, updated_at`

func toDomainSyncQueueItem(m models.SyncQueueItem) domain.SyncQueueItem {
	return domain.SyncQueueItem{
		ItemID:         m.ItemID,
		TransactionID:  m.TransactionID,
		Field:          domain.SyncField(m.Field),
		Category:       m.Category,
		Tags:           m.Tags,
		Attempts:       m.Attempts,
		Status:         domain.SyncItemStatus(m.Status),
		LastAttemptAt:  m.LastAttemptAt,
		NextAttemptAt:  m.NextAttemptAt,
		LeaseExpiresAt: m.LeaseExpiresAt,
		LastError:      m.LastError,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func scanSyncQueueItem(row pgx.Row) (*domain.SyncQueueItem, error) {
	var m models.SyncQueueItem
	err := row.Scan(
		&m.ItemID,
		&m.TransactionID,
		&m.Field,
		&m.Category,
		&m.Tags,
		&m.Attempts,
		&m.Status,
		&m.LastAttemptAt,
		&m.NextAttemptAt,
		&m.LeaseExpiresAt,
		&m.LastError,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan sync queue item row: %w", err)
	}
	d := toDomainSyncQueueItem(m)
	return &d, nil
}

// EnqueueOrCoalesce first tries to fold the new value into an unclaimed
// pending item for the same (transaction, field) key. The superseded value was
// never pushed, so replacing it in place keeps one outbound write per key
// instead of a backlog of stale intermediates. Only when no pending item
// exists is a new row inserted.
func (r *PgxSyncQueueRepository) EnqueueOrCoalesce(ctx context.Context, item domain.SyncQueueItem) (*domain.SyncQueueItem, error) {
	coalesce := `
        UPDATE sync_queue_items
        SET category = $1, tags = $2, updated_at = $3
        WHERE item_id = (
            SELECT item_id FROM sync_queue_items
            WHERE transaction_id = $4 AND field = $5 AND status = 'pending'
            ORDER BY created_at DESC, item_id DESC
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING ` + syncQueueColumns + `;
    `
	existing, err := scanSyncQueueItem(r.db.QueryRow(ctx, coalesce,
		item.Category, item.Tags, item.UpdatedAt, item.TransactionID, string(item.Field),
	))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to coalesce sync queue item: %w", err)
	}

	insert := `
        INSERT INTO sync_queue_items (` + syncQueueColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
    `
	_, err = r.db.Exec(ctx, insert,
		item.ItemID, item.TransactionID, string(item.Field), item.Category, item.Tags,
		item.Attempts, string(item.Status), item.LastAttemptAt, item.NextAttemptAt,
		item.LeaseExpiresAt, item.LastError, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue sync queue item: %w", err)
	}
	return &item, nil
}

// ClaimNextPending claims the oldest due pending item whose key has no
// processing sibling and no earlier pending sibling, so items for one
// (transaction, field) key complete strictly in creation order while distinct
// keys proceed in parallel. SKIP LOCKED keeps concurrent workers from
// contending over the same candidate. The claim stamps the attempt, so the
// returned item's Attempts already counts the attempt the caller is about to
// make.
func (r *PgxSyncQueueRepository) ClaimNextPending(ctx context.Context, now time.Time, lease time.Duration) (*domain.SyncQueueItem, error) {
	query := `
        WITH next AS (
            SELECT q.item_id
            FROM sync_queue_items q
            WHERE q.status = 'pending'
              AND q.next_attempt_at <= $1
              AND NOT EXISTS (
                  SELECT 1 FROM sync_queue_items p
                  WHERE p.transaction_id = q.transaction_id
                    AND p.field = q.field
                    AND p.status = 'processing'
              )
              AND NOT EXISTS (
                  SELECT 1 FROM sync_queue_items e
                  WHERE e.transaction_id = q.transaction_id
                    AND e.field = q.field
                    AND e.status = 'pending'
                    AND (e.created_at < q.created_at
                         OR (e.created_at = q.created_at AND e.item_id < q.item_id))
              )
            ORDER BY q.next_attempt_at ASC, q.created_at ASC, q.item_id ASC
            LIMIT 1
            FOR UPDATE OF q SKIP LOCKED
        )
        UPDATE sync_queue_items s
        SET status = 'processing',
            attempts = s.attempts + 1,
            last_attempt_at = $1,
            lease_expires_at = $2,
            updated_at = $1
        FROM next
        WHERE s.item_id = next.item_id
        RETURNING ` + prefixedSyncQueueColumns("s") + `;
    `
	item, err := scanSyncQueueItem(r.db.QueryRow(ctx, query, now, now.Add(lease)))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to claim sync queue item: %w", err)
	}
	return item, nil
}

func prefixedSyncQueueColumns(alias string) string {
	return alias + `.item_id, ` + alias + `.transaction_id, ` + alias + `.field, ` +
		alias + `.category, ` + alias + `.tags, ` + alias + `.attempts, ` + alias + `.status, ` +
		alias + `.last_attempt_at, ` + alias + `.next_attempt_at, ` + alias + `.lease_expires_at, ` +
		alias + `.last_error, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func (r *PgxSyncQueueRepository) MarkCompleted(ctx context.Context, itemID string, at time.Time) error {
	query := `
        UPDATE sync_queue_items
        SET status = 'completed', lease_expires_at = NULL, last_error = NULL, updated_at = $1
        WHERE item_id = $2 AND status = 'processing';
    `
	return r.execQueueTransition(ctx, query, at, itemID)
}

func (r *PgxSyncQueueRepository) MarkFailed(ctx context.Context, itemID string, lastError string, at time.Time) error {
	query := `
        UPDATE sync_queue_items
        SET status = 'failed', lease_expires_at = NULL, last_error = $1, updated_at = $2
        WHERE item_id = $3 AND status = 'processing';
    `
	return r.execQueueTransition(ctx, query, lastError, at, itemID)
}

func (r *PgxSyncQueueRepository) Requeue(ctx context.Context, itemID string, attempts int, lastError string, nextAttemptAt time.Time) error {
	query := `
        UPDATE sync_queue_items
        SET status = 'pending', attempts = $1, last_error = $2, next_attempt_at = $3,
            lease_expires_at = NULL, updated_at = now()
        WHERE item_id = $4 AND status = 'processing';
    `
	return r.execQueueTransition(ctx, query, attempts, lastError, nextAttemptAt, itemID)
}

func (r *PgxSyncQueueRepository) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
        UPDATE sync_queue_items
        SET status = 'pending', lease_expires_at = NULL, updated_at = $1
        WHERE status = 'processing' AND lease_expires_at IS NOT NULL AND lease_expires_at <= $1;
    `
	cmdTag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim expired sync queue leases: %w", err)
	}
	return int(cmdTag.RowsAffected()), nil
}

func (r *PgxSyncQueueRepository) RequeueFailed(ctx context.Context, itemID string, at time.Time) error {
	query := `
        UPDATE sync_queue_items
        SET status = 'pending', attempts = 0, last_error = NULL, next_attempt_at = $1,
            lease_expires_at = NULL, updated_at = $1
        WHERE item_id = $2 AND status = 'failed';
    `
	return r.execQueueTransition(ctx, query, at, itemID)
}

func (r *PgxSyncQueueRepository) execQueueTransition(ctx context.Context, query string, args ...any) error {
	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition sync queue item: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("sync queue item not in the expected state: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxSyncQueueRepository) FindItemByID(ctx context.Context, itemID string) (*domain.SyncQueueItem, error) {
	query := `SELECT ` + syncQueueColumns + ` FROM sync_queue_items WHERE item_id = $1;`
	item, err := scanSyncQueueItem(r.db.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find sync queue item by ID %s: %w", itemID, err)
	}
	return item, nil
}

func (r *PgxSyncQueueRepository) FindItems(ctx context.Context, filter portsrepo.ListSyncItemsFilter) ([]domain.SyncQueueItem, error) {
	builder := psql.Select(syncQueueColumns).
		From("sync_queue_items").
		OrderBy("created_at DESC", "item_id DESC")

	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.TransactionID != nil {
		builder = builder.Where(sq.Eq{"transaction_id": *filter.TransactionID})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	builder = builder.Limit(uint64(limit))
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sync queue list query: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue items: %w", err)
	}
	defer rows.Close()

	items := []domain.SyncQueueItem{}
	for rows.Next() {
		item, err := scanSyncQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating sync queue item rows: %w", rows.Err())
	}
	return items, nil
}

func (r *PgxSyncQueueRepository) HasOutstandingItems(ctx context.Context, transactionID string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM sync_queue_items
            WHERE transaction_id = $1 AND status IN ($2, $3)
        );
    `
	var outstanding bool
	err := r.db.QueryRow(ctx, query, transactionID,
		string(domain.SyncItemPending), string(domain.SyncItemProcessing)).Scan(&outstanding)
	if err != nil {
		return false, fmt.Errorf("failed to check outstanding sync items: %w", err)
	}
	return outstanding, nil
}
