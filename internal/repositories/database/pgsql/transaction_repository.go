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

// psql builds queries with Postgres-style $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PgxTransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) portsrepo.TransactionRepositoryFacade {
	return &PgxTransactionRepository{db: db}
}

// Ensure PgxTransactionRepository implements the facade.
var _ portsrepo.TransactionRepositoryFacade = (*PgxTransactionRepository)(nil)

const transactionColumns = `transaction_id, external_id, account_id, amount, description, occurred_at,
	category, tags, settlement, raw_payload, sync_status, source, processed, tombstoned,
	last_pushed_category, last_pushed_tags, created_at, created_by, last_updated_at, last_updated_by`

// Helper to convert domain.Transaction to models.Transaction.
func toModelTransaction(d domain.Transaction) models.Transaction {
	return models.Transaction{
		TransactionID:      d.TransactionID,
		ExternalID:         d.ExternalID,
		AccountID:          d.AccountID,
		Amount:             d.Amount,
		Description:        d.Description,
		OccurredAt:         d.OccurredAt,
		Category:           d.Category,
		Tags:               d.Tags,
		Settlement:         string(d.Settlement),
		RawPayload:         []byte(d.RawPayload),
		SyncStatus:         string(d.SyncStatus),
		Source:             string(d.Source),
		Processed:          d.Processed,
		Tombstoned:         d.Tombstoned,
		LastPushedCategory: d.LastPushedCategory,
		LastPushedTags:     d.LastPushedTags,
		AuditFields: models.AuditFields{
			CreatedAt:     d.CreatedAt,
			CreatedBy:     d.CreatedBy,
			LastUpdatedAt: d.LastUpdatedAt,
			LastUpdatedBy: d.LastUpdatedBy,
		},
	}
}

// Helper to convert models.Transaction to domain.Transaction.
func toDomainTransaction(m models.Transaction) domain.Transaction {
	return domain.Transaction{
		TransactionID:      m.TransactionID,
		ExternalID:         m.ExternalID,
		AccountID:          m.AccountID,
		Amount:             m.Amount,
		Description:        m.Description,
		OccurredAt:         m.OccurredAt,
		Category:           m.Category,
		Tags:               m.Tags,
		Settlement:         domain.SettlementStatus(m.Settlement),
		RawPayload:         m.RawPayload,
		SyncStatus:         domain.SyncStatus(m.SyncStatus),
		Source:             domain.TransactionSource(m.Source),
		Processed:          m.Processed,
		Tombstoned:         m.Tombstoned,
		LastPushedCategory: m.LastPushedCategory,
		LastPushedTags:     m.LastPushedTags,
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			CreatedBy:     m.CreatedBy,
			LastUpdatedAt: m.LastUpdatedAt,
			LastUpdatedBy: m.LastUpdatedBy,
		},
	}
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var m models.Transaction
	err := row.Scan(
		&m.TransactionID,
		&m.ExternalID,
		&m.AccountID,
		&m.Amount,
		&m.Description,
		&m.OccurredAt,
		&m.Category,
		&m.Tags,
		&m.Settlement,
		&m.RawPayload,
		&m.SyncStatus,
		&m.Source,
		&m.Processed,
		&m.Tombstoned,
		&m.LastPushedCategory,
		&m.LastPushedTags,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction row: %w", err)
	}
	d := toDomainTransaction(m)
	return &d, nil
}

func (r *PgxTransactionRepository) SaveTransaction(ctx context.Context, txn domain.Transaction) error {
	m := toModelTransaction(txn)
	query := `
        INSERT INTO transactions (` + transactionColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20);
    `
	_, err := r.db.Exec(ctx, query,
		m.TransactionID, m.ExternalID, m.AccountID, m.Amount, m.Description, m.OccurredAt,
		m.Category, m.Tags, m.Settlement, m.RawPayload, m.SyncStatus, m.Source, m.Processed, m.Tombstoned,
		m.LastPushedCategory, m.LastPushedTags, m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction with external id already exists: %w", apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (r *PgxTransactionRepository) UpdateTransaction(ctx context.Context, txn domain.Transaction) error {
	m := toModelTransaction(txn)
	query := `
        UPDATE transactions
        SET amount = $1, description = $2, occurred_at = $3, category = $4, tags = $5,
            settlement = $6, raw_payload = $7, sync_status = $8, processed = $9, tombstoned = $10,
            last_pushed_category = $11, last_pushed_tags = $12, last_updated_at = $13, last_updated_by = $14
        WHERE transaction_id = $15;
    `
	cmdTag, err := r.db.Exec(ctx, query,
		m.Amount, m.Description, m.OccurredAt, m.Category, m.Tags,
		m.Settlement, m.RawPayload, m.SyncStatus, m.Processed, m.Tombstoned,
		m.LastPushedCategory, m.LastPushedTags, m.LastUpdatedAt, m.LastUpdatedBy,
		m.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxTransactionRepository) UpdateSyncStatus(ctx context.Context, transactionID string, status domain.SyncStatus, updatedBy string) error {
	query := `
        UPDATE transactions
        SET sync_status = $1, last_updated_at = $2, last_updated_by = $3
        WHERE transaction_id = $4;
    `
	cmdTag, err := r.db.Exec(ctx, query, string(status), time.Now(), updatedBy, transactionID)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxTransactionRepository) RecordPushedValues(ctx context.Context, transactionID string, category *string, tags []string, markSynced bool, updatedBy string) error {
	query := `
        UPDATE transactions
        SET sync_status = CASE WHEN $1 THEN $2 ELSE sync_status END,
            last_pushed_category = $3, last_pushed_tags = $4,
            last_updated_at = $5, last_updated_by = $6
        WHERE transaction_id = $7;
    `
	cmdTag, err := r.db.Exec(ctx, query, markSynced, string(domain.SyncSynced), category, tags, time.Now(), updatedBy, transactionID)
	if err != nil {
		return fmt.Errorf("failed to record pushed values: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxTransactionRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1;`
	txn, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by ID %s: %w", transactionID, err)
	}
	return txn, nil
}

func (r *PgxTransactionRepository) FindTransactionByExternalID(ctx context.Context, externalID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE external_id = $1;`
	txn, err := scanTransaction(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by external ID %s: %w", externalID, err)
	}
	return txn, nil
}

func (r *PgxTransactionRepository) FindTransactions(ctx context.Context, filter portsrepo.ListTransactionsFilter) ([]domain.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	builder := psql.Select(transactionColumns).
		From("transactions").
		OrderBy("created_at DESC", "transaction_id DESC").
		Limit(uint64(limit))

	if filter.SyncStatus != nil {
		builder = builder.Where(sq.Eq{"sync_status": string(*filter.SyncStatus)})
	}
	if filter.AccountID != nil {
		builder = builder.Where(sq.Eq{"account_id": *filter.AccountID})
	}
	if filter.Settlement != nil {
		builder = builder.Where(sq.Eq{"settlement": string(*filter.Settlement)})
	}
	if filter.Processed != nil {
		builder = builder.Where(sq.Eq{"processed": *filter.Processed})
	}
	if filter.AfterCreatedAt != nil && filter.AfterID != nil {
		// Cursor: strictly older rows in (created_at, transaction_id) order.
		builder = builder.Where(
			sq.Or{
				sq.Lt{"created_at": *filter.AfterCreatedAt},
				sq.And{sq.Eq{"created_at": *filter.AfterCreatedAt}, sq.Lt{"transaction_id": *filter.AfterID}},
			},
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *PgxTransactionRepository) FindTransactionsForReconciliation(ctx context.Context, statuses []domain.SyncStatus, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	statusStrs := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrs[i] = string(s)
	}

	query := `
        SELECT ` + transactionColumns + `
        FROM transactions
        WHERE source = 'bank' AND external_id IS NOT NULL AND NOT tombstoned
          AND sync_status = ANY($1)
        ORDER BY last_updated_at ASC
        LIMIT $2;
    `
	rows, err := r.db.Query(ctx, query, statusStrs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for reconciliation: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	txns := []domain.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", rows.Err())
	}
	return txns, nil
}
