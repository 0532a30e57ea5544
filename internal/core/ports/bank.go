package ports

import (
	"context"
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// BankTransactionSnapshot is the authoritative remote view of one
// transaction, as returned by the bank API.
type BankTransactionSnapshot struct {
	ExternalID  string
	Description string
	Amount      decimal.Decimal
	Settlement  domain.SettlementStatus
	Category    *string
	Tags        []string
	OccurredAt  time.Time
}

// BankAPIClient is the external collaborator contract for the bank
// transaction API. Implementations classify failures via the apperrors
// taxonomy: rate limiting and 5xx/network failures wrap ErrTransient (rate
// limiting additionally matches ErrRateLimited), other 4xx wrap ErrPermanent.
// Every call, success or failure, is recorded as an ApiLog row.
type BankAPIClient interface {
	// PushFieldUpdate pushes a locally-made category/tag edit upstream.
	PushFieldUpdate(ctx context.Context, externalID string, field domain.SyncField, category *string, tags []string) error

	// FetchTransaction retrieves the authoritative remote snapshot.
	FetchTransaction(ctx context.Context, externalID string) (*BankTransactionSnapshot, error)
}
