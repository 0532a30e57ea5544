package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/dto"
	"github.com/TallySync/tally_sync_app/internal/utils/keymutex"
	"github.com/google/uuid"
)

// systemUserID stamps audit fields for mutations nobody asked for directly.
const systemUserID = "system"

// maxEventRetries caps how many failed handling attempts keep an event in the
// replay sweep. Past the cap the event stays in the audit log, flagged by its
// last error, but no longer occupies the sweep window.
const maxEventRetries = 10

// ingestService implements the IngestSvcFacade interface
type ingestService struct {
	BaseService
	webhookRepo portsrepo.WebhookEventRepositoryFacade
	txnRepo     portsrepo.TransactionRepositoryFacade
	evaluator   portssvc.RuleEvaluatorSvc
	txnLocks    *keymutex.KeyMutex
}

// NewIngestService creates a new ingestion service with the provided
// dependencies. txnLocks must be the same instance the rule evaluator uses so
// ingestion and evaluation for one transaction serialize on one stripe set.
func NewIngestService(
	webhookRepo portsrepo.WebhookEventRepositoryFacade,
	txnRepo portsrepo.TransactionRepositoryFacade,
	evaluator portssvc.RuleEvaluatorSvc,
	txnLocks *keymutex.KeyMutex,
) portssvc.IngestSvcFacade {
	return &ingestService{
		webhookRepo: webhookRepo,
		txnRepo:     txnRepo,
		evaluator:   evaluator,
		txnLocks:    txnLocks,
	}
}

var _ portssvc.IngestSvcFacade = (*ingestService)(nil)

// Ingest records the delivery as a webhook event and handles it. Redelivery
// of a bank event id that was already recorded resolves to the original event
// without reprocessing. Handling failures are recorded on the event and the
// delivery is still acknowledged; returning an error here would only make the
// bank redeliver a payload that will fail the same way.
func (s *ingestService) Ingest(ctx context.Context, delivery dto.WebhookDelivery) (*dto.WebhookIngestResult, error) {
	eventType := domain.WebhookEventType(delivery.EventType)

	event := domain.WebhookEvent{
		EventID:           uuid.NewString(),
		EventType:         eventType,
		BankEventID:       delivery.BankEventID,
		BankTransactionID: delivery.BankTransactionID,
		Payload:           delivery.Raw,
		ReceivedAt:        time.Now().UTC(),
	}

	saved, err := s.webhookRepo.SaveEvent(ctx, event)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			s.LogInfo(ctx, "Duplicate webhook delivery acknowledged",
				slog.String("event_id", saved.EventID),
				slog.String("bank_event_id", derefOr(saved.BankEventID, "")))
			return &dto.WebhookIngestResult{
				EventID:       saved.EventID,
				Duplicate:     true,
				TransactionID: saved.TransactionID,
				Processed:     saved.Processed,
			}, nil
		}
		s.LogError(ctx, err, "Failed to persist webhook event")
		return nil, fmt.Errorf("failed to persist webhook event: %w", err)
	}

	result := &dto.WebhookIngestResult{EventID: saved.EventID}

	txnID, handleErr := s.handleEvent(ctx, saved, delivery)
	if handleErr != nil {
		s.LogWarn(ctx, "Webhook handling failed, recorded for retry",
			slog.String("event_id", saved.EventID),
			slog.String("event_type", delivery.EventType),
			slog.String("error", handleErr.Error()))
		if recErr := s.webhookRepo.RecordEventError(ctx, saved.EventID, handleErr.Error()); recErr != nil {
			s.LogError(ctx, recErr, "Failed to record webhook handling error",
				slog.String("event_id", saved.EventID))
		}
		return result, nil
	}

	now := time.Now().UTC()
	if err := s.webhookRepo.MarkEventProcessed(ctx, saved.EventID, txnID, now); err != nil {
		s.LogError(ctx, err, "Failed to mark webhook event processed",
			slog.String("event_id", saved.EventID))
		return result, nil
	}
	result.Processed = true
	result.TransactionID = txnID
	return result, nil
}

// handleEvent dispatches one recorded event by type and returns the
// transaction it resolved to, if any.
func (s *ingestService) handleEvent(ctx context.Context, event *domain.WebhookEvent, delivery dto.WebhookDelivery) (*string, error) {
	switch event.EventType {
	case domain.EventPing:
		return nil, nil
	case domain.EventCreated, domain.EventSettled:
		return s.upsertFromDelivery(ctx, delivery)
	case domain.EventDeleted:
		return s.tombstoneFromDelivery(ctx, delivery)
	default:
		return nil, fmt.Errorf("unknown event type %q", event.EventType)
	}
}

// upsertFromDelivery creates or refreshes the transaction row for a
// created/settled event. The external id is the idempotency key: an existing
// row is updated in place, only on its bank-owned fields. New bank
// transactions are handed to the rule engine once, under the same key lock.
func (s *ingestService) upsertFromDelivery(ctx context.Context, delivery dto.WebhookDelivery) (*string, error) {
	if delivery.BankTransactionID == nil || *delivery.BankTransactionID == "" {
		return nil, fmt.Errorf("transaction event without a bank transaction id: %w", apperrors.ErrValidation)
	}
	if delivery.Amount == nil {
		return nil, fmt.Errorf("transaction event without an amount: %w", apperrors.ErrValidation)
	}
	externalID := *delivery.BankTransactionID

	s.txnLocks.Lock(externalID)
	defer s.txnLocks.Unlock(externalID)

	now := time.Now().UTC()
	existing, err := s.txnRepo.FindTransactionByExternalID(ctx, externalID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up transaction %s: %w", externalID, err)
	}

	if existing != nil {
		existing.Amount = *delivery.Amount
		existing.Settlement = settlementFromDelivery(delivery)
		if delivery.Description != "" {
			existing.Description = delivery.Description
		}
		if delivery.OccurredAt != nil {
			existing.OccurredAt = *delivery.OccurredAt
		}
		if len(delivery.Raw) > 0 {
			existing.RawPayload = delivery.Raw
		}
		existing.LastUpdatedAt = now
		existing.LastUpdatedBy = systemUserID
		if err := s.txnRepo.UpdateTransaction(ctx, *existing); err != nil {
			return nil, fmt.Errorf("failed to refresh transaction %s: %w", existing.TransactionID, err)
		}
		txnID := existing.TransactionID
		if !existing.Processed {
			s.evaluateOutsideLock(ctx, txnID, externalID)
		}
		return &txnID, nil
	}

	txn := domain.Transaction{
		TransactionID: uuid.NewString(),
		ExternalID:    &externalID,
		AccountID:     delivery.AccountID,
		Amount:        *delivery.Amount,
		Description:   delivery.Description,
		OccurredAt:    now,
		Settlement:    settlementFromDelivery(delivery),
		RawPayload:    delivery.Raw,
		SyncStatus:    domain.SyncSynced,
		Source:        domain.SourceBank,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     systemUserID,
			LastUpdatedAt: now,
			LastUpdatedBy: systemUserID,
		},
	}
	if delivery.OccurredAt != nil {
		txn.OccurredAt = *delivery.OccurredAt
	}

	if err := s.txnRepo.SaveTransaction(ctx, txn); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			// Raced with an insert from another process for the same
			// external id; resolve to the winning row.
			winner, findErr := s.txnRepo.FindTransactionByExternalID(ctx, externalID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to resolve concurrent insert for %s: %w", externalID, findErr)
			}
			return &winner.TransactionID, nil
		}
		return nil, fmt.Errorf("failed to save transaction %s: %w", externalID, err)
	}

	s.LogInfo(ctx, "Transaction ingested",
		slog.String("transaction_id", txn.TransactionID),
		slog.String("external_id", externalID))

	s.evaluateOutsideLock(ctx, txn.TransactionID, externalID)
	return &txn.TransactionID, nil
}

// evaluateOutsideLock runs the rule engine for the transaction after
// releasing this stripe, since the evaluator takes the same lock. An
// evaluation failure does not fail ingestion; the transaction stays
// unprocessed and a later event or sweep will retry it.
func (s *ingestService) evaluateOutsideLock(ctx context.Context, transactionID string, externalID string) {
	s.txnLocks.Unlock(externalID)
	defer s.txnLocks.Lock(externalID)

	if _, err := s.evaluator.EvaluateTransaction(ctx, transactionID); err != nil {
		s.LogError(ctx, err, "Rule evaluation failed after ingest",
			slog.String("transaction_id", transactionID))
	}
}

func (s *ingestService) tombstoneFromDelivery(ctx context.Context, delivery dto.WebhookDelivery) (*string, error) {
	if delivery.BankTransactionID == nil || *delivery.BankTransactionID == "" {
		return nil, fmt.Errorf("deleted event without a bank transaction id: %w", apperrors.ErrValidation)
	}
	externalID := *delivery.BankTransactionID

	s.txnLocks.Lock(externalID)
	defer s.txnLocks.Unlock(externalID)

	txn, err := s.txnRepo.FindTransactionByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Deletion of a transaction never ingested is a no-op, not a failure.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up transaction %s: %w", externalID, err)
	}
	if txn.Tombstoned {
		return &txn.TransactionID, nil
	}

	now := time.Now().UTC()
	txn.Tombstoned = true
	txn.LastUpdatedAt = now
	txn.LastUpdatedBy = systemUserID
	if err := s.txnRepo.UpdateTransaction(ctx, *txn); err != nil {
		return nil, fmt.Errorf("failed to tombstone transaction %s: %w", txn.TransactionID, err)
	}

	s.LogInfo(ctx, "Transaction tombstoned",
		slog.String("transaction_id", txn.TransactionID),
		slog.String("external_id", externalID))
	return &txn.TransactionID, nil
}

// RetryUnprocessed replays handling for events whose processing previously
// failed, oldest first, skipping events past the retry cap. Reports how many
// events were handled successfully.
func (s *ingestService) RetryUnprocessed(ctx context.Context, limit int) (int, error) {
	events, err := s.webhookRepo.FindUnprocessedEvents(ctx, limit, maxEventRetries)
	if err != nil {
		s.LogError(ctx, err, "Failed to list unprocessed webhook events")
		return 0, fmt.Errorf("failed to list unprocessed webhook events: %w", err)
	}

	handled := 0
	for i := range events {
		event := events[i]
		var delivery dto.WebhookDelivery
		if err := json.Unmarshal(event.Payload, &delivery); err != nil {
			s.LogWarn(ctx, "Stored webhook payload no longer decodes, skipping",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()))
			continue
		}
		delivery.Raw = event.Payload

		txnID, handleErr := s.handleEvent(ctx, &event, delivery)
		if handleErr != nil {
			if recErr := s.webhookRepo.RecordEventError(ctx, event.EventID, handleErr.Error()); recErr != nil {
				s.LogError(ctx, recErr, "Failed to record webhook handling error",
					slog.String("event_id", event.EventID))
			}
			continue
		}
		if err := s.webhookRepo.MarkEventProcessed(ctx, event.EventID, txnID, time.Now().UTC()); err != nil {
			s.LogError(ctx, err, "Failed to mark webhook event processed",
				slog.String("event_id", event.EventID))
			continue
		}
		handled++
	}
	return handled, nil
}

func settlementFromDelivery(delivery dto.WebhookDelivery) domain.SettlementStatus {
	if delivery.Status == string(domain.SettlementSettled) ||
		domain.WebhookEventType(delivery.EventType) == domain.EventSettled {
		return domain.SettlementSettled
	}
	return domain.SettlementHeld
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
