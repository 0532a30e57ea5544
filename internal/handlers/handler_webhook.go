package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/dto"
	"github.com/TallySync/tally_sync_app/internal/middleware"
	"github.com/TallySync/tally_sync_app/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// webhookHandler handles inbound bank webhook deliveries.
type webhookHandler struct {
	ingestService portssvc.IngestSvcFacade
}

// newWebhookHandler creates a new webhookHandler.
func newWebhookHandler(is portssvc.IngestSvcFacade) *webhookHandler {
	return &webhookHandler{
		ingestService: is,
	}
}

// registerWebhookRoutes registers the public webhook ingestion route. The
// route is rate limited per client IP and the body is authenticated against
// the shared webhook secret before any handler code runs.
func registerWebhookRoutes(r *gin.Engine, cfg *config.Config, ingestService portssvc.IngestSvcFacade) {
	h := newWebhookHandler(ingestService)

	rate, err := limiter.NewRateFromFormatted(cfg.WebhookRateLimit)
	if err != nil {
		rate, _ = limiter.NewRateFromFormatted("120-M")
	}
	ipLimiter := limiter.New(memory.NewStore(), rate)

	webhooks := r.Group("/webhooks",
		middleware.RateLimit(ipLimiter),
		middleware.VerifyWebhookSignature(cfg.WebhookSecret),
	)
	{
		webhooks.POST("/bank", h.receiveBankWebhook)
	}
}

// receiveBankWebhook godoc
// @Summary Receive a bank webhook delivery
// @Description Accepts a transaction event notification from the bank. Deliveries that parse but fail downstream processing are still acknowledged with 200 so the bank does not storm redeliveries; only structurally invalid bodies get a 400.
// @Tags webhooks
// @Accept  json
// @Produce  json
// @Param   delivery body dto.WebhookDelivery true "Webhook delivery payload"
// @Success 200 {object} dto.WebhookIngestResult
// @Failure 400 {object} map[string]string "Invalid payload"
// @Failure 401 {object} map[string]string "Invalid webhook signature"
// @Failure 429 {object} map[string]string "Rate limited"
// @Router /webhooks/bank [post]
func (h *webhookHandler) receiveBankWebhook(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	// The raw body is kept verbatim on the stored event for the audit trail,
	// so it is read once here and the reader restored for binding.
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.Warn("Failed to read webhook body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read request body"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var delivery dto.WebhookDelivery
	if err := c.ShouldBindJSON(&delivery); err != nil {
		logger.Warn("Failed to bind JSON for webhook delivery", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	delivery.Raw = json.RawMessage(body)

	logger.Info("Received bank webhook", slog.String("event_type", delivery.EventType))

	result, err := h.ingestService.Ingest(c.Request.Context(), delivery)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			logger.Warn("Webhook delivery failed validation", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			logger.Error("Failed to ingest webhook delivery", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest webhook delivery"})
		}
		return
	}

	if result.Duplicate {
		logger.Info("Webhook delivery was a duplicate", slog.String("event_id", result.EventID))
	}
	c.JSON(http.StatusOK, result)
}
