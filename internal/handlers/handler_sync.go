package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/dto"
	"github.com/TallySync/tally_sync_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// syncHandler exposes the outbound sync queue on the operator surface.
type syncHandler struct {
	syncService portssvc.SyncSvcFacade
}

// newSyncHandler creates a new syncHandler.
func newSyncHandler(ss portssvc.SyncSvcFacade) *syncHandler {
	return &syncHandler{
		syncService: ss,
	}
}

// registerSyncRoutes registers routes related to the sync queue.
func registerSyncRoutes(rg *gin.RouterGroup, syncService portssvc.SyncSvcFacade) {
	h := newSyncHandler(syncService)

	sync := rg.Group("/sync")
	{
		sync.GET("/items", h.listSyncItems)
		sync.POST("/items/:itemID/retry", h.retrySyncItem)
		sync.GET("/logs", h.listApiLogs)
	}
}

// listSyncItems godoc
// @Summary List sync queue items
// @Description Retrieves outbound sync queue items newest first, optionally filtered by status or transaction.
// @Tags sync
// @Produce  json
// @Param   status query string false "Item status filter" Enums(pending, processing, completed, failed)
// @Param   transactionID query string false "Transaction ID filter"
// @Param   limit query int false "Page size" default(20) minimum(1) maximum(200)
// @Param   offset query int false "Number of items to skip" default(0)
// @Success 200 {array} dto.SyncItemResponse
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list sync items"
// @Security BearerAuth
// @Router /sync/items [get]
func (h *syncHandler) listSyncItems(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ListSyncItemsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for ListSyncItems", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	filter := portsrepo.ListSyncItemsFilter{
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	if params.Status != "" {
		status := domain.SyncItemStatus(params.Status)
		filter.Status = &status
	}
	if params.TransactionID != "" {
		filter.TransactionID = &params.TransactionID
	}

	items, err := h.syncService.ListItems(c.Request.Context(), filter)
	if err != nil {
		logger.Error("Failed to list sync items", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sync items"})
		return
	}

	c.JSON(http.StatusOK, dto.ToListSyncItemResponse(items))
}

// listApiLogs godoc
// @Summary List recent bank API calls
// @Description Retrieves the latest outbound bank call records, newest first, for diagnosing push failures and rate limiting.
// @Tags sync
// @Produce  json
// @Param   limit query int false "Maximum records to return" default(50)
// @Success 200 {array} dto.ApiLogResponse
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list api logs"
// @Security BearerAuth
// @Router /sync/logs [get]
func (h *syncHandler) listApiLogs(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	logs, err := h.syncService.ListRecentApiLogs(c.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to list api logs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list api logs"})
		return
	}

	c.JSON(http.StatusOK, dto.ToListApiLogResponse(logs))
}

// retrySyncItem godoc
// @Summary Retry a failed sync item
// @Description Returns a terminally failed queue item to pending with a fresh attempt budget.
// @Tags sync
// @Produce  json
// @Param   itemID path string true "Sync item ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Item is not in the failed state"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Item not found"
// @Failure 500 {object} map[string]string "Failed to retry sync item"
// @Security BearerAuth
// @Router /sync/items/{itemID}/retry [post]
func (h *syncHandler) retrySyncItem(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	itemID := c.Param("itemID")
	logger = logger.With(slog.String("item_id", itemID))

	if err := h.syncService.RetryFailedItem(c.Request.Context(), itemID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Sync item not found for retry")
			c.JSON(http.StatusNotFound, gin.H{"error": "Sync item not found"})
		} else if errors.Is(err, apperrors.ErrValidation) {
			logger.Warn("Sync item not retryable", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			logger.Error("Failed to retry sync item", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retry sync item"})
		}
		return
	}

	logger.Info("Sync item returned to pending")
	c.Status(http.StatusNoContent)
}
