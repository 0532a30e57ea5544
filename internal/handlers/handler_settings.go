package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/dto"
	"github.com/TallySync/tally_sync_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// settingsHandler handles HTTP requests for the per-user settings store.
type settingsHandler struct {
	settingsService portssvc.SettingsSvcFacade
}

// newSettingsHandler creates a new settingsHandler.
func newSettingsHandler(ss portssvc.SettingsSvcFacade) *settingsHandler {
	return &settingsHandler{
		settingsService: ss,
	}
}

// registerSettingsRoutes registers routes related to settings.
func registerSettingsRoutes(rg *gin.RouterGroup, settingsService portssvc.SettingsSvcFacade) {
	h := newSettingsHandler(settingsService)

	settings := rg.Group("/settings")
	{
		settings.GET("/:key", h.getSetting)
		settings.PUT("/:key", h.putSetting)
	}
}

// getSetting godoc
// @Summary Get a settings entry
// @Description Retrieves one opaque settings value for the caller.
// @Tags settings
// @Produce  json
// @Param   key path string true "Setting key"
// @Success 200 {object} dto.SettingResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Setting not found"
// @Failure 500 {object} map[string]string "Failed to retrieve setting"
// @Security BearerAuth
// @Router /settings/{key} [get]
func (h *settingsHandler) getSetting(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	key := c.Param("key")

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	setting, err := h.settingsService.GetSetting(c.Request.Context(), userID, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Setting not found"})
		} else {
			logger.Error("Failed to get setting", slog.String("key", key), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve setting"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToSettingResponse(setting))
}

// putSetting godoc
// @Summary Write a settings entry
// @Description Creates or replaces one opaque settings value for the caller.
// @Tags settings
// @Accept  json
// @Produce  json
// @Param   key path string true "Setting key"
// @Param   setting body dto.PutSettingRequest true "Setting value"
// @Success 200 {object} dto.SettingResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to store setting"
// @Security BearerAuth
// @Router /settings/{key} [put]
func (h *settingsHandler) putSetting(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	key := c.Param("key")

	var req dto.PutSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for PutSetting", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	setting, err := h.settingsService.PutSetting(c.Request.Context(), userID, key, req.Value, req.Encrypted)
	if err != nil {
		logger.Error("Failed to put setting", slog.String("key", key), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store setting"})
		return
	}

	logger.Info("Setting stored", slog.String("key", key))
	c.JSON(http.StatusOK, dto.ToSettingResponse(setting))
}
