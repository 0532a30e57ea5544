package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/dto"
	"github.com/TallySync/tally_sync_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ruleHandler handles HTTP requests related to autotag rules.
type ruleHandler struct {
	ruleService portssvc.RuleSvcFacade
}

// newRuleHandler creates a new ruleHandler.
func newRuleHandler(rs portssvc.RuleSvcFacade) *ruleHandler {
	return &ruleHandler{
		ruleService: rs,
	}
}

// registerRuleRoutes registers routes related to autotag rules.
func registerRuleRoutes(rg *gin.RouterGroup, ruleService portssvc.RuleSvcFacade) {
	h := newRuleHandler(ruleService)

	rules := rg.Group("/rules")
	{
		rules.POST("", h.createRule)
		rules.GET("", h.listRules)
		rules.GET("/:ruleID", h.getRuleByID)
		rules.PUT("/:ruleID", h.updateRule)
		rules.DELETE("/:ruleID", h.deleteRule)
	}
}

// createRule godoc
// @Summary Create a new autotag rule
// @Description Adds a rule to the caller's rule list. Rules with empty search criteria match every transaction and are rejected unless confirmMatchAll is set.
// @Tags rules
// @Accept  json
// @Produce  json
// @Param   rule body dto.CreateRuleRequest true "Rule definition"
// @Success 201 {object} dto.RuleResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to create rule"
// @Security BearerAuth
// @Router /rules [post]
func (h *ruleHandler) createRule(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateRule", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	creatorUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("Creator user ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("creator_user_id", creatorUserID))
	logger.Info("Received request to create rule", slog.String("rule_name", req.Name))

	createdRule, err := h.ruleService.CreateRule(c.Request.Context(), req, creatorUserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			logger.Warn("Validation error creating rule", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			logger.Error("Failed to create rule in service", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rule"})
		}
		return
	}

	logger.Info("Rule created successfully", slog.String("rule_id", createdRule.RuleID))
	c.JSON(http.StatusCreated, dto.ToRuleResponse(createdRule))
}

// listRules godoc
// @Summary List autotag rules
// @Description Retrieves the caller's rules in insertion order, which is also the order they are evaluated in.
// @Tags rules
// @Produce  json
// @Param   limit query int false "Maximum rules to return" default(100)
// @Param   offset query int false "Number of rules to skip" default(0)
// @Success 200 {array} dto.RuleResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list rules"
// @Security BearerAuth
// @Router /rules [get]
func (h *ruleHandler) listRules(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter"})
		return
	}

	rules, err := h.ruleService.ListRules(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		logger.Error("Failed to list rules", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rules"})
		return
	}

	c.JSON(http.StatusOK, dto.ToListRuleResponse(rules))
}

// getRuleByID godoc
// @Summary Get a rule by ID
// @Description Retrieves one autotag rule, including its match counters.
// @Tags rules
// @Produce  json
// @Param   ruleID path string true "Rule ID"
// @Success 200 {object} dto.RuleResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Rule not found"
// @Failure 500 {object} map[string]string "Failed to retrieve rule"
// @Security BearerAuth
// @Router /rules/{ruleID} [get]
func (h *ruleHandler) getRuleByID(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	ruleID := c.Param("ruleID")

	requesterUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("Requester user ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("rule_id", ruleID))

	rule, err := h.ruleService.GetRuleByID(c.Request.Context(), ruleID, requesterUserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Rule not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		} else {
			logger.Error("Failed to get rule", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve rule"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToRuleResponse(rule))
}

// updateRule godoc
// @Summary Update a rule
// @Description Updates a rule's definition. Omitted fields are left as-is; supplying new search criteria clears any stored criteria decode error.
// @Tags rules
// @Accept  json
// @Produce  json
// @Param   ruleID path string true "Rule ID"
// @Param   rule body dto.UpdateRuleRequest true "Fields to update"
// @Success 200 {object} dto.RuleResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Rule not found"
// @Failure 500 {object} map[string]string "Failed to update rule"
// @Security BearerAuth
// @Router /rules/{ruleID} [put]
func (h *ruleHandler) updateRule(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	ruleID := c.Param("ruleID")

	var req dto.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateRule", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	updaterUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("Updater user ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("rule_id", ruleID), slog.String("updater_user_id", updaterUserID))

	updatedRule, err := h.ruleService.UpdateRule(c.Request.Context(), ruleID, req, updaterUserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Rule not found for update")
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		} else if errors.Is(err, apperrors.ErrValidation) {
			logger.Warn("Validation error updating rule", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			logger.Error("Failed to update rule", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rule"})
		}
		return
	}

	logger.Info("Rule updated successfully")
	c.JSON(http.StatusOK, dto.ToRuleResponse(updatedRule))
}

// deleteRule godoc
// @Summary Delete a rule
// @Description Soft-deletes a rule. Tags and categories the rule already applied are left in place.
// @Tags rules
// @Produce  json
// @Param   ruleID path string true "Rule ID"
// @Success 204 "No Content"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Rule not found"
// @Failure 500 {object} map[string]string "Failed to delete rule"
// @Security BearerAuth
// @Router /rules/{ruleID} [delete]
func (h *ruleHandler) deleteRule(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	ruleID := c.Param("ruleID")

	deleterUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("Deleter user ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("rule_id", ruleID), slog.String("deleter_user_id", deleterUserID))

	if err := h.ruleService.DeleteRule(c.Request.Context(), ruleID, deleterUserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Rule not found for deletion")
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		} else {
			logger.Error("Failed to delete rule", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule"})
		}
		return
	}

	logger.Info("Rule deleted successfully")
	c.Status(http.StatusNoContent)
}
