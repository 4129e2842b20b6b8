package handler

import (
	"net/http"

	"github.com/yourorg/market-refresh/internal/service"
	"github.com/yourorg/market-refresh/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunHandler handles run history HTTP requests
type RunHandler struct {
	refreshService *service.RefreshService
	logger         *zap.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(refreshService *service.RefreshService, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		refreshService: refreshService,
		logger:         logger,
	}
}

// ListRuns handles retrieving recent refresh runs, newest first
// GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit := utils.ParseLimit(c, 20, 100) // default limit: 20, max limit: 100

	runs, err := h.refreshService.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list refresh runs", zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to list refresh runs")
		return
	}

	c.JSON(http.StatusOK, runs)
}

// LatestRun handles retrieving the most recently started refresh run
// GET /api/v1/runs/latest
func (h *RunHandler) LatestRun(c *gin.Context) {
	run, err := h.refreshService.LatestRun(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get latest run", zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to get latest run")
		return
	}

	if run == nil {
		utils.SendErrorResponse(c, http.StatusNotFound, "No refresh runs recorded")
		return
	}

	c.JSON(http.StatusOK, run)
}
