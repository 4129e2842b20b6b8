package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/yourorg/market-refresh/internal/model"
	"github.com/yourorg/market-refresh/internal/repository"
	"github.com/yourorg/market-refresh/internal/service"
	"github.com/yourorg/market-refresh/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RefreshHandler handles refresh trigger HTTP requests
type RefreshHandler struct {
	refreshService *service.RefreshService
	listingService *service.ListingService
	logger         *zap.Logger
}

// NewRefreshHandler creates a new refresh handler
func NewRefreshHandler(refreshService *service.RefreshService, listingService *service.ListingService, logger *zap.Logger) *RefreshHandler {
	return &RefreshHandler{
		refreshService: refreshService,
		listingService: listingService,
		logger:         logger,
	}
}

// RefreshPrices handles triggering a price refresh run. An empty body or
// empty symbol list refreshes the whole catalog.
// POST /api/v1/refresh/prices
func (h *RefreshHandler) RefreshPrices(c *gin.Context) {
	var request model.RefreshPricesRequest
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if request.Async {
		if err := h.refreshService.RefreshPricesAsync(request.Symbols, model.RunTriggerManual); err != nil {
			if errors.Is(err, service.ErrRunInProgress) {
				utils.SendErrorResponse(c, http.StatusConflict, "A refresh run is already in progress")
				return
			}
			h.logger.Error("Failed to start price refresh", zap.Error(err))
			utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to start price refresh")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Price refresh started"})
		return
	}

	summary, err := h.refreshService.RefreshPrices(c.Request.Context(), request.Symbols, model.RunTriggerManual)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRunInProgress):
			utils.SendErrorResponse(c, http.StatusConflict, "A refresh run is already in progress")
		case errors.Is(err, repository.ErrSnapshotUnavailable):
			utils.SendErrorResponse(c, http.StatusInternalServerError, "No listing snapshot available, refresh listings first")
		default:
			h.logger.Error("Price refresh failed", zap.Error(err))
			utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to refresh prices")
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RefreshListings handles triggering a listing snapshot refresh
// POST /api/v1/refresh/listings
func (h *RefreshHandler) RefreshListings(c *gin.Context) {
	result, err := h.listingService.RefreshListings(c.Request.Context(), model.RunTriggerManual)
	if err != nil {
		h.logger.Error("Listing refresh failed", zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to refresh listings")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status handles checking whether a refresh run is currently in flight
// GET /api/v1/refresh/status
func (h *RefreshHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"refreshing": h.refreshService.IsRefreshing()})
}
