package handlers

import (
	"net/http"
	"strconv"

	"pathwaymed-backend/repository"

	"github.com/gin-gonic/gin"
)

// AnalyticsHandler handles HTTP requests for usage analytics (admin only)
type AnalyticsHandler struct {
	analyticsRepo *repository.AnalyticsRepository
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsRepo *repository.AnalyticsRepository) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsRepo: analyticsRepo}
}

func queryDays(c *gin.Context) int {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 || days > 365 {
		return 30
	}
	return days
}

// LatencyStats handles GET /api/analytics/latency
func (h *AnalyticsHandler) LatencyStats(c *gin.Context) {
	stats, err := h.analyticsRepo.GetLatencyStats(c.Request.Context(), queryDays(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RETRIEVAL_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// DailyTrends handles GET /api/analytics/latency/daily
func (h *AnalyticsHandler) DailyTrends(c *gin.Context) {
	trends, err := h.analyticsRepo.GetDailyTrends(c.Request.Context(), queryDays(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RETRIEVAL_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    trends,
	})
}

// CostStats handles GET /api/analytics/cost
func (h *AnalyticsHandler) CostStats(c *gin.Context) {
	stats, err := h.analyticsRepo.GetCostStats(c.Request.Context(), queryDays(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RETRIEVAL_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}
