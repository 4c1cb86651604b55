package handlers

import (
	"context"
	"net/http"
	"strconv"

	"pathwaymed-backend/models"
	"pathwaymed-backend/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NotificationHandler handles HTTP requests for notifications
type NotificationHandler struct {
	notificationRepo *repository.NotificationRepository
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationRepo *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepo: notificationRepo}
}

// CreateNotificationRequest represents the request body for creating a notification
type CreateNotificationRequest struct {
	Target string  `json:"target" binding:"required,oneof=all user"`
	UserID *string `json:"user_id"`
	Title  string  `json:"title" binding:"required"`
	Body   string  `json:"body" binding:"required"`
}

// Create handles POST /api/notifications (admin)
func (h *NotificationHandler) Create(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	n := &models.Notification{
		Target: models.NotificationTarget(req.Target),
		Title:  req.Title,
		Body:   req.Body,
	}
	if n.Target == models.TargetUser {
		if req.UserID == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_REQUEST",
					"message": "user_id is required when target is 'user'",
				},
			})
			return
		}
		userID, err := uuid.Parse(*req.UserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_USER_ID",
					"message": "Invalid user_id format",
				},
			})
			return
		}
		n.UserID = &userID
	}

	if err := h.notificationRepo.Create(c.Request.Context(), n); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    n,
	})
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	unreadOnly := c.Query("unread_only") == "true"

	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, total, err := h.notificationRepo.ListForUser(c.Request.Context(), CurrentUserID(c), unreadOnly, limit, offset)
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
		"data": gin.H{
			"notifications": notifications,
			"total":         total,
		},
	})
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notificationRepo.UnreadCount(c.Request.Context(), CurrentUserID(c))
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
		"data": gin.H{
			"unread": count,
		},
	})
}

// MarkRead handles POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	h.mark(c, h.notificationRepo.MarkRead)
}

// Hide handles POST /api/notifications/:id/hide
func (h *NotificationHandler) Hide(c *gin.Context) {
	h.mark(c, h.notificationRepo.Hide)
}

func (h *NotificationHandler) mark(c *gin.Context, fn func(ctx context.Context, notificationID, userID uuid.UUID) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid notification ID format",
			},
		})
		return
	}

	if err := fn(c.Request.Context(), id, CurrentUserID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPDATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"updated": true,
		},
	})
}
