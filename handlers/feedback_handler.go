package handlers

import (
	"net/http"
	"strconv"

	"pathwaymed-backend/models"
	"pathwaymed-backend/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FeedbackHandler handles HTTP requests for answer feedback
type FeedbackHandler struct {
	feedbackRepo *repository.FeedbackRepository
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(feedbackRepo *repository.FeedbackRepository) *FeedbackHandler {
	return &FeedbackHandler{feedbackRepo: feedbackRepo}
}

// CreateFeedbackRequest represents the request body for submitting feedback
type CreateFeedbackRequest struct {
	ConversationID string  `json:"conversation_id" binding:"required"`
	MessageID      *string `json:"message_id"`
	Rating         int     `json:"rating" binding:"required,min=1,max=5"`
	Comment        string  `json:"comment"`
}

// Create handles POST /api/feedback
func (h *FeedbackHandler) Create(c *gin.Context) {
	var req CreateFeedbackRequest
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

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid conversation ID format",
			},
		})
		return
	}

	feedback := &models.Feedback{
		UserID:         CurrentUserID(c),
		ConversationID: conversationID,
		Rating:         req.Rating,
		Comment:        req.Comment,
	}
	if req.MessageID != nil && *req.MessageID != "" {
		messageID, err := uuid.Parse(*req.MessageID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_ID",
					"message": "Invalid message ID format",
				},
			})
			return
		}
		feedback.MessageID = &messageID
	}

	if err := h.feedbackRepo.Create(c.Request.Context(), feedback); err != nil {
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
		"data":    feedback,
	})
}

// List handles GET /api/feedback (admin)
func (h *FeedbackHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	feedback, total, err := h.feedbackRepo.ListAll(c.Request.Context(), limit, offset)
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
			"feedback": feedback,
			"total":    total,
		},
	})
}

// ListByConversation handles GET /api/feedback/conversation/:id
func (h *FeedbackHandler) ListByConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid conversation ID format",
			},
		})
		return
	}

	feedback, err := h.feedbackRepo.ListByConversation(c.Request.Context(), id)
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
		"data":    feedback,
	})
}
