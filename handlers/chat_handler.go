package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"pathwaymed-backend/repository"
	"pathwaymed-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChatHandler handles HTTP requests for the chat flow
type ChatHandler struct {
	chatService   *service.ChatService
	exportService *service.ExportService
	convRepo      *repository.ConversationRepository
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService, exportService *service.ExportService, convRepo *repository.ConversationRepository) *ChatHandler {
	return &ChatHandler{
		chatService:   chatService,
		exportService: exportService,
		convRepo:      convRepo,
	}
}

// SendMessageRequest represents the request body for sending a chat message
type SendMessageRequest struct {
	Message        string  `json:"message" binding:"required"`
	ConversationID *string `json:"conversation_id"`
}

// SendMessage handles POST /api/chat
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
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

	var conversationID *uuid.UUID
	if req.ConversationID != nil && *req.ConversationID != "" {
		id, err := uuid.Parse(*req.ConversationID)
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
		conversationID = &id
	}

	result, err := h.chatService.HandleMessage(c.Request.Context(), CurrentUserID(c), conversationID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrConversationAccess) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Conversation not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CHAT_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// NewConversation handles POST /api/chat/new
func (h *ChatHandler) NewConversation(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	_ = c.ShouldBindJSON(&req)

	title := req.Title
	if title == "" {
		title = service.DefaultConversationTitle
	}

	conv, err := h.convRepo.Create(c.Request.Context(), CurrentUserID(c), title)
	if err != nil {
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
		"data":    conv,
	})
}

// ListConversations handles GET /api/chat/history
func (h *ChatHandler) ListConversations(c *gin.Context) {
	conversations, err := h.convRepo.ListByUserID(c.Request.Context(), CurrentUserID(c))
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
		"data":    conversations,
	})
}

// GetConversation handles GET /api/chat/conversation/:id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	id, ok := h.conversationID(c)
	if !ok {
		return
	}

	conv, err := h.convRepo.GetByID(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Conversation not found",
			},
		})
		return
	}

	messages, err := h.convRepo.ListMessages(c.Request.Context(), conv.ID)
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
			"conversation": conv,
			"messages":     messages,
		},
	})
}

// RenameConversationRequest represents the request body for renaming
type RenameConversationRequest struct {
	Title string `json:"title" binding:"required"`
}

// RenameConversation handles PATCH /api/chat/conversation/:id
func (h *ChatHandler) RenameConversation(c *gin.Context) {
	id, ok := h.conversationID(c)
	if !ok {
		return
	}

	var req RenameConversationRequest
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

	err := h.convRepo.Rename(c.Request.Context(), id, CurrentUserID(c), req.Title)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Conversation not found",
				},
			})
			return
		}
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
			"id":    id,
			"title": req.Title,
		},
	})
}

// DeleteConversation handles DELETE /api/chat/conversation/:id
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	id, ok := h.conversationID(c)
	if !ok {
		return
	}

	err := h.convRepo.Delete(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Conversation not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DELETE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"deleted": true,
		},
	})
}

// SummarizeConversation handles GET /api/chat/conversation/:id/summary
func (h *ChatHandler) SummarizeConversation(c *gin.Context) {
	id, ok := h.conversationID(c)
	if !ok {
		return
	}

	summary, err := h.chatService.SummarizeConversation(c.Request.Context(), CurrentUserID(c), id)
	if err != nil {
		if errors.Is(err, service.ErrConversationAccess) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Conversation not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SUMMARY_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"summary": summary,
		},
	})
}

// ExportConversation handles GET /api/chat/conversation/:id/export
func (h *ChatHandler) ExportConversation(c *gin.Context) {
	id, ok := h.conversationID(c)
	if !ok {
		return
	}

	pdf, err := h.exportService.ExportConversationPDF(c.Request.Context(), CurrentUserID(c), id)
	if err != nil {
		if errors.Is(err, service.ErrConversationAccess) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Conversation not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EXPORT_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	filename := fmt.Sprintf("conversation-%s.pdf", id)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *ChatHandler) conversationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid conversation ID format",
			},
		})
		return uuid.Nil, false
	}
	return id, true
}
