package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"pathwaymed-backend/repository"
	"pathwaymed-backend/service"

	"github.com/gin-gonic/gin"
)

// PromptHandler handles HTTP requests for versioned custom extractor prompts
type PromptHandler struct {
	promptRepo *repository.PromptRepository
	userRepo   *repository.UserRepository
}

// NewPromptHandler creates a new prompt handler
func NewPromptHandler(promptRepo *repository.PromptRepository, userRepo *repository.UserRepository) *PromptHandler {
	return &PromptHandler{
		promptRepo: promptRepo,
		userRepo:   userRepo,
	}
}

// requireOverride rejects users whose role does not allow prompt overrides
func (h *PromptHandler) requireOverride(c *gin.Context) bool {
	user, err := h.userRepo.GetByID(c.Request.Context(), CurrentUserID(c))
	if err != nil || !user.CanOverridePrompts() {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Custom prompts require a power user or admin role",
			},
		})
		return false
	}
	return true
}

// CreatePromptRequest represents the request body for saving a prompt
type CreatePromptRequest struct {
	PromptText string `json:"prompt_text" binding:"required"`
}

// Create handles POST /api/prompts
func (h *PromptHandler) Create(c *gin.Context) {
	if !h.requireOverride(c) {
		return
	}

	var req CreatePromptRequest
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

	prompt, err := h.promptRepo.CreateVersion(c.Request.Context(), CurrentUserID(c), req.PromptText)
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
		"data":    prompt,
	})
}

// GetActive handles GET /api/prompts/active
func (h *PromptHandler) GetActive(c *gin.Context) {
	if !h.requireOverride(c) {
		return
	}

	prompt, err := h.promptRepo.GetActive(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrPromptNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "No active custom prompt",
				},
			})
			return
		}
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
		"data":    prompt,
	})
}

// GetDefault handles GET /api/prompts/default
func (h *PromptHandler) GetDefault(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"prompt_text": service.DefaultPrompts().Extractor,
		},
	})
}

// ListVersions handles GET /api/prompts
func (h *PromptHandler) ListVersions(c *gin.Context) {
	if !h.requireOverride(c) {
		return
	}

	prompts, err := h.promptRepo.ListVersions(c.Request.Context(), CurrentUserID(c))
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
		"data":    prompts,
	})
}

// Revert handles POST /api/prompts/:version/revert. It reactivates an old
// version by saving its text as a new version.
func (h *PromptHandler) Revert(c *gin.Context) {
	if !h.requireOverride(c) {
		return
	}

	version, ok := h.promptVersion(c)
	if !ok {
		return
	}

	old, err := h.promptRepo.GetVersion(c.Request.Context(), CurrentUserID(c), version)
	if err != nil {
		if errors.Is(err, repository.ErrPromptNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Prompt version not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RETRIEVAL_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	prompt, err := h.promptRepo.CreateVersion(c.Request.Context(), CurrentUserID(c), old.PromptText)
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

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    prompt,
	})
}

// DeleteVersion handles DELETE /api/prompts/:version
func (h *PromptHandler) DeleteVersion(c *gin.Context) {
	if !h.requireOverride(c) {
		return
	}

	version, ok := h.promptVersion(c)
	if !ok {
		return
	}

	err := h.promptRepo.DeleteVersion(c.Request.Context(), CurrentUserID(c), version)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPromptNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Prompt version not found",
				},
			})
		case errors.Is(err, repository.ErrPromptActive):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "PROMPT_ACTIVE",
					"message": "Cannot delete the active prompt version",
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DELETE_FAILED",
					"message": err.Error(),
				},
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"deleted": true,
		},
	})
}

// Deactivate handles POST /api/prompts/deactivate
func (h *PromptHandler) Deactivate(c *gin.Context) {
	if !h.requireOverride(c) {
		return
	}

	if err := h.promptRepo.Deactivate(c.Request.Context(), CurrentUserID(c)); err != nil {
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
			"deactivated": true,
		},
	})
}

func (h *PromptHandler) promptVersion(c *gin.Context) (int, bool) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_VERSION",
				"message": "Invalid prompt version",
			},
		})
		return 0, false
	}
	return version, true
}
