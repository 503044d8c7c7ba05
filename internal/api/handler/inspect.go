package handler

import (
	"net/http"
	"strconv"

	"duelchat/backend/internal/config"

	"github.com/gin-gonic/gin"
)

// GetChatMessages returns the recent history of one chat for moderation.
func (h *Handler) GetChatMessages(c *gin.Context) {
	chatID := c.Param("id")
	limit := config.HistoryFetchLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := h.Storage.GetChatMessages(chatID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "messages": messages})
}

// ListReports returns complaints, filtered by ?status= (default "new").
func (h *Handler) ListReports(c *gin.Context) {
	status := c.DefaultQuery("status", "new")
	reports, err := h.Storage.ListReports(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// ResolveReport marks one complaint as handled.
func (h *Handler) ResolveReport(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report id"})
		return
	}
	if err := h.Storage.ResolveReport(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}
