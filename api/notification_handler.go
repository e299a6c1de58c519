package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inphora/service"
)

type notificationHandler struct {
	notifications service.NotificationService
}

func newNotificationHandler(notifications service.NotificationService) *notificationHandler {
	return &notificationHandler{notifications: notifications}
}

func (h *notificationHandler) List(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	unreadOnly := c.Query("unread") == "true"
	notifications, err := h.notifications.ListForUser(c.Request.Context(), claims.UserID, unreadOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *notificationHandler) MarkRead(c *gin.Context) {
	id := pathID(c)
	if id == 0 {
		return
	}
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), id, claims.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}
