package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhive/api/internal/middleware"
)

func (h HandlerSet) ListSessions(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ACCESS_TOKEN_INVALID"})
		return
	}

	sessions, err := h.auth.GetActiveSessions(c.Request.Context(), identity.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:                session.ID,
			DeviceFingerprint: session.DeviceFingerprint,
			IPAddress:         session.IPAddress,
			UserAgent:         session.UserAgent,
			LastUsedAt:        session.LastUsedAt,
			ExpiresAt:         session.ExpiresAt,
			Current:           session.ID == identity.SessionID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ACCESS_TOKEN_INVALID"})
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": "session id required"})
		return
	}

	if err := h.auth.RevokeSession(c.Request.Context(), identity.UserID, sessionID, requestMeta(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
