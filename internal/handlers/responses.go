package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskhive/api/internal/models"
	"taskhive/api/internal/service"
)

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
}

func userResponseFrom(user models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Status:      string(user.Status),
	}
}

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	SessionID    string       `json:"sessionId"`
	User         userResponse `json:"user"`
}

func sendAuthResponse(c *gin.Context, result service.AuthResult) {
	c.JSON(http.StatusOK, authResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		SessionID:    result.SessionID,
		User:         userResponseFrom(result.User),
	})
}

type sessionResponse struct {
	ID                string    `json:"id"`
	DeviceFingerprint string    `json:"deviceFingerprint,omitempty"`
	IPAddress         string    `json:"ipAddress"`
	UserAgent         string    `json:"userAgent"`
	LastUsedAt        time.Time `json:"lastUsedAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
	Current           bool      `json:"current"`
}

type accountResponse struct {
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"providerAccountId"`
	LinkedAt          time.Time `json:"linkedAt"`
}
