package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhive/api/internal/cache"
	"taskhive/api/internal/middleware"
	"taskhive/api/internal/models"
	"taskhive/api/internal/service"
)

type providerLoginRequest struct {
	Token    string `json:"token" binding:"required"`
	Redirect bool   `json:"redirect"`
}

// LoginWithProvider exchanges a provider-issued token for a session. When
// the client arrived via a browser redirect it receives a single-use
// exchange code instead of raw tokens in the response body.
func (h HandlerSet) LoginWithProvider(c *gin.Context) {
	var req providerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	result, err := h.social.LoginWithProvider(c.Request.Context(), service.ProviderLoginInput{
		Provider: models.Provider(c.Param("provider")),
		Token:    req.Token,
		Meta:     requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if req.Redirect {
		code, err := h.exchange.Create(c.Request.Context(), cache.ExchangeCodePayload{
			UserID:       result.User.ID,
			SessionID:    result.SessionID,
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			ExpiresIn:    result.ExpiresIn,
		})
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exchangeCode": code})
		return
	}

	sendAuthResponse(c, result)
}

type exchangeRequest struct {
	Code string `json:"code" binding:"required"`
}

// RedeemExchangeCode hands the tokens minted during a redirect flow to the
// client, exactly once.
func (h HandlerSet) RedeemExchangeCode(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	payload, err := h.exchange.Redeem(c.Request.Context(), req.Code)
	if err != nil {
		if errors.Is(err, cache.ErrExchangeCodeInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "EXCHANGE_CODE_INVALID"})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  payload.AccessToken,
		"refreshToken": payload.RefreshToken,
		"expiresIn":    payload.ExpiresIn,
		"sessionId":    payload.SessionID,
	})
}

type linkAccountRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h HandlerSet) LinkAccount(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ACCESS_TOKEN_INVALID"})
		return
	}

	var req linkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	account, err := h.social.LinkAccount(c.Request.Context(), service.LinkAccountInput{
		UserID:   identity.UserID,
		Provider: models.Provider(c.Param("provider")),
		Token:    req.Token,
		Meta:     requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, accountResponse{
		Provider:          string(account.Provider),
		ProviderAccountID: account.ProviderAccountID,
		LinkedAt:          account.CreatedAt,
	})
}

func (h HandlerSet) UnlinkAccount(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ACCESS_TOKEN_INVALID"})
		return
	}

	err := h.social.UnlinkAccount(c.Request.Context(), identity.UserID, models.Provider(c.Param("provider")), requestMeta(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ListLinkedAccounts(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ACCESS_TOKEN_INVALID"})
		return
	}

	accounts, err := h.social.ListLinkedAccounts(c.Request.Context(), identity.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		resp = append(resp, accountResponse{
			Provider:          string(account.Provider),
			ProviderAccountID: account.ProviderAccountID,
			LinkedAt:          account.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": resp})
}
