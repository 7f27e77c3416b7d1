package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhive/api/internal/middleware"
	"taskhive/api/internal/service"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
}

func (h HandlerSet) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Meta:        requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user": userResponseFrom(result.User),
	})
}

type verifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

func (h HandlerSet) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	result, err := h.auth.VerifyEmail(c.Request.Context(), service.VerifyEmailInput{
		Email: req.Email,
		Code:  req.Code,
		Meta:  requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	sendAuthResponse(c, result)
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h HandlerSet) ResendVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	if err := h.auth.ResendVerification(c.Request.Context(), req.Email, requestMeta(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	sendAuthResponse(c, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), service.RefreshInput{
		RefreshToken: req.RefreshToken,
		Meta:         requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	sendAuthResponse(c, result)
}

func (h HandlerSet) Logout(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ACCESS_TOKEN_INVALID"})
		return
	}

	if err := h.auth.Logout(c.Request.Context(), identity.SessionID, requestMeta(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) LogoutAll(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ACCESS_TOKEN_INVALID"})
		return
	}

	count, err := h.auth.LogoutAll(c.Request.Context(), identity.UserID, identity.SessionID, requestMeta(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": count})
}

func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email, requestMeta(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), service.ResetPasswordInput{
		Email:       req.Email,
		Code:        req.Code,
		NewPassword: req.NewPassword,
		Meta:        requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ACCESS_TOKEN_INVALID"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_INPUT", "message": err.Error()})
		return
	}

	err := h.auth.ChangePassword(c.Request.Context(), service.ChangePasswordInput{
		UserID:          identity.UserID,
		SessionID:       identity.SessionID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		Meta:            requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
