package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"waveanalyzer/auth"
	"waveanalyzer/middleware"
)

// AuthHandler forwards account endpoints to the credential service
type AuthHandler struct {
	client *auth.Client
}

// NewAuthHandler creates a new auth handler. A nil client disables accounts.
func NewAuthHandler(client *auth.Client) *AuthHandler {
	return &AuthHandler{client: client}
}

func (h *AuthHandler) enabled(c *gin.Context) bool {
	if h.client == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "accounts are not configured",
		})
		return false
	}
	return true
}

func authError(c *gin.Context, err error) {
	if errors.Is(err, auth.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid credentials",
		})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{
		"error":   "credential service error",
		"details": err.Error(),
	})
}

// Login exchanges credentials for tokens
func (h *AuthHandler) Login(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var creds auth.Credentials
	if !bindJSON(c, &creds) {
		return
	}
	tokens, err := h.client.Login(c.Request.Context(), creds)
	if err != nil {
		authError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Signup registers a new account
func (h *AuthHandler) Signup(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var creds auth.Credentials
	if !bindJSON(c, &creds) {
		return
	}
	if err := h.client.Signup(c.Request.Context(), creds); err != nil {
		authError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "verification email sent",
	})
}

// VerifyEmail confirms the token from a verification email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "token is required",
		})
		return
	}
	if err := h.client.VerifyEmail(c.Request.Context(), token); err != nil {
		authError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "email verified",
	})
}

// Refresh issues new tokens for the refresh token in the Authorization header
func (h *AuthHandler) Refresh(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	token, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing refresh token",
		})
		return
	}
	tokens, err := h.client.Refresh(c.Request.Context(), token)
	if err != nil {
		authError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Me returns the user behind the request's token
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"user":        nil,
			"authEnabled": h.client != nil,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"authEnabled": true,
	})
}
