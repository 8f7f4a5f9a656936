package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"waveanalyzer/auth"
	"waveanalyzer/logger"
)

// UserKey is the gin context key holding the authenticated *auth.User
const UserKey = "user"

// RequireUser checks the bearer token against the credential service. With
// a nil client every request passes anonymously.
func RequireUser(client *auth.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			// Browsers cannot set headers on websocket upgrades
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		user, err := client.CurrentUser(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "invalid credentials",
				})
				return
			}
			logger.Warnf("Credential check failed: %v", err)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
				"error":   "credential service unavailable",
				"details": err.Error(),
			})
			return
		}

		c.Set(UserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user RequireUser stored, if any
func CurrentUser(c *gin.Context) (*auth.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*auth.User)
	return user, ok && user != nil
}
