package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"splitshare-service/internal/auth"
	"splitshare-service/internal/observability"
	"splitshare-service/internal/repositories"
)

// AccessCookie is the cookie carrying the access token.
const AccessCookie = "access_token"

// RefreshCookie is the cookie carrying the refresh token.
const RefreshCookie = "refresh_token"

// UserIDKey is the gin context key for the acting account id.
const UserIDKey = "userID"

// AuthMiddleware validates the access token from the cookie or bearer
// header and resolves it to a live account. It is a pure gate: any failure
// aborts with 401 and the downstream handler never runs.
func AuthMiddleware(tokens *auth.TokenManager, users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			observability.IncAuthFailure("missing_token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing access token"})
			return
		}

		claims, err := tokens.Validate(tokenString)
		if err != nil {
			observability.IncAuthFailure("invalid_token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		// the account may have been deleted since the token was minted
		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			observability.IncAuthFailure("unknown_account")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessCookie); err == nil && cookie != "" {
		return cookie
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
