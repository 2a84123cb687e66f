package server

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/repository"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the identity established by the upstream authentication layer
const UserIDHeader = "X-User-ID"

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// AuthMiddleware resolves the caller's identity and stores the user in the context.
// Browsers cannot set headers on websocket upgrades, so the user_id query parameter is accepted as well.
func AuthMiddleware(users repository.UserDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			userID = c.Query("user_id")
		}
		if userID == "" || !utils.IsValidID(userID) {
			utils.JSONError(c, http.StatusUnauthorized, errors.New("missing or malformed user identity"), "authentication required")
			return
		}

		user, err := users.FindUserByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, biddingerrors.ErrUserNotFound) {
				utils.JSONError(c, http.StatusUnauthorized, err, "authentication required")
				utils.Warn("AuthMiddleware: unknown user", map[string]any{"user_id": userID, "path": c.Request.URL.Path})
				return
			}
			utils.JSONError(c, http.StatusInternalServerError, fmt.Errorf("resolve user: %w", err), "internal server error")
			utils.Error("AuthMiddleware: failed to resolve user", map[string]any{"user_id": userID, "error": err.Error()})
			return
		}

		c.Set(helpers.UserContextKey, user)
		c.Next()
	}
}
