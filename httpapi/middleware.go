package httpapi

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-arcade/core"
	"github.com/goliatone/go-arcade/ratelimit"
)

const contextUserKey = "arcade.user_id"

// sessionAuth authenticates requests with a bearer save-session token. The
// token itself names the user; no separate identity header is trusted.
func (s *Server) sessionAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			renderError(c, core.NewUnauthorizedError("httpapi: missing bearer session token"))
			return
		}

		userID, err := s.sessions.IdentityFromToken(token)
		if err != nil {
			renderError(c, err)
			return
		}
		if err := s.sessions.AuthorizeWrite(c.Request.Context(), userID, token); err != nil {
			renderError(c, err)
			return
		}

		c.Set(contextUserKey, userID)
		c.Next()
	}
}

// rateLimit meters one operation per authenticated user. Without a
// configured limiter the middleware is a pass-through.
func (s *Server) rateLimit(operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		userID := c.GetString(contextUserKey)
		err := s.limiter.Allow(c.Request.Context(), operation, userID)
		if err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				renderError(c, throttled.ToArcadeError())
				return
			}
			renderError(c, err)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
