package api

import (
	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey = "request_id"
	actorKey     = "actor"
	userKey      = "user"
)

// RequestID tags every request with X-Request-ID, reusing the caller's.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set(requestIDKey, requestID)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(requestIDKey); ok {
		return id.(string)
	}
	return ""
}

// Session resolves the session cookie into the request's actor. Requests
// without a valid session proceed anonymously.
func (h *Handler) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		a := services.Actor{IP: c.ClientIP()}
		token, err := c.Cookie(h.Cookie.Name)
		if err == nil && token != "" && h.Users != nil {
			user, err := h.Users.Resolve(c.Request.Context(), token)
			switch {
			case err == nil:
				id := user.ID
				a.UserID = &id
				c.Set(userKey, user)
			case apperr.KindOf(err) == apperr.KindBackend:
				zap.L().Warn("Failed to resolve session", zap.String("requestID", GetRequestID(c)), zap.Error(err))
			}
		}
		c.Set(actorKey, a)
		c.Next()
	}
}
