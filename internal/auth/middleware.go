package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/models"
	tokens "github.com/headless-pm/cloudtask/pkg/auth"
)

const (
	RequestIDHeader = "X-Request-ID"

	actorKey     = "actor"
	userKey      = "user"
	requestIDKey = "request_id"
)

// UserLoader resolves the account a token was issued for.
type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// AuthMiddleware validates the bearer token and loads the account behind it.
// Role and organization always come from storage, never from the token.
func AuthMiddleware(jwt *tokens.JWTManager, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, "Missing authentication token")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims, err := jwt.Verify(token)
		if err != nil {
			if errors.Is(err, tokens.ErrExpiredToken) {
				abort(c, http.StatusUnauthorized, "Token has expired")
				return
			}
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if !user.IsActive {
			abort(c, http.StatusForbidden, "Account is disabled")
			return
		}

		c.Set(userKey, user)
		c.Set(actorKey, authz.ActorFor(user))
		c.Next()
	}
}

// CurrentActor returns the identity set by AuthMiddleware.
func CurrentActor(c *gin.Context) (authz.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return authz.Actor{}, false
	}
	a, ok := v.(authz.Actor)
	return a, ok
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// RequestID tags every request with an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger writes one structured line per request.
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	logger = logger.WithPrefix("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"request_id", GetRequestID(c),
		}
		if a, ok := CurrentActor(c); ok {
			fields = append(fields, "user_id", a.UserID)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "err", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
