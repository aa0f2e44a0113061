package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/handler"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
)

// TokenValidator resolves a bearer token into claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
	// claims cache keeps repeated requests from re-parsing the same
	// token within its short TTL
	claims *cache.Cache
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		claims:    cache.New(30*time.Second, 5*time.Minute),
	}
}

// Authenticate verifies the bearer token and sets the caller identity
// in the context. Unauthenticated calls get a uniform 401.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
			c.Abort()
			return
		}
		token := parts[1]

		var claims *model.TokenClaims
		if cached, ok := m.claims.Get(token); ok {
			claims = cached.(*model.TokenClaims)
		} else {
			var err error
			claims, err = m.validator.ValidateToken(c.Request.Context(), token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
				c.Abort()
				return
			}
			m.claims.Set(token, claims, cache.DefaultExpiration)
		}

		c.Set(handler.CtxUserID, claims.UserID)
		c.Set(handler.CtxRole, claims.Role)
		c.Next()
	}
}

// RequireRole restricts a route to one role.
func (m *AuthMiddleware) RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, actual, ok := handler.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
			c.Abort()
			return
		}
		if actual != role {
			c.JSON(http.StatusForbidden, handler.NewErrorResponse("forbidden"))
			c.Abort()
			return
		}
		c.Next()
	}
}
