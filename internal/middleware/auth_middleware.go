package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leetosc/quiz-aide/pkg/auth"
)

const (
	// ContextUserID ключ ID пользователя в контексте gin
	ContextUserID = "user_id"
	// ContextEmail ключ email пользователя в контексте gin
	ContextEmail = "email"

	// tokenQueryParam токен в query для websocket (браузер не может выставить заголовок)
	tokenQueryParam = "token"
)

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

// NewAuthMiddleware создает новый middleware
func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// extractToken берет токен из заголовка Authorization: Bearer {token} или из ?token=
func extractToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query(tokenQueryParam); token != "" {
			return token, ""
		}
		return "", "token_missing"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "token_format"
	}
	return parts[1], ""
}

// RequireAuth проверяет, аутентифицирован ли пользователь
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, errType := extractToken(c)
		if errType != "" {
			msg := "Unauthorized"
			if errType == "token_format" {
				msg = "Authorization header format must be Bearer {token}"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg, "error_type": errType})
			c.Abort()
			return
		}

		claims, err := m.jwtService.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// OptionalAuth выставляет пользователя, если токен валиден, иначе пропускает запрос как анонимный.
// Невалидный токен не отклоняет запрос: генерация доступна анонимам.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, errType := extractToken(c)
		if errType == "" {
			if claims, err := m.jwtService.ParseToken(token); err == nil {
				c.Set(ContextUserID, claims.UserID)
				c.Set(ContextEmail, claims.Email)
			}
		}
		c.Next()
	}
}
