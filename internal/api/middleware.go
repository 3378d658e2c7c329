package api

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/auth"
	"pizzaria/internal/models"
)

// Ключи gin.Context, которые заполняет AuthMiddleware
const (
	ctxUserID   = "user_id"
	ctxTenantID = "tenant_id"
	ctxRole     = "user_role"
	ctxEmail    = "user_email"
)

// TenantChecker сообщает, может ли пиццерия работать со складом
type TenantChecker interface {
	IsOperational(tenantID string) (bool, error)
}

// RequestLogger логирует все запросы
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Printf("🌐 %s %s - Status: %d - Latency: %v", method, path, c.Writer.Status(), time.Since(start))
	}
}

// AuthMiddleware проверяет Bearer токен и кладет данные пользователя в контекст
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Требуется заголовок Authorization: Bearer <token>",
			})
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Недействительный токен",
				"details": err.Error(),
			})
			return
		}

		c.Set(ctxUserID, claims.UserID())
		c.Set(ctxTenantID, claims.TenantID)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// TenantGuard пропускает только пользователей пиццерии со статусом trialing/active/past_due
func TenantGuard(checker TenantChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString(ctxTenantID)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Токен не привязан к пиццерии",
			})
			return
		}

		operational, err := checker.IsOperational(tenantID)
		if err != nil {
			respondError(c, "Ошибка проверки статуса пиццерии", err)
			c.Abort()
			return
		}
		if !operational {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Пиццерия приостановлена или отменена, обратитесь в поддержку",
			})
			return
		}
		c.Next()
	}
}

// RequireRole пропускает только указанные роли
func RequireRole(allowed ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.UserRole(c.GetString(ctxRole))
		for _, r := range allowed {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Недостаточно прав"})
	}
}

// RequireStockManager - владелец или управляющий
func RequireStockManager() gin.HandlerFunc {
	return RequireRole(models.RoleOwner, models.RoleManager)
}

// RequirePlatformAdmin - только администратор платформы
func RequirePlatformAdmin() gin.HandlerFunc {
	return RequireRole(models.RolePlatformAdmin)
}

func currentTenantID(c *gin.Context) string {
	return c.GetString(ctxTenantID)
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func currentRole(c *gin.Context) models.UserRole {
	return models.UserRole(c.GetString(ctxRole))
}

// performedBy - кто выполнил операцию (email, если есть)
func performedBy(c *gin.Context) string {
	if email := c.GetString(ctxEmail); email != "" {
		return email
	}
	return c.GetString(ctxUserID)
}
