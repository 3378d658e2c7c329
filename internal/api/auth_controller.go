package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/services"
)

// AuthController управляет API endpoints для авторизации
type AuthController struct {
	authService   *services.AuthService
	tenantService *services.TenantService
}

// NewAuthController создает новый контроллер авторизации
func NewAuthController(authService *services.AuthService, tenantService *services.TenantService) *AuthController {
	return &AuthController{authService: authService, tenantService: tenantService}
}

// LoginRequest - вход пользователя пиццерии
type LoginRequest struct {
	Slug     string `json:"slug" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginRequest - вход администратора платформы
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest - регистрация новой пиццерии с пробным периодом
type RegisterRequest struct {
	Name          string `json:"name" binding:"required"`
	Slug          string `json:"slug"`
	OwnerName     string `json:"owner_name"`
	OwnerEmail    string `json:"owner_email" binding:"required"`
	OwnerPassword string `json:"owner_password" binding:"required"`
}

// Login обрабатывает вход пользователя пиццерии
// POST /api/v1/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := ac.authService.LoginTenantUser(req.Slug, req.Email, req.Password)
	if err != nil {
		respondError(c, "Вход не выполнен", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AdminLogin обрабатывает вход администратора платформы
// POST /api/v1/auth/admin/login
func (ac *AuthController) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := ac.authService.LoginPlatformAdmin(req.Email, req.Password)
	if err != nil {
		respondError(c, "Вход не выполнен", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Register создает пиццерию в пробном периоде и сразу выполняет вход владельца
// POST /api/v1/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	tenant, _, err := ac.tenantService.CreateTenant(services.CreateTenantInput{
		Name:          req.Name,
		Slug:          req.Slug,
		OwnerEmail:    req.OwnerEmail,
		OwnerName:     req.OwnerName,
		OwnerPassword: req.OwnerPassword,
	})
	if err != nil {
		respondError(c, "Ошибка регистрации пиццерии", err)
		return
	}

	result, err := ac.authService.LoginTenantUser(tenant.Slug, req.OwnerEmail, req.OwnerPassword)
	if err != nil {
		respondError(c, "Пиццерия создана, но вход не выполнен", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Me возвращает данные из токена
// GET /api/v1/auth/me
func (ac *AuthController) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":   currentUserID(c),
		"tenant_id": currentTenantID(c),
		"role":      currentRole(c),
		"email":     c.GetString(ctxEmail),
	})
}

// ListUsers возвращает сотрудников пиццерии
// GET /api/v1/users
func (ac *AuthController) ListUsers(c *gin.Context) {
	users, err := ac.authService.ListUsers(currentTenantID(c))
	if err != nil {
		respondError(c, "Ошибка получения сотрудников", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// CreateUser добавляет сотрудника
// POST /api/v1/users
func (ac *AuthController) CreateUser(c *gin.Context) {
	var req services.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	user, err := ac.authService.CreateUser(currentTenantID(c), req)
	if err != nil {
		respondError(c, "Ошибка создания сотрудника", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
