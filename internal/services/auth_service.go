package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"pizzaria/internal/auth"
	"pizzaria/internal/models"
)

// AuthService проверяет учетные данные и выпускает токены
type AuthService struct {
	db     *gorm.DB
	tokens *auth.TokenManager
	now    func() time.Time
}

// NewAuthService создает новый экземпляр AuthService
func NewAuthService(db *gorm.DB, tokens *auth.TokenManager) *AuthService {
	return &AuthService{db: db, tokens: tokens, now: time.Now}
}

// LoginResult - ответ на успешный вход
type LoginResult struct {
	Token    string         `json:"token"`
	UserID   string         `json:"user_id"`
	Email    string         `json:"email"`
	Name     string         `json:"name,omitempty"`
	Role     string         `json:"role"`
	TenantID string         `json:"tenant_id,omitempty"`
	Tenant   *models.Tenant `json:"tenant,omitempty"`
}

// CreateUserInput - данные нового сотрудника пиццерии
type CreateUserInput struct {
	Name     string          `json:"name"`
	Email    string          `json:"email" binding:"required"`
	Password string          `json:"password" binding:"required"`
	Role     models.UserRole `json:"role" binding:"required"`
}

// LoginTenantUser выполняет вход пользователя пиццерии по slug, email и паролю.
// Вход в приостановленную или отмененную пиццерию запрещен.
func (s *AuthService) LoginTenantUser(slug, email, password string) (*LoginResult, error) {
	var tenant models.Tenant
	if err := s.db.Where("slug = ?", strings.ToLower(strings.TrimSpace(slug))).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}

	var user models.User
	err := s.db.Where("tenant_id = ? AND LOWER(email) = ? AND is_active = ?", tenant.ID, normalizeEmail(email), true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	if !tenant.Status.IsOperational() {
		return nil, ErrTenantSuspended
	}

	token, err := s.tokens.Issue(user.ID, tenant.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	now := s.now()
	s.db.Model(&user).Update("last_login_at", &now)

	return &LoginResult{
		Token:    token,
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Role:     string(user.Role),
		TenantID: tenant.ID,
		Tenant:   &tenant,
	}, nil
}

// LoginPlatformAdmin выполняет вход администратора платформы
func (s *AuthService) LoginPlatformAdmin(email, password string) (*LoginResult, error) {
	var admin models.PlatformAdmin
	err := s.db.Where("LOWER(email) = ? AND is_active = ?", normalizeEmail(email), true).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load platform admin: %w", err)
	}
	if !auth.CheckPassword(admin.PasswordHash, password) {
		return nil, ErrUnauthorized
	}

	token, err := s.tokens.Issue(admin.ID, "", admin.Email, string(models.RolePlatformAdmin))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	now := s.now()
	s.db.Model(&admin).Update("last_login_at", &now)

	return &LoginResult{
		Token:  token,
		UserID: admin.ID,
		Email:  admin.Email,
		Role:   string(models.RolePlatformAdmin),
	}, nil
}

// EnsurePlatformAdmin создает администратора платформы при первом запуске
func (s *AuthService) EnsurePlatformAdmin(email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	var count int64
	if err := s.db.Model(&models.PlatformAdmin{}).Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check platform admin: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.db.Create(&models.PlatformAdmin{Email: email, PasswordHash: hash, IsActive: true}).Error; err != nil {
		return fmt.Errorf("failed to create platform admin: %w", err)
	}
	log.Printf("👤 Администратор платформы %s создан", email)
	return nil
}

// CreateUser добавляет сотрудника в пиццерию
func (s *AuthService) CreateUser(tenantID string, in CreateUserInput) (*models.User, error) {
	if !in.Role.IsValid() {
		return nil, fmt.Errorf("%w: роль должна быть owner, manager или staff", ErrInvalidInput)
	}
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email обязателен", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user := models.User{
		TenantID:     tenantID,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// ListUsers возвращает сотрудников пиццерии
func (s *AuthService) ListUsers(tenantID string) ([]models.User, error) {
	var users []models.User
	if err := s.db.Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
