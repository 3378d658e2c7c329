package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole - роль пользователя внутри пиццерии
type UserRole string

const (
	RoleOwner   UserRole = "owner"   // Владелец (все операции)
	RoleManager UserRole = "manager" // Управляющий (склад, рецепты, импорт)
	RoleStaff   UserRole = "staff"   // Сотрудник (продажи, просмотр)

	// RolePlatformAdmin не хранится в users, выдается только в токене администратора платформы
	RolePlatformAdmin UserRole = "platform_admin"
)

// User - пользователь пиццерии. Email уникален в пределах арендатора.
type User struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     string         `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_users_tenant_email"`
	Name         string         `json:"name" gorm:"type:varchar(255)"`
	Email        string         `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_users_tenant_email"`
	PasswordHash string         `json:"-" gorm:"type:varchar(255);not null"` // Не возвращаем в JSON
	Role         UserRole       `json:"role" gorm:"type:varchar(20);not null;default:'staff'"`
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	LastLoginAt  *time.Time     `json:"last_login_at"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName указывает имя таблицы
func (User) TableName() string {
	return "users"
}

// BeforeCreate генерирует UUID если не указан
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// CanManageStock - может ли роль менять справочники и остатки
func (r UserRole) CanManageStock() bool {
	return r == RoleOwner || r == RoleManager
}

// IsValid проверяет роль пользователя пиццерии
func (r UserRole) IsValid() bool {
	return r == RoleOwner || r == RoleManager || r == RoleStaff
}

// PlatformAdmin - администратор платформы (консоль арендаторов)
type PlatformAdmin struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string         `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string         `json:"-" gorm:"type:varchar(255);not null"`
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	LastLoginAt  *time.Time     `json:"last_login_at"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName указывает имя таблицы
func (PlatformAdmin) TableName() string {
	return "platform_admins"
}

// BeforeCreate генерирует UUID
func (a *PlatformAdmin) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
