package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sale - зарегистрированная продажа изделия
type Sale struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    string    `json:"tenant_id" gorm:"type:uuid;not null;index:idx_sales_tenant_created"`
	RecipeID    string    `json:"recipe_id" gorm:"type:uuid;not null;index"`
	Recipe      *Recipe   `json:"recipe,omitempty" gorm:"foreignKey:RecipeID"`
	RecipeName  string    `json:"recipe_name" gorm:"type:varchar(255)"` // Снимок имени на момент продажи
	Quantity    int       `json:"quantity" gorm:"not null"`
	UnitPrice   float64   `json:"unit_price" gorm:"type:decimal(10,2);default:0"`
	TotalAmount float64   `json:"total_amount" gorm:"type:decimal(12,2);default:0"`
	SoldBy      string    `json:"sold_by" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_sales_tenant_created"`
}

// TableName указывает имя таблицы
func (Sale) TableName() string {
	return "sales"
}

// BeforeCreate генерирует UUID
func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// ChatRole - автор сообщения в чате ассистента
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage - история чата с ассистентом склада
type ChatMessage struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID  string    `json:"tenant_id" gorm:"type:uuid;not null;index:idx_chat_tenant_created"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index"`
	Role      ChatRole  `json:"role" gorm:"type:varchar(20);not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Intent    string    `json:"intent" gorm:"type:varchar(30)"` // Распознанное намерение (для сообщений ассистента)
	Provider  string    `json:"provider" gorm:"type:varchar(30)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_chat_tenant_created"`
}

// TableName указывает имя таблицы
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// BeforeCreate генерирует UUID
func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
