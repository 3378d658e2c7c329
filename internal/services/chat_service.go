package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"pizzaria/internal/models"
)

const (
	defaultChatHistory = 50
	maxChatHistory     = 200
)

// ChatService хранит историю диалогов с ассистентом склада
type ChatService struct {
	db *gorm.DB
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// Save сохраняет одно сообщение
func (s *ChatService) Save(msg *models.ChatMessage) error {
	if msg.TenantID == "" || strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("%w: tenant_id и content обязательны", ErrInvalidInput)
	}
	if msg.Role != models.ChatRoleUser && msg.Role != models.ChatRoleAssistant {
		return fmt.Errorf("%w: неизвестная роль %q", ErrInvalidInput, msg.Role)
	}
	if err := s.db.Create(msg).Error; err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// SaveExchange сохраняет вопрос пользователя и ответ ассистента одной транзакцией
func (s *ChatService) SaveExchange(question, answer *models.ChatMessage) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(question).Error; err != nil {
			return fmt.Errorf("failed to save question: %w", err)
		}
		if err := tx.Create(answer).Error; err != nil {
			return fmt.Errorf("failed to save answer: %w", err)
		}
		return nil
	})
}

// History возвращает последние сообщения пользователя в хронологическом порядке
func (s *ChatService) History(tenantID, userID string, limit int) ([]models.ChatMessage, error) {
	limit = ClampHistoryLimit(limit)

	query := s.db.Where("tenant_id = ?", tenantID)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var messages []models.ChatMessage
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Clear удаляет историю пользователя
func (s *ChatService) Clear(tenantID, userID string) (int64, error) {
	result := s.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).Delete(&models.ChatMessage{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear chat history: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ClampHistoryLimit приводит размер выборки истории к допустимому диапазону
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return defaultChatHistory
	}
	if limit > maxChatHistory {
		return maxChatHistory
	}
	return limit
}
