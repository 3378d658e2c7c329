package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/assistant"
	"pizzaria/internal/models"
	"pizzaria/internal/services"
)

// maxChatMessageLength - ограничение длины сообщения пользователя
const maxChatMessageLength = 2000

// ChatController - чат с ассистентом склада
type ChatController struct {
	client      *assistant.Client
	executor    *assistant.Executor
	insights    *services.InsightsService
	chatService *services.ChatService
	broadcaster EventBroadcaster
}

// NewChatController создает контроллер чата. client может быть без провайдеров: тогда работают только slash-команды.
func NewChatController(client *assistant.Client, executor *assistant.Executor, insights *services.InsightsService, chatService *services.ChatService) *ChatController {
	return &ChatController{
		client:      client,
		executor:    executor,
		insights:    insights,
		chatService: chatService,
	}
}

// SetBroadcaster включает уведомление дашбордов об изменениях из чата
func (cc *ChatController) SetBroadcaster(b EventBroadcaster) {
	cc.broadcaster = b
}

// ChatRequest - сообщение пользователя
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatResponse - ответ ассистента
type ChatResponse struct {
	Reply    assistant.Reply `json:"reply"`
	Provider string          `json:"provider"`
}

// Send разбирает сообщение, выполняет намерение и сохраняет обмен в историю
// POST /api/v1/chat
func (cc *ChatController) Send(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" || len([]rune(message)) > maxChatMessageLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Сообщение пустое или длиннее 2000 символов"})
		return
	}

	tenantID := currentTenantID(c)
	userID := currentUserID(c)

	// Контекст склада нужен только модели
	snapshot := ""
	if cc.client.HasProviders() && !strings.HasPrefix(message, "/") && cc.insights != nil {
		var err error
		if snapshot, err = cc.insights.Snapshot(tenantID); err != nil {
			log.Printf("⚠️ Не удалось построить сводку склада для ассистента: %v", err)
			snapshot = ""
		}
	}

	interpretation := cc.client.Interpret(c.Request.Context(), message, snapshot)
	reply := cc.executor.Execute(c.Request.Context(), assistant.Request{
		TenantID: tenantID,
		UserID:   userID,
		Role:     currentRole(c),
	}, interpretation.Intent)

	if cc.chatService != nil {
		question := &models.ChatMessage{
			TenantID: tenantID,
			UserID:   userID,
			Role:     models.ChatRoleUser,
			Content:  message,
		}
		answer := &models.ChatMessage{
			TenantID: tenantID,
			UserID:   userID,
			Role:     models.ChatRoleAssistant,
			Content:  reply.Text,
			Intent:   string(reply.Intent),
			Provider: interpretation.Provider,
		}
		if err := cc.chatService.SaveExchange(question, answer); err != nil {
			log.Printf("⚠️ Не удалось сохранить историю чата: %v", err)
		}
	}

	if reply.Changed && cc.broadcaster != nil {
		cc.broadcaster.BroadcastEvent(tenantID, "chat_change", gin.H{
			"intent": reply.Intent,
			"text":   reply.Text,
		})
	}

	c.JSON(http.StatusOK, ChatResponse{Reply: reply, Provider: interpretation.Provider})
}

// History возвращает историю чата текущего пользователя
// GET /api/v1/chat/history?limit=50
func (cc *ChatController) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := cc.chatService.History(currentTenantID(c), currentUserID(c), limit)
	if err != nil {
		respondError(c, "Ошибка получения истории", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// Clear удаляет историю чата текущего пользователя
// DELETE /api/v1/chat/history
func (cc *ChatController) Clear(c *gin.Context) {
	deleted, err := cc.chatService.Clear(currentTenantID(c), currentUserID(c))
	if err != nil {
		respondError(c, "Ошибка очистки истории", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
