package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pizzaria/internal/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Разрешаем подключения с любого origin, доступ проверяется токеном
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WSController подключает дашборды пиццерий к хабу
type WSController struct {
	hub     *Hub
	tokens  *auth.TokenManager
	tenants TenantChecker
}

func NewWSController(hub *Hub, tokens *auth.TokenManager, tenants TenantChecker) *WSController {
	return &WSController{hub: hub, tokens: tokens, tenants: tenants}
}

// ServeWS обрабатывает WebSocket подключения дашбордов.
// Браузер не умеет передавать заголовки при подключении, поэтому токен принимается и в ?token=
// GET /api/v1/ws?token=xxx
func (wc *WSController) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = bearerToken(c.GetHeader("Authorization"))
	}
	claims, err := wc.tokens.Parse(token)
	if err != nil || claims.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Недействительный токен"})
		return
	}
	if wc.tenants != nil {
		operational, err := wc.tenants.IsOperational(claims.TenantID)
		if err != nil {
			respondError(c, "Ошибка проверки статуса пиццерии", err)
			return
		}
		if !operational {
			c.JSON(http.StatusForbidden, gin.H{"error": "Пиццерия приостановлена"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ Ошибка обновления WebSocket соединения: %v", err)
		return
	}

	tenantID := claims.TenantID
	wc.hub.AddClient(tenantID, conn)
	log.Printf("📱 Дашборд подключен (tenant %s). Подключений пиццерии: %d", tenantID, wc.hub.GetClientsCount(tenantID))

	// Обрабатываем отключение клиента
	defer func() {
		wc.hub.RemoveClient(tenantID, conn)
		log.Printf("📱 Дашборд отключен (tenant %s). Осталось подключений: %d", tenantID, wc.hub.GetClientsCount(tenantID))
	}()

	// Читаем сообщения от клиента (ping/pong для поддержания соединения)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️ WebSocket ошибка: %v", err)
			}
			break
		}
	}
}
