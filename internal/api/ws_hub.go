package api

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// tenantMessage - сообщение для всех подключений одной пиццерии
type tenantMessage struct {
	tenantID string
	payload  []byte
}

// Hub управляет WebSocket соединениями дашбордов, по комнате на пиццерию
type Hub struct {
	rooms     map[string]map[*websocket.Conn]bool
	broadcast chan tenantMessage
	mutex     sync.RWMutex
}

// NewHub создает хаб. Запускать через go hub.Run(ctx).
func NewHub() *Hub {
	return &Hub{
		rooms:     make(map[string]map[*websocket.Conn]bool),
		broadcast: make(chan tenantMessage, 256), // Буферизованный канал для производительности
	}
}

// Run рассылает сообщения до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			for _, conn := range h.connections(msg.tenantID) {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					// Удаляем клиента при ошибке записи
					h.RemoveClient(msg.tenantID, conn)
				}
			}
		}
	}
}

// connections возвращает копию списка соединений, чтобы не писать в сокеты под блокировкой
func (h *Hub) connections(tenantID string) []*websocket.Conn {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	room := h.rooms[tenantID]
	conns := make([]*websocket.Conn, 0, len(room))
	for conn := range room {
		conns = append(conns, conn)
	}
	return conns
}

// AddClient добавляет дашборд пиццерии
func (h *Hub) AddClient(tenantID string, conn *websocket.Conn) {
	h.mutex.Lock()
	room, ok := h.rooms[tenantID]
	if !ok {
		room = make(map[*websocket.Conn]bool)
		h.rooms[tenantID] = room
	}
	room[conn] = true
	h.mutex.Unlock()
}

// RemoveClient удаляет клиента и закрывает соединение
func (h *Hub) RemoveClient(tenantID string, conn *websocket.Conn) {
	h.mutex.Lock()
	if room, ok := h.rooms[tenantID]; ok {
		if _, ok := room[conn]; ok {
			delete(room, conn)
			conn.Close()
		}
		if len(room) == 0 {
			delete(h.rooms, tenantID)
		}
	}
	h.mutex.Unlock()
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for tenantID, room := range h.rooms {
		for conn := range room {
			conn.Close()
		}
		delete(h.rooms, tenantID)
	}
}

// BroadcastToTenant отправляет сообщение всем дашбордам пиццерии
func (h *Hub) BroadcastToTenant(tenantID string, message []byte) {
	select {
	case h.broadcast <- tenantMessage{tenantID: tenantID, payload: message}:
	default:
		// Если канал переполнен, пропускаем сообщение (не блокируем)
		log.Printf("⚠️ WS broadcast канал переполнен, сообщение для tenant %s пропущено", tenantID)
	}
}

// BroadcastEvent сериализует {"type", "data"} и отправляет пиццерии
func (h *Hub) BroadcastEvent(tenantID, eventType string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":      eventType,
		"data":      data,
		"timestamp": time.Now().UTC(),
	})
	if err != nil {
		log.Printf("⚠️ Не удалось сериализовать WS событие %s: %v", eventType, err)
		return
	}
	h.BroadcastToTenant(tenantID, payload)
}

// GetClientsCount возвращает количество подключений пиццерии
func (h *Hub) GetClientsCount(tenantID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[tenantID])
}

// GetTotalClients возвращает количество подключений по всем пиццериям
func (h *Hub) GetTotalClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	total := 0
	for _, room := range h.rooms {
		total += len(room)
	}
	return total
}
