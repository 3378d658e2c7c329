package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pizzaria/internal/models"
	"pizzaria/internal/services"
)

func startWSServer(t *testing.T, hub *Hub, checker TenantChecker) (*httptest.Server, string) {
	t.Helper()
	tokens := newTestTokens()
	wc := NewWSController(hub, tokens, checker)

	router := gin.New()
	router.GET("/ws", wc.ServeWS)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	token := issueToken(t, tokens, "tenant-1", string(models.RoleStaff))
	return server, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
}

func waitForClients(t *testing.T, hub *Hub, tenantID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientsCount(tenantID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients for %s = %d, want %d", tenantID, hub.GetClientsCount(tenantID), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesTenantDashboard(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	_, url := startWSServer(t, hub, &fakeTenantChecker{operational: map[string]bool{"tenant-1": true}})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, "tenant-1", 1)

	hub.BroadcastEvent("tenant-2", "stock_entry", gin.H{"ingredient_id": "foreign"})
	hub.BroadcastEvent("tenant-1", "low_stock", gin.H{"ingredient_id": "ing-cheese"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "low_stock" || msg.Data["ingredient_id"] != "ing-cheese" {
		t.Errorf("unexpected message %s", payload)
	}
}

func TestHub_RemoveClientOnDisconnect(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	_, url := startWSServer(t, hub, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForClients(t, hub, "tenant-1", 1)

	conn.Close()
	waitForClients(t, hub, "tenant-1", 0)
	if hub.GetTotalClients() != 0 {
		t.Errorf("total clients = %d, want 0", hub.GetTotalClients())
	}
}

func TestWSController_RejectsBadToken(t *testing.T) {
	hub := NewHub()
	server, _ := startWSServer(t, hub, nil)

	resp, err := http.Get(server.URL + "/ws?token=garbage")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestWSController_RejectsSuspendedTenant(t *testing.T) {
	hub := NewHub()
	_, url := startWSServer(t, hub, &fakeTenantChecker{operational: map[string]bool{}})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected status %d, got %v", http.StatusForbidden, resp)
	}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingBroadcaster) BroadcastEvent(tenantID, eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, tenantID+"/"+eventType)
}

func TestForwardStockEvent(t *testing.T) {
	target := &recordingBroadcaster{}

	valid, _ := json.Marshal(services.StockEvent{
		Type:       services.EventSaleRecorded,
		TenantID:   "tenant-1",
		RecipeID:   "rec-1",
		Quantity:   2,
		OccurredAt: time.Now(),
	})

	tests := []struct {
		name    string
		payload []byte
		want    bool
	}{
		{"valid event", valid, true},
		{"not json", []byte("nope"), false},
		{"missing tenant", []byte(`{"type":"stock_entry"}`), false},
		{"missing type", []byte(`{"tenant_id":"tenant-1"}`), false},
	}
	for _, tt := range tests {
		if got := forwardStockEvent(target, tt.payload); got != tt.want {
			t.Errorf("%s: forwardStockEvent = %v, want %v", tt.name, got, tt.want)
		}
	}

	if len(target.events) != 1 || target.events[0] != "tenant-1/sale_recorded" {
		t.Errorf("forwarded events = %v", target.events)
	}
}

func TestParseKafkaBrokers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"localhost:9092", []string{"localhost:9092"}},
		{"a:9092, b:9092,,c:9092 ", []string{"a:9092", "b:9092", "c:9092"}},
	}
	for _, tt := range tests {
		got := ParseKafkaBrokers(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("ParseKafkaBrokers(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseKafkaBrokers(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestNewKafkaWriterWithoutBrokers(t *testing.T) {
	if w := NewKafkaWriter("", "stock-events", "", "", ""); w != nil {
		t.Error("expected nil writer when no brokers are configured")
	}
}
