package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/inventory"
)

func capacityRouter() *gin.Engine {
	cc := NewCapacityController()
	router := gin.New()
	router.POST("/capacity/calculate", cc.Calculate)
	router.POST("/capacity/validate-sale", cc.ValidateSale)
	router.GET("/capacity/stock-status", cc.ClassifyStock)
	return router
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var margherita = []inventory.Requirement{
	{IngredientID: "ing-dough", IngredientName: "Тесто", QuantityNeeded: 250, CurrentStock: 2000, Unit: "g"},
	{IngredientID: "ing-cheese", IngredientName: "Моцарелла", QuantityNeeded: 120, CurrentStock: 500, Unit: "g"},
	{IngredientID: "ing-sauce", IngredientName: "Томатный соус", QuantityNeeded: 80, CurrentStock: 1000, Unit: "g"},
}

func TestCapacityController_Calculate(t *testing.T) {
	w := postJSON(t, capacityRouter(), "/capacity/calculate", CalculateRequest{Requirements: margherita})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var got inventory.CapacityResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Capacity != 4 {
		t.Errorf("capacity = %d, want 4", got.Capacity)
	}
	if got.LimitingIngredientID == nil || *got.LimitingIngredientID != "ing-cheese" {
		t.Errorf("limiting ingredient = %v, want ing-cheese", got.LimitingIngredientID)
	}
}

func TestCapacityController_CalculateEmpty(t *testing.T) {
	w := postJSON(t, capacityRouter(), "/capacity/calculate", CalculateRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["capacity"].(float64) != 0 {
		t.Errorf("capacity = %v, want 0", body["capacity"])
	}
	if body["limiting_ingredient_id"] != nil {
		t.Errorf("limiting_ingredient_id = %v, want null", body["limiting_ingredient_id"])
	}
}

func TestCapacityController_CalculateBadJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/capacity/calculate", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	capacityRouter().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCapacityController_ValidateSale(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		wantValid bool
		wantShort string
	}{
		{"fits", 4, true, ""},
		{"cheese runs out", 5, false, "Моцарелла"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, capacityRouter(), "/capacity/validate-sale", ValidateSaleRequest{
				Requirements: margherita,
				Quantity:     tt.quantity,
			})
			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			var got inventory.SaleValidation
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", got.Valid, tt.wantValid)
			}
			if got.InsufficientIngredient != tt.wantShort {
				t.Errorf("insufficient = %q, want %q", got.InsufficientIngredient, tt.wantShort)
			}
		})
	}
}

func TestCapacityController_ClassifyStock(t *testing.T) {
	tests := []struct {
		query   string
		code    int
		status  string
		percent float64
	}{
		{"current=0&min=10", http.StatusOK, "critical", 0},
		{"current=5&min=10", http.StatusOK, "danger", 50},
		{"current=8&min=10", http.StatusOK, "warning", 80},
		{"current=15&min=10", http.StatusOK, "ok", 150},
		{"current=3", http.StatusOK, "ok", 100},
		{"current=abc", http.StatusBadRequest, "", 0},
		{"current=1&min=x", http.StatusBadRequest, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/capacity/stock-status?"+tt.query, nil)
			w := httptest.NewRecorder()
			capacityRouter().ServeHTTP(w, req)

			if w.Code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, w.Code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body["status"] != tt.status {
				t.Errorf("status = %v, want %s", body["status"], tt.status)
			}
			if body["stock_percentage"].(float64) != tt.percent {
				t.Errorf("stock_percentage = %v, want %v", body["stock_percentage"], tt.percent)
			}
		})
	}
}

func TestParseDateParam(t *testing.T) {
	if got, err := parseDateParam("", false); err != nil || got != nil {
		t.Errorf("empty value: got (%v, %v), want (nil, nil)", got, err)
	}

	from, err := parseDateParam("2024-03-10", false)
	if err != nil {
		t.Fatalf("parse from: %v", err)
	}
	if !from.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}

	to, err := parseDateParam("2024-03-10", true)
	if err != nil {
		t.Fatalf("parse to: %v", err)
	}
	if !to.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end of range = %v, want next midnight", to)
	}

	exact, err := parseDateParam("2024-03-10T15:04:05Z", true)
	if err != nil {
		t.Fatalf("parse rfc3339: %v", err)
	}
	if !exact.Equal(time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)) {
		t.Errorf("rfc3339 value shifted: %v", exact)
	}

	if _, err := parseDateParam("10.03.2024", false); err == nil {
		t.Error("expected error for unsupported format")
	}
}
