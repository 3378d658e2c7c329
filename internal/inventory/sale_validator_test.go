package inventory

import (
	"strings"
	"testing"
)

func TestValidateSale_EmptyRequirements(t *testing.T) {
	for _, n := range []int{1, 2, 50} {
		got := ValidateSale(nil, n)
		if got.Valid {
			t.Fatalf("sale of %d with no ingredients must be invalid", n)
		}
		if got.Message != MessageNoIngredients {
			t.Errorf("unexpected message %q", got.Message)
		}
		if got.InsufficientIngredient != "" {
			t.Errorf("no ingredient should be reported, got %q", got.InsufficientIngredient)
		}
	}
}

func TestValidateSale_InsufficientStock(t *testing.T) {
	reqs := []Requirement{{IngredientName: "Mussarela", QuantityNeeded: 5, CurrentStock: 12, Unit: "g"}}

	got := ValidateSale(reqs, 3)
	if got.Valid {
		t.Fatalf("15 required vs 12 in stock must be invalid")
	}
	if got.InsufficientIngredient != "Mussarela" {
		t.Errorf("expected Mussarela, got %q", got.InsufficientIngredient)
	}
	if !strings.Contains(got.Message, "15") || !strings.Contains(got.Message, "12") {
		t.Errorf("message should mention required and available amounts: %q", got.Message)
	}
}

func TestValidateSale_ReportsFirstFailure(t *testing.T) {
	reqs := []Requirement{
		{IngredientName: "Farinha", QuantityNeeded: 1, CurrentStock: 10, Unit: "kg"},
		{IngredientName: "Tomate", QuantityNeeded: 2, CurrentStock: 1, Unit: "kg"},
		{IngredientName: "Calabresa", QuantityNeeded: 3, CurrentStock: 0, Unit: "kg"},
	}

	got := ValidateSale(reqs, 1)
	if got.Valid {
		t.Fatalf("expected invalid sale")
	}
	if got.InsufficientIngredient != "Tomate" {
		t.Fatalf("expected first failing ingredient Tomate, got %q", got.InsufficientIngredient)
	}
}

func TestValidateSale_ExactStockIsEnough(t *testing.T) {
	reqs := []Requirement{
		{IngredientName: "Massa", QuantityNeeded: 0.25, CurrentStock: 1, Unit: "kg"},
		{IngredientName: "Molho", QuantityNeeded: 100, CurrentStock: 400, Unit: "ml"},
	}

	got := ValidateSale(reqs, 4)
	if !got.Valid {
		t.Fatalf("expected valid sale, got %+v", got)
	}
	if got.Message != "" || got.InsufficientIngredient != "" {
		t.Errorf("valid result must not carry a failure: %+v", got)
	}
}

func TestValidateSale_NonPositiveQuantity(t *testing.T) {
	reqs := []Requirement{{IngredientName: "Massa", QuantityNeeded: 1, CurrentStock: 1, Unit: "un"}}

	for _, n := range []int{0, -3} {
		got := ValidateSale(reqs, n)
		if got.Valid {
			t.Errorf("quantity %d must be invalid", n)
		}
		if got.Message != MessageInvalidQuantity {
			t.Errorf("unexpected message %q", got.Message)
		}
	}
}

func TestInsufficientMessage_Formatting(t *testing.T) {
	msg := InsufficientMessage(Requirement{IngredientName: "Azeite", CurrentStock: 0.5, Unit: "L"}, 0.75)
	if !strings.Contains(msg, "0.75 L") || !strings.Contains(msg, "0.50 L") {
		t.Fatalf("unexpected message %q", msg)
	}
}
