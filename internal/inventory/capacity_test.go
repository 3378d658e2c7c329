package inventory

import (
	"math"
	"testing"
)

func req(id string, need, stock float64) Requirement {
	return Requirement{
		IngredientID:   id,
		IngredientName: "ingredient-" + id,
		QuantityNeeded: need,
		CurrentStock:   stock,
		Unit:           "g",
	}
}

func TestCalculateCapacity_Empty(t *testing.T) {
	got := CalculateCapacity(nil)
	if got.Capacity != 0 {
		t.Fatalf("expected capacity 0, got %d", got.Capacity)
	}
	if got.LimitingIngredientID != nil || got.LimitingIngredientName != nil {
		t.Fatalf("expected no limiting ingredient, got %v", got.LimitingIngredientName)
	}

	got = CalculateCapacity([]Requirement{})
	if got.Capacity != 0 || got.LimitingIngredientID != nil {
		t.Fatalf("expected zero result for empty slice, got %+v", got)
	}
}

func TestCalculateCapacity_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		reqs         []Requirement
		wantCapacity int
		wantLimiting string
	}{
		{
			name:         "single ingredient floors the ratio",
			reqs:         []Requirement{req("a", 3, 10)},
			wantCapacity: 3,
			wantLimiting: "a",
		},
		{
			name:         "second ingredient is the bottleneck",
			reqs:         []Requirement{req("a", 2, 10), req("b", 3, 9)},
			wantCapacity: 3,
			wantLimiting: "b",
		},
		{
			name:         "fractional quantities",
			reqs:         []Requirement{req("dough", 0.25, 1.1), req("cheese", 0.12, 5)},
			wantCapacity: 4,
			wantLimiting: "dough",
		},
		{
			name:         "zero stock gives zero capacity",
			reqs:         []Requirement{req("a", 1, 50), req("b", 0.5, 0)},
			wantCapacity: 0,
			wantLimiting: "b",
		},
		{
			name:         "zero quantity is skipped",
			reqs:         []Requirement{req("a", 0, 1), req("b", 2, 8)},
			wantCapacity: 4,
			wantLimiting: "b",
		},
		{
			name:         "negative quantity is skipped",
			reqs:         []Requirement{req("a", -1, 100), req("b", 5, 26)},
			wantCapacity: 5,
			wantLimiting: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCapacity(tt.reqs)
			if got.Capacity != tt.wantCapacity {
				t.Errorf("capacity: expected %d, got %d", tt.wantCapacity, got.Capacity)
			}
			if got.LimitingIngredientID == nil {
				t.Fatalf("expected limiting ingredient %q, got nil", tt.wantLimiting)
			}
			if *got.LimitingIngredientID != tt.wantLimiting {
				t.Errorf("limiting: expected %q, got %q", tt.wantLimiting, *got.LimitingIngredientID)
			}
			if *got.LimitingIngredientName != "ingredient-"+tt.wantLimiting {
				t.Errorf("limiting name: got %q", *got.LimitingIngredientName)
			}
		})
	}
}

func TestCalculateCapacity_OnlyNonConstrainingRequirements(t *testing.T) {
	for _, reqs := range [][]Requirement{
		{req("a", 0, 10)},
		{req("a", 0, 10), req("b", -2, 3)},
	} {
		got := CalculateCapacity(reqs)
		if got.Capacity != 0 {
			t.Errorf("expected capacity 0, got %d", got.Capacity)
		}
		if got.LimitingIngredientID != nil {
			t.Errorf("expected nil limiting ingredient, got %q", *got.LimitingIngredientID)
		}
	}
}

func TestCalculateCapacity_TieKeepsFirst(t *testing.T) {
	reqs := []Requirement{req("x", 2, 8), req("y", 1, 4), req("z", 4, 16)}

	got := CalculateCapacity(reqs)
	if got.Capacity != 4 {
		t.Fatalf("expected capacity 4, got %d", got.Capacity)
	}
	if *got.LimitingIngredientID != "x" {
		t.Fatalf("expected first tied ingredient x, got %q", *got.LimitingIngredientID)
	}

	reversed := []Requirement{reqs[2], reqs[1], reqs[0]}
	got = CalculateCapacity(reversed)
	if *got.LimitingIngredientID != "z" {
		t.Fatalf("expected first tied ingredient z after reorder, got %q", *got.LimitingIngredientID)
	}
}

func TestCalculateCapacity_OrderInvariantForDistinctValues(t *testing.T) {
	reqs := []Requirement{req("a", 1, 10), req("b", 1, 3), req("c", 2, 14)}
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {2, 0, 1}}

	for _, order := range orders {
		shuffled := make([]Requirement, 0, len(reqs))
		for _, i := range order {
			shuffled = append(shuffled, reqs[i])
		}
		got := CalculateCapacity(shuffled)
		if got.Capacity != 3 || *got.LimitingIngredientID != "b" {
			t.Errorf("order %v: expected 3/b, got %d/%v", order, got.Capacity, *got.LimitingIngredientID)
		}
	}
}

func TestCalculateCapacity_MatchesMinimumOfFloors(t *testing.T) {
	reqs := []Requirement{
		req("a", 0.3, 7.7),
		req("b", 1.5, 40),
		req("c", 0.07, 2.2),
		req("d", 12, 300),
	}

	want := math.MaxInt
	for _, r := range reqs {
		v := int(math.Floor(r.CurrentStock / r.QuantityNeeded))
		if v < want {
			want = v
		}
	}

	if got := CalculateCapacity(reqs); got.Capacity != want {
		t.Fatalf("expected %d, got %d", want, got.Capacity)
	}
}

func TestCalculateCapacity_LargeResultNotTruncated(t *testing.T) {
	got := CalculateCapacity([]Requirement{
		req("a", 1, 5e9),
		req("b", 2, 9e9),
	})
	if got.Capacity != 4_500_000_000 {
		t.Fatalf("expected 4500000000, got %d", got.Capacity)
	}
	if *got.LimitingIngredientID != "b" {
		t.Errorf("expected limiting b, got %s", *got.LimitingIngredientID)
	}

	if huge := CalculateCapacity([]Requirement{req("a", 1e-300, 1e300)}); huge.Capacity != math.MaxInt {
		t.Errorf("expected clamp to MaxInt, got %d", huge.Capacity)
	}
}

func TestCalculateCapacity_NegativeStockClampsToZero(t *testing.T) {
	got := CalculateCapacity([]Requirement{req("a", 2, -5)})
	if got.Capacity != 0 {
		t.Fatalf("expected 0 for negative stock, got %d", got.Capacity)
	}
	if got.LimitingIngredientID == nil || *got.LimitingIngredientID != "a" {
		t.Fatalf("expected limiting ingredient a")
	}
}

func TestSortByIngredientID(t *testing.T) {
	reqs := []Requirement{req("c", 1, 1), req("a", 1, 1), req("b", 1, 1)}

	sorted := SortByIngredientID(reqs)
	for i, id := range []string{"a", "b", "c"} {
		if sorted[i].IngredientID != id {
			t.Fatalf("position %d: expected %q, got %q", i, id, sorted[i].IngredientID)
		}
	}
	if reqs[0].IngredientID != "c" {
		t.Fatalf("input slice must not be modified")
	}
}
