package inventory

import "testing"

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		min     float64
		want    StockStatus
	}{
		{"zero stock is critical", 0, 10, StatusCritical},
		{"zero stock with zero minimum is critical", 0, 0, StatusCritical},
		{"negative stock is critical", -1, 10, StatusCritical},
		{"half of minimum is danger", 5, 10, StatusDanger},
		{"below half is danger", 2, 10, StatusDanger},
		{"equal to minimum is warning", 10, 10, StatusWarning},
		{"just above half is warning", 5.01, 10, StatusWarning},
		{"above minimum is ok", 10.5, 10, StatusOK},
		{"no minimum configured is ok", 0.001, 0, StatusOK},
		{"large stock without minimum is ok", 1000, 0, StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyStock(tt.current, tt.min); got != tt.want {
				t.Errorf("ClassifyStock(%v, %v) = %q, want %q", tt.current, tt.min, got, tt.want)
			}
		})
	}
}

func TestClassifyStock_Boundaries(t *testing.T) {
	for _, min := range []float64{0.5, 1, 3, 7.5, 120} {
		if got := ClassifyStock(min, min); got != StatusWarning {
			t.Errorf("min=%v: expected warning at minimum, got %q", min, got)
		}
		if got := ClassifyStock(min*0.5, min); got != StatusDanger {
			t.Errorf("min=%v: expected danger at half minimum, got %q", min, got)
		}
		if got := ClassifyStock(0, min); got != StatusCritical {
			t.Errorf("min=%v: expected critical at zero, got %q", min, got)
		}
	}
}

func TestDescribe(t *testing.T) {
	seenColors := map[string]bool{}
	seenIcons := map[string]bool{}

	for _, status := range []StockStatus{StatusCritical, StatusDanger, StatusWarning, StatusOK} {
		info := Describe(status)
		if info.Status != status {
			t.Errorf("expected status %q, got %q", status, info.Status)
		}
		if info.Color == "" || info.Icon == "" || info.Label == "" {
			t.Errorf("status %q has empty display metadata: %+v", status, info)
		}
		seenColors[info.Color] = true
		seenIcons[info.Icon] = true
	}

	if len(seenColors) != 4 || len(seenIcons) != 4 {
		t.Fatalf("expected four distinct colors and icons, got %d/%d", len(seenColors), len(seenIcons))
	}

	if StatusColor("unknown") != StatusColor(StatusOK) {
		t.Errorf("unknown status should fall back to ok color")
	}
}

func TestStockPercentage(t *testing.T) {
	tests := []struct {
		current, min float64
		want         int
	}{
		{5, 0, 100},
		{0, 0, 100},
		{5, 10, 50},
		{10, 10, 100},
		{1, 3, 33},
		{2, 3, 67},
		{25, 10, 250},
	}

	for _, tt := range tests {
		if got := StockPercentage(tt.current, tt.min); got != tt.want {
			t.Errorf("StockPercentage(%v, %v) = %d, want %d", tt.current, tt.min, got, tt.want)
		}
	}
}

func TestNeedsAttention(t *testing.T) {
	if StatusOK.NeedsAttention() {
		t.Errorf("ok must not need attention")
	}
	for _, s := range []StockStatus{StatusCritical, StatusDanger, StatusWarning} {
		if !s.NeedsAttention() {
			t.Errorf("%q must need attention", s)
		}
	}
}
