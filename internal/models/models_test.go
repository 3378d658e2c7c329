package models

import (
	"testing"
	"time"
)

func TestTenantCanTransitionTo(t *testing.T) {
	tests := []struct {
		from TenantStatus
		to   TenantStatus
		want bool
	}{
		{TenantTrialing, TenantActive, true},
		{TenantTrialing, TenantSuspended, true},
		{TenantActive, TenantPastDue, true},
		{TenantActive, TenantTrialing, false},
		{TenantPastDue, TenantActive, true},
		{TenantSuspended, TenantActive, true},
		{TenantSuspended, TenantPastDue, false},
		{TenantCancelled, TenantActive, false},
		{TenantCancelled, TenantTrialing, false},
		{TenantActive, TenantActive, false},
	}

	for _, tt := range tests {
		tenant := &Tenant{Status: tt.from}
		if got := tenant.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTenantStatusIsOperational(t *testing.T) {
	operational := map[TenantStatus]bool{
		TenantTrialing:  true,
		TenantActive:    true,
		TenantPastDue:   true,
		TenantSuspended: false,
		TenantCancelled: false,
	}
	for status, want := range operational {
		if got := status.IsOperational(); got != want {
			t.Errorf("%s: got %v, want %v", status, got, want)
		}
	}
}

func TestTenantTrialExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if !(&Tenant{Status: TenantTrialing, TrialEndsAt: &past}).TrialExpired(now) {
		t.Errorf("trial ended an hour ago must be expired")
	}
	if !(&Tenant{Status: TenantTrialing, TrialEndsAt: &now}).TrialExpired(now) {
		t.Errorf("trial ending exactly now must be expired")
	}
	if (&Tenant{Status: TenantTrialing, TrialEndsAt: &future}).TrialExpired(now) {
		t.Errorf("future trial end must not be expired")
	}
	if (&Tenant{Status: TenantActive, TrialEndsAt: &past}).TrialExpired(now) {
		t.Errorf("active tenants are never trial-expired")
	}
	if (&Tenant{Status: TenantTrialing}).TrialExpired(now) {
		t.Errorf("trial without end date must not expire")
	}
}

func TestParseUnit(t *testing.T) {
	tests := map[string]Unit{
		"kg":      UnitKilogram,
		" KG ":    UnitKilogram,
		"l":       UnitLiter,
		"L":       UnitLiter,
		"ml":      UnitMilliliter,
		"unit":    UnitPiece,
		"unidade": UnitPiece,
		"шт":      UnitPiece,
	}
	for raw, want := range tests {
		got, ok := ParseUnit(raw)
		if !ok || got != want {
			t.Errorf("ParseUnit(%q) = %q/%v, want %q", raw, got, ok, want)
		}
	}

	for _, raw := range []string{"", "lb", "oz", "cups"} {
		if _, ok := ParseUnit(raw); ok {
			t.Errorf("ParseUnit(%q) must be rejected", raw)
		}
	}
}

func TestRoles(t *testing.T) {
	if !RoleOwner.CanManageStock() || !RoleManager.CanManageStock() {
		t.Errorf("owner and manager manage stock")
	}
	if RoleStaff.CanManageStock() {
		t.Errorf("staff must not manage stock")
	}
	if RolePlatformAdmin.IsValid() {
		t.Errorf("platform admin is not a tenant user role")
	}
	if !RecipePizza.IsValid() || !RecipeEsfiha.IsValid() || RecipeType("calzone").IsValid() {
		t.Errorf("unexpected recipe type validation")
	}
}
