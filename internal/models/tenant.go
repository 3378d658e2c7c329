package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantStatus - статус подписки пиццерии на платформе
type TenantStatus string

const (
	TenantTrialing  TenantStatus = "trialing"
	TenantActive    TenantStatus = "active"
	TenantPastDue   TenantStatus = "past_due"
	TenantSuspended TenantStatus = "suspended"
	TenantCancelled TenantStatus = "cancelled"
)

// TenantPlan - тарифный план
type TenantPlan string

const (
	PlanTrial    TenantPlan = "trial"
	PlanBasic    TenantPlan = "basic"
	PlanPro      TenantPlan = "pro"
	PlanBusiness TenantPlan = "business"
)

// tenantTransitions - разрешенные переходы статуса (State Machine).
// cancelled терминальный.
var tenantTransitions = map[TenantStatus][]TenantStatus{
	TenantTrialing:  {TenantActive, TenantPastDue, TenantSuspended, TenantCancelled},
	TenantActive:    {TenantPastDue, TenantSuspended, TenantCancelled},
	TenantPastDue:   {TenantActive, TenantSuspended, TenantCancelled},
	TenantSuspended: {TenantActive, TenantCancelled},
}

// Tenant - пиццерия, арендатор платформы. Все данные склада привязаны к tenant_id.
type Tenant struct {
	ID              string         `json:"id" gorm:"type:uuid;primaryKey"`
	Name            string         `json:"name" gorm:"type:varchar(255);not null"`
	Slug            string         `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	OwnerEmail      string         `json:"owner_email" gorm:"type:varchar(255);not null"`
	Plan            TenantPlan     `json:"plan" gorm:"type:varchar(20);not null;default:'trial'"`
	Status          TenantStatus   `json:"status" gorm:"type:varchar(20);not null;default:'trialing';index"`
	TrialEndsAt     *time.Time     `json:"trial_ends_at" gorm:"index"`
	SuspendedAt     *time.Time     `json:"suspended_at"`
	SuspendedReason string         `json:"suspended_reason" gorm:"type:text"`
	CancelledAt     *time.Time     `json:"cancelled_at"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName указывает имя таблицы
func (Tenant) TableName() string {
	return "tenants"
}

// BeforeCreate генерирует UUID
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// CanTransitionTo проверяет, разрешен ли переход статуса
func (t *Tenant) CanTransitionTo(newStatus TenantStatus) bool {
	for _, allowed := range tenantTransitions[t.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// IsOperational - может ли пиццерия работать со складом
func (s TenantStatus) IsOperational() bool {
	return s == TenantTrialing || s == TenantActive || s == TenantPastDue
}

// IsValid проверяет, что статус из известного набора
func (s TenantStatus) IsValid() bool {
	switch s {
	case TenantTrialing, TenantActive, TenantPastDue, TenantSuspended, TenantCancelled:
		return true
	}
	return false
}

// IsValid проверяет, что план из известного набора
func (p TenantPlan) IsValid() bool {
	switch p {
	case PlanTrial, PlanBasic, PlanPro, PlanBusiness:
		return true
	}
	return false
}

// TrialExpired - пробный период закончился к моменту now
func (t *Tenant) TrialExpired(now time.Time) bool {
	return t.Status == TenantTrialing && t.TrialEndsAt != nil && !t.TrialEndsAt.After(now)
}
