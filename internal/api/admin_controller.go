package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/models"
	"pizzaria/internal/services"
)

// AdminController - консоль администратора платформы: арендаторы и их подписки
type AdminController struct {
	tenantService *services.TenantService
}

func NewAdminController(tenantService *services.TenantService) *AdminController {
	return &AdminController{
		tenantService: tenantService,
	}
}

// ListTenants возвращает пиццерии
// GET /api/v1/admin/tenants?status=trialing&plan=pro&search=pepe
func (ac *AdminController) ListTenants(c *gin.Context) {
	tenants, err := ac.tenantService.List(services.TenantFilter{
		Status: models.TenantStatus(c.Query("status")),
		Plan:   models.TenantPlan(c.Query("plan")),
		Search: c.Query("search"),
	})
	if err != nil {
		respondError(c, "Ошибка получения пиццерий", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenants": tenants,
		"count":   len(tenants),
	})
}

// GetTenant возвращает пиццерию по ID
// GET /api/v1/admin/tenants/:id
func (ac *AdminController) GetTenant(c *gin.Context) {
	tenant, err := ac.tenantService.Get(c.Param("id"))
	if err != nil {
		respondError(c, "Пиццерия не найдена", err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// CreateTenant регистрирует пиццерию вместе с владельцем
// POST /api/v1/admin/tenants
func (ac *AdminController) CreateTenant(c *gin.Context) {
	var req services.CreateTenantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	tenant, owner, err := ac.tenantService.CreateTenant(req)
	if err != nil {
		respondError(c, "Ошибка создания пиццерии", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"tenant": tenant,
		"owner":  owner,
	})
}

// ChangePlan меняет тарифный план
// PUT /api/v1/admin/tenants/:id/plan
func (ac *AdminController) ChangePlan(c *gin.Context) {
	var req struct {
		Plan models.TenantPlan `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	tenant, err := ac.tenantService.ChangePlan(c.Param("id"), req.Plan)
	if err != nil {
		respondError(c, "Ошибка смены плана", err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// ExtendTrial продлевает пробный период
// POST /api/v1/admin/tenants/:id/extend-trial
func (ac *AdminController) ExtendTrial(c *gin.Context) {
	var req struct {
		Days int `json:"days" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	tenant, err := ac.tenantService.ExtendTrial(c.Param("id"), req.Days)
	if err != nil {
		respondError(c, "Ошибка продления пробного периода", err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// ChangeStatus выполняет переход статуса подписки
// POST /api/v1/admin/tenants/:id/status
// Body: {"status": "active|past_due|suspended|cancelled", "reason": "..."}
func (ac *AdminController) ChangeStatus(c *gin.Context) {
	var req struct {
		Status models.TenantStatus `json:"status" binding:"required"`
		Reason string              `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	id := c.Param("id")
	var (
		tenant *models.Tenant
		err    error
	)
	switch req.Status {
	case models.TenantActive:
		tenant, err = ac.tenantService.Activate(id)
	case models.TenantPastDue:
		tenant, err = ac.tenantService.MarkPastDue(id)
	case models.TenantSuspended:
		tenant, err = ac.tenantService.Suspend(id, req.Reason)
	case models.TenantCancelled:
		tenant, err = ac.tenantService.Cancel(id)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверный статус",
			"details": "допустимо: active, past_due, suspended, cancelled",
		})
		return
	}
	if err != nil {
		respondError(c, "Ошибка смены статуса", err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// Reactivate возвращает приостановленную пиццерию в active
// POST /api/v1/admin/tenants/:id/reactivate
func (ac *AdminController) Reactivate(c *gin.Context) {
	tenant, err := ac.tenantService.Reactivate(c.Param("id"))
	if err != nil {
		respondError(c, "Ошибка восстановления пиццерии", err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// ExpireTrials вручную запускает перевод просроченных пробных периодов
// POST /api/v1/admin/tenants/expire-trials
func (ac *AdminController) ExpireTrials(c *gin.Context) {
	count, err := ac.tenantService.ExpireTrials(time.Now().UTC())
	if err != nil {
		respondError(c, "Ошибка обработки пробных периодов", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": count})
}

// GetStats возвращает сводку по платформе
// GET /api/v1/admin/stats
func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.tenantService.Stats()
	if err != nil {
		respondError(c, "Ошибка получения статистики", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
