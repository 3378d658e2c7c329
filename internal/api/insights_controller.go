package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/services"
)

// InsightsController - сводка склада для дашборда
type InsightsController struct {
	insightsService *services.InsightsService
}

func NewInsightsController(insightsService *services.InsightsService) *InsightsController {
	return &InsightsController{insightsService: insightsService}
}

// Dashboard возвращает статусы остатков, мощности, узкие места и продажи за сегодня
// GET /api/v1/insights/dashboard
func (ic *InsightsController) Dashboard(c *gin.Context) {
	dashboard, err := ic.insightsService.Dashboard(currentTenantID(c))
	if err != nil {
		respondError(c, "Ошибка построения дашборда", err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// Snapshot возвращает краткую текстовую сводку склада
// GET /api/v1/insights/snapshot
func (ic *InsightsController) Snapshot(c *gin.Context) {
	text, err := ic.insightsService.Snapshot(currentTenantID(c))
	if err != nil {
		respondError(c, "Ошибка построения сводки", err)
		return
	}
	c.String(http.StatusOK, text)
}
