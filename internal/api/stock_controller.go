package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/services"
)

// StockController управляет API endpoints остатков: поступления, инвентаризация, движения
type StockController struct {
	ingredientService *services.IngredientService
}

// NewStockController создает новый контроллер остатков
func NewStockController(ingredientService *services.IngredientService) *StockController {
	return &StockController{
		ingredientService: ingredientService,
	}
}

// StockEntryRequest - поступление ингредиента
type StockEntryRequest struct {
	Quantity float64 `json:"quantity" binding:"required"`
	Notes    string  `json:"notes"`
}

// StockAdjustRequest - новое абсолютное значение остатка после инвентаризации
type StockAdjustRequest struct {
	NewStock *float64 `json:"new_stock" binding:"required"`
	Notes    string   `json:"notes"`
}

// AddEntry оприходует поступление
// POST /api/v1/ingredients/:id/entries
func (sc *StockController) AddEntry(c *gin.Context) {
	var req StockEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ing, err := sc.ingredientService.AddStock(currentTenantID(c), c.Param("id"), req.Quantity, performedBy(c), req.Notes)
	if err != nil {
		respondError(c, "Ошибка оприходования", err)
		return
	}
	c.JSON(http.StatusOK, services.NewIngredientView(*ing))
}

// Adjust устанавливает остаток по результату инвентаризации
// POST /api/v1/ingredients/:id/adjust
func (sc *StockController) Adjust(c *gin.Context) {
	var req StockAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ing, err := sc.ingredientService.AdjustStock(currentTenantID(c), c.Param("id"), *req.NewStock, performedBy(c), req.Notes)
	if err != nil {
		respondError(c, "Ошибка корректировки остатка", err)
		return
	}
	c.JSON(http.StatusOK, services.NewIngredientView(*ing))
}

// Movements возвращает историю движений ингредиента
// GET /api/v1/ingredients/:id/movements?limit=50
func (sc *StockController) Movements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	movements, err := sc.ingredientService.Movements(currentTenantID(c), c.Param("id"), limit)
	if err != nil {
		respondError(c, "Ошибка получения движений", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"movements": movements,
		"count":     len(movements),
	})
}

// LowStock возвращает ингредиенты, требующие внимания (critical, danger, warning)
// GET /api/v1/stock/alerts
func (sc *StockController) LowStock(c *gin.Context) {
	items, err := sc.ingredientService.LowStock(currentTenantID(c))
	if err != nil {
		respondError(c, "Ошибка получения уведомлений", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts": items,
		"count":  len(items),
	})
}
