package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/services"
)

// SaleController управляет API endpoints продаж
type SaleController struct {
	saleService *services.SaleService
}

// NewSaleController создает новый контроллер продаж
func NewSaleController(saleService *services.SaleService) *SaleController {
	return &SaleController{saleService: saleService}
}

// SaleRequest - продажа изделия
type SaleRequest struct {
	RecipeID string `json:"recipe_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// Validate проверяет, хватает ли остатков, ничего не списывая
// POST /api/v1/sales/validate
func (sc *SaleController) Validate(c *gin.Context) {
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := sc.saleService.Validate(currentTenantID(c), req.RecipeID, req.Quantity)
	if err != nil {
		respondError(c, "Ошибка проверки продажи", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Record регистрирует продажу и списывает ингредиенты
// POST /api/v1/sales
func (sc *SaleController) Record(c *gin.Context) {
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	receipt, err := sc.saleService.RecordSale(currentTenantID(c), req.RecipeID, req.Quantity, performedBy(c))
	if err != nil {
		respondError(c, "Ошибка регистрации продажи", err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// List возвращает историю продаж
// GET /api/v1/sales?from=2024-01-01&to=2024-01-31&recipe_id=xxx&limit=100
func (sc *SaleController) List(c *gin.Context) {
	from, err := parseDateParam(c.Query("from"), false)
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	to, err := parseDateParam(c.Query("to"), true)
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))

	sales, err := sc.saleService.ListSales(currentTenantID(c), services.SaleFilter{
		From:     from,
		To:       to,
		RecipeID: c.Query("recipe_id"),
		Limit:    limit,
	})
	if err != nil {
		respondError(c, "Ошибка получения продаж", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sales": sales,
		"count": len(sales),
	})
}

// parseDateParam разбирает YYYY-MM-DD или RFC3339. Для верхней границы дата без времени включает весь день.
func parseDateParam(raw string, endOfRange bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("неверный формат даты %q, ожидается YYYY-MM-DD", raw)
	}
	if endOfRange {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
