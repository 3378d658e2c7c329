package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/inventory"
)

// CapacityController - расчеты без обращения к БД: клиент сам передает остатки и нормы
type CapacityController struct{}

func NewCapacityController() *CapacityController {
	return &CapacityController{}
}

// CalculateRequest - строки технологической карты с текущими остатками
type CalculateRequest struct {
	Requirements []inventory.Requirement `json:"requirements"`
}

// ValidateSaleRequest - строки технологической карты и количество продажи
type ValidateSaleRequest struct {
	Requirements []inventory.Requirement `json:"requirements"`
	Quantity     int                     `json:"quantity"`
}

// Calculate возвращает мощность по переданным требованиям
// POST /api/v1/capacity/calculate
func (cc *CapacityController) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, inventory.CalculateCapacity(req.Requirements))
}

// ValidateSale проверяет продажу по переданным требованиям
// POST /api/v1/capacity/validate-sale
func (cc *CapacityController) ValidateSale(c *gin.Context) {
	var req ValidateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, inventory.ValidateSale(req.Requirements, req.Quantity))
}

// ClassifyStock возвращает статус остатка
// GET /api/v1/capacity/stock-status?current=3&min=10
func (cc *CapacityController) ClassifyStock(c *gin.Context) {
	current, err := strconv.ParseFloat(c.Query("current"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Параметр current должен быть числом"})
		return
	}
	minStock, err := strconv.ParseFloat(c.DefaultQuery("min", "0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Параметр min должен быть числом"})
		return
	}

	info := inventory.Describe(inventory.ClassifyStock(current, minStock))
	c.JSON(http.StatusOK, gin.H{
		"status":           info.Status,
		"label":            info.Label,
		"color":            info.Color,
		"icon":             info.Icon,
		"stock_percentage": inventory.StockPercentage(current, minStock),
	})
}
