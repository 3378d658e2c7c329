package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/inventory"
	"pizzaria/internal/services"
)

// IngredientController управляет API endpoints справочника ингредиентов
type IngredientController struct {
	ingredientService *services.IngredientService
}

// NewIngredientController создает новый контроллер ингредиентов
func NewIngredientController(ingredientService *services.IngredientService) *IngredientController {
	return &IngredientController{ingredientService: ingredientService}
}

// List возвращает ингредиенты со статусами остатков
// GET /api/v1/ingredients?search=&category=&status=&include_deleted=true
func (ic *IngredientController) List(c *gin.Context) {
	includeDeleted, _ := strconv.ParseBool(c.DefaultQuery("include_deleted", "false"))
	filter := services.IngredientFilter{
		Search:         c.Query("search"),
		Category:       c.Query("category"),
		Status:         inventory.StockStatus(c.Query("status")),
		IncludeDeleted: includeDeleted,
	}

	items, err := ic.ingredientService.List(currentTenantID(c), filter)
	if err != nil {
		respondError(c, "Ошибка получения ингредиентов", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// Get возвращает ингредиент по ID
// GET /api/v1/ingredients/:id
func (ic *IngredientController) Get(c *gin.Context) {
	ing, err := ic.ingredientService.Get(currentTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, "Ингредиент не найден", err)
		return
	}
	c.JSON(http.StatusOK, services.NewIngredientView(*ing))
}

// Create создает ингредиент
// POST /api/v1/ingredients
func (ic *IngredientController) Create(c *gin.Context) {
	var req services.IngredientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ing, err := ic.ingredientService.Create(currentTenantID(c), req, performedBy(c))
	if err != nil {
		respondError(c, "Ошибка создания ингредиента", err)
		return
	}
	c.JSON(http.StatusCreated, services.NewIngredientView(*ing))
}

// Update частично обновляет ингредиент
// PUT /api/v1/ingredients/:id
func (ic *IngredientController) Update(c *gin.Context) {
	var req services.IngredientUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ing, err := ic.ingredientService.Update(currentTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, "Ошибка обновления ингредиента", err)
		return
	}
	c.JSON(http.StatusOK, services.NewIngredientView(*ing))
}

// Delete мягко удаляет ингредиент
// DELETE /api/v1/ingredients/:id
func (ic *IngredientController) Delete(c *gin.Context) {
	if err := ic.ingredientService.Delete(currentTenantID(c), c.Param("id")); err != nil {
		respondError(c, "Ошибка удаления ингредиента", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ингредиент удален"})
}

// Restore восстанавливает удаленный ингредиент
// POST /api/v1/ingredients/:id/restore
func (ic *IngredientController) Restore(c *gin.Context) {
	ing, err := ic.ingredientService.Restore(currentTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, "Ошибка восстановления ингредиента", err)
		return
	}
	c.JSON(http.StatusOK, services.NewIngredientView(*ing))
}
