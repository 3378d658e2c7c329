package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pizzaria/internal/services"
)

// RecipeController управляет API endpoints для технологических карт
type RecipeController struct {
	recipeService *services.RecipeService
}

// NewRecipeController создает новый контроллер рецептов
func NewRecipeController(recipeService *services.RecipeService) *RecipeController {
	return &RecipeController{
		recipeService: recipeService,
	}
}

// GetRecipes возвращает рецепты с ингредиентами
// GET /api/v1/recipes?include_deleted=true
func (rc *RecipeController) GetRecipes(c *gin.Context) {
	includeDeleted, _ := strconv.ParseBool(c.DefaultQuery("include_deleted", "false"))

	recipes, err := rc.recipeService.List(currentTenantID(c), includeDeleted)
	if err != nil {
		respondError(c, "Ошибка получения рецептов", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipes": recipes,
		"count":   len(recipes),
	})
}

// GetRecipe возвращает рецепт по ID
// GET /api/v1/recipes/:id
func (rc *RecipeController) GetRecipe(c *gin.Context) {
	recipe, err := rc.recipeService.Get(currentTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, "Рецепт не найден", err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// CreateRecipe создает рецепт
// POST /api/v1/recipes
func (rc *RecipeController) CreateRecipe(c *gin.Context) {
	var req services.RecipeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	recipe, err := rc.recipeService.Create(currentTenantID(c), req)
	if err != nil {
		respondError(c, "Ошибка создания рецепта", err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

// UpdateRecipe полностью заменяет рецепт вместе с ингредиентами
// PUT /api/v1/recipes/:id
func (rc *RecipeController) UpdateRecipe(c *gin.Context) {
	var req services.RecipeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	recipe, err := rc.recipeService.Update(currentTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, "Ошибка обновления рецепта", err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe мягко удаляет рецепт
// DELETE /api/v1/recipes/:id
func (rc *RecipeController) DeleteRecipe(c *gin.Context) {
	if err := rc.recipeService.Delete(currentTenantID(c), c.Param("id")); err != nil {
		respondError(c, "Ошибка удаления рецепта", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Рецепт удален"})
}

// RestoreRecipe восстанавливает удаленный рецепт
// POST /api/v1/recipes/:id/restore
func (rc *RecipeController) RestoreRecipe(c *gin.Context) {
	recipe, err := rc.recipeService.Restore(currentTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, "Ошибка восстановления рецепта", err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// GetCapacity возвращает, сколько порций можно приготовить из текущих остатков
// GET /api/v1/recipes/:id/capacity
func (rc *RecipeController) GetCapacity(c *gin.Context) {
	tenantID := currentTenantID(c)
	recipe, err := rc.recipeService.Get(tenantID, c.Param("id"))
	if err != nil {
		respondError(c, "Рецепт не найден", err)
		return
	}

	result, err := rc.recipeService.Capacity(tenantID, recipe.ID)
	if err != nil {
		respondError(c, "Ошибка расчета мощности", err)
		return
	}
	c.JSON(http.StatusOK, services.RecipeCapacity{
		RecipeID:       recipe.ID,
		RecipeName:     recipe.Name,
		Type:           string(recipe.Type),
		CapacityResult: result,
	})
}

// GetCost возвращает себестоимость и маржу рецепта
// GET /api/v1/recipes/:id/cost
func (rc *RecipeController) GetCost(c *gin.Context) {
	cost, err := rc.recipeService.Cost(currentTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, "Ошибка расчета себестоимости", err)
		return
	}
	c.JSON(http.StatusOK, cost)
}

// GetCapacityOverview возвращает мощность всех активных рецептов, меньшие первыми
// GET /api/v1/recipes/capacity
func (rc *RecipeController) GetCapacityOverview(c *gin.Context) {
	overview, err := rc.recipeService.CapacityOverview(currentTenantID(c))
	if err != nil {
		respondError(c, "Ошибка расчета мощности", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recipes": overview,
		"count":   len(overview),
	})
}

// RefreshCapacities пересчитывает сохраненные мощности всех рецептов
// POST /api/v1/recipes/capacity/refresh
func (rc *RecipeController) RefreshCapacities(c *gin.Context) {
	if err := rc.recipeService.RefreshAllCapacities(currentTenantID(c)); err != nil {
		respondError(c, "Ошибка пересчета мощности", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Мощность пересчитана"})
}
