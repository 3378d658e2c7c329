package services

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pizzaria/internal/inventory"
	"pizzaria/internal/models"
)

// RecipeService управляет технологическими картами и расчетом производственной мощности
type RecipeService struct {
	db            *gorm.DB
	capacityCache *CapacityCache
	events        *EventPublisher
}

// NewRecipeService создает новый экземпляр RecipeService
func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{db: db}
}

// SetCapacityCache устанавливает кэш мощности
func (s *RecipeService) SetCapacityCache(c *CapacityCache) {
	s.capacityCache = c
}

// SetEventPublisher устанавливает публикатор событий склада
func (s *RecipeService) SetEventPublisher(p *EventPublisher) {
	s.events = p
}

// RecipeIngredientInput - строка технологической карты во входных данных
type RecipeIngredientInput struct {
	IngredientID   string  `json:"ingredient_id"`
	QuantityNeeded float64 `json:"quantity_needed"`
}

// RecipeInput - данные для создания или полной замены рецепта
type RecipeInput struct {
	Name        string                  `json:"name" binding:"required"`
	Type        models.RecipeType       `json:"type"`
	Description string                  `json:"description"`
	SalePrice   float64                 `json:"sale_price"`
	Ingredients []RecipeIngredientInput `json:"ingredients"`
}

// RecipeCapacity - мощность одного рецепта для списков и дашборда
type RecipeCapacity struct {
	RecipeID   string `json:"recipe_id"`
	RecipeName string `json:"recipe_name"`
	Type       string `json:"type"`
	inventory.CapacityResult
}

// Normalize проверяет рецепт при сохранении.
// Калькулятор мощности пропускает quantity_needed <= 0, но сохранить такую строку нельзя.
func (in *RecipeInput) Normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: название рецепта обязательно", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = models.RecipePizza
	}
	in.Type = models.RecipeType(strings.ToLower(string(in.Type)))
	if !in.Type.IsValid() {
		return fmt.Errorf("%w: неизвестный вид изделия %q (допустимо: pizza, esfiha)", ErrInvalidInput, in.Type)
	}
	if in.SalePrice < 0 {
		return fmt.Errorf("%w: цена продажи не может быть отрицательной", ErrInvalidInput)
	}

	seen := make(map[string]bool, len(in.Ingredients))
	for i, line := range in.Ingredients {
		if line.IngredientID == "" {
			return fmt.Errorf("%w: ингредиент #%d: не указан ingredient_id", ErrInvalidInput, i+1)
		}
		if line.QuantityNeeded <= 0 {
			return fmt.Errorf("%w: ингредиент #%d: количество должно быть больше нуля", ErrInvalidInput, i+1)
		}
		if seen[line.IngredientID] {
			return fmt.Errorf("%w: дубликат ингредиента %s в рецепте", ErrInvalidInput, line.IngredientID)
		}
		seen[line.IngredientID] = true
	}
	return nil
}

// List возвращает рецепты пиццерии с ингредиентами
func (s *RecipeService) List(tenantID string, includeDeleted bool) ([]models.Recipe, error) {
	query := s.db.Where("tenant_id = ?", tenantID)
	if includeDeleted {
		query = query.Unscoped()
	}
	var recipes []models.Recipe
	if err := query.Preload("Ingredients.Ingredient").Order("name ASC").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки рецептов: %w", err)
	}
	return recipes, nil
}

// Get возвращает рецепт пиццерии с ингредиентами
func (s *RecipeService) Get(tenantID, id string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.Preload("Ingredients.Ingredient").
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&recipe).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &recipe, nil
}

// FindByName ищет рецепт по имени без учета регистра
func (s *RecipeService) FindByName(tenantID, name string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.Preload("Ingredients.Ingredient").
		Where("tenant_id = ? AND LOWER(name) = LOWER(?)", tenantID, strings.TrimSpace(name)).
		First(&recipe).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &recipe, nil
}

// Create создает рецепт со строками технологической карты в одной транзакции
func (s *RecipeService) Create(tenantID string, in RecipeInput) (*models.Recipe, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		TenantID:    tenantID,
		Name:        in.Name,
		Type:        in.Type,
		Description: in.Description,
		SalePrice:   in.SalePrice,
		IsActive:    true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.checkIngredientsBelongToTenant(tx, tenantID, in.Ingredients); err != nil {
			return err
		}
		// Omit: строки создаются вручную ниже, иначе GORM сохранит ассоциации дважды
		if err := tx.Omit("Ingredients").Create(&recipe).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", ErrDuplicate, in.Name)
			}
			return fmt.Errorf("ошибка создания рецепта: %w", err)
		}
		return createRecipeLines(tx, recipe.ID, in.Ingredients)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Рецепт создан: %s (%s, ингредиентов: %d, tenant %s)", recipe.Name, recipe.Type, len(in.Ingredients), tenantID)
	if _, err := s.RefreshCapacity(tenantID, recipe.ID); err != nil {
		log.Printf("⚠️ Расчет мощности нового рецепта %s: %v", recipe.Name, err)
	}
	return s.Get(tenantID, recipe.ID)
}

// Update заменяет поля и строки технологической карты рецепта
func (s *RecipeService) Update(tenantID, id string, in RecipeInput) (*models.Recipe, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	recipe, err := s.Get(tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.checkIngredientsBelongToTenant(tx, tenantID, in.Ingredients); err != nil {
			return err
		}
		err := tx.Model(&models.Recipe{}).Where("id = ?", recipe.ID).Updates(map[string]interface{}{
			"name":        in.Name,
			"type":        in.Type,
			"description": in.Description,
			"sale_price":  in.SalePrice,
		}).Error
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", ErrDuplicate, in.Name)
			}
			return fmt.Errorf("ошибка обновления рецепта: %w", err)
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("ошибка удаления старых ингредиентов: %w", err)
		}
		return createRecipeLines(tx, recipe.ID, in.Ingredients)
	})
	if err != nil {
		return nil, err
	}

	s.capacityCache.InvalidateTenant(tenantID)
	if _, err := s.RefreshCapacity(tenantID, recipe.ID); err != nil {
		log.Printf("⚠️ Пересчет мощности рецепта %s: %v", in.Name, err)
	}
	return s.Get(tenantID, recipe.ID)
}

// Delete мягко удаляет рецепт
func (s *RecipeService) Delete(tenantID, id string) error {
	res := s.db.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.Recipe{})
	if res.Error != nil {
		return fmt.Errorf("ошибка удаления рецепта: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.capacityCache.InvalidateTenant(tenantID)
	log.Printf("🗑️ Рецепт удален: %s (tenant %s)", id, tenantID)
	return nil
}

// Restore восстанавливает мягко удаленный рецепт
func (s *RecipeService) Restore(tenantID, id string) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.Unscoped().Where("id = ? AND tenant_id = ?", id, tenantID).First(&recipe).Error; err != nil {
		return nil, notFoundOr(err)
	}
	if recipe.DeletedAt.Valid {
		missing, err := s.deletedIngredientNames(recipe.ID)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: рецепт «%s» ссылается на удаленные ингредиенты: %s",
				ErrInUse, recipe.Name, strings.Join(missing, ", "))
		}
		if err := s.db.Unscoped().Model(&recipe).Update("deleted_at", nil).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, fmt.Errorf("%w: активный рецепт «%s» уже существует", ErrDuplicate, recipe.Name)
			}
			return nil, fmt.Errorf("ошибка восстановления рецепта: %w", err)
		}
		log.Printf("♻️ Рецепт восстановлен: %s (tenant %s)", recipe.Name, tenantID)
	}
	if _, err := s.RefreshCapacity(tenantID, id); err != nil {
		log.Printf("⚠️ Пересчет мощности восстановленного рецепта %s: %v", recipe.Name, err)
	}
	return s.Get(tenantID, id)
}

// deletedIngredientNames возвращает имена удаленных ингредиентов из технологической карты.
// Такие строки выпали бы из расчета мощности и списания.
func (s *RecipeService) deletedIngredientNames(recipeID string) ([]string, error) {
	var names []string
	err := s.db.Table("recipe_ingredients AS ri").
		Joins("JOIN ingredients i ON i.id = ri.ingredient_id").
		Where("ri.recipe_id = ? AND i.deleted_at IS NOT NULL", recipeID).
		Order("i.name ASC").
		Pluck("i.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки ингредиентов рецепта: %w", err)
	}
	return names, nil
}

// RestoreByName восстанавливает последний удаленный рецепт с указанным именем
func (s *RecipeService) RestoreByName(tenantID, name string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.Unscoped().
		Where("tenant_id = ? AND LOWER(name) = LOWER(?) AND deleted_at IS NOT NULL", tenantID, strings.TrimSpace(name)).
		Order("deleted_at DESC").
		First(&recipe).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return s.Restore(tenantID, recipe.ID)
}

// Requirements загружает технологическую карту рецепта вместе с текущими остатками,
// отсортированную по ID ингредиента
func (s *RecipeService) Requirements(tenantID, recipeID string) ([]inventory.Requirement, error) {
	return loadRequirements(s.db, tenantID, recipeID)
}

func loadRequirements(db *gorm.DB, tenantID, recipeID string) ([]inventory.Requirement, error) {
	var reqs []inventory.Requirement
	err := db.Table("recipe_ingredients AS ri").
		Select("ri.ingredient_id, i.name AS ingredient_name, ri.quantity_needed, i.current_stock, i.unit").
		Joins("JOIN ingredients i ON i.id = ri.ingredient_id AND i.deleted_at IS NULL").
		Where("ri.recipe_id = ? AND i.tenant_id = ?", recipeID, tenantID).
		Scan(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки технологической карты: %w", err)
	}
	return inventory.SortByIngredientID(reqs), nil
}

// Capacity возвращает мощность рецепта, используя кэш Redis
func (s *RecipeService) Capacity(tenantID, recipeID string) (inventory.CapacityResult, error) {
	if cached, ok := s.capacityCache.Get(tenantID, recipeID); ok {
		return cached, nil
	}
	if _, err := s.Get(tenantID, recipeID); err != nil {
		return inventory.CapacityResult{}, err
	}
	reqs, err := s.Requirements(tenantID, recipeID)
	if err != nil {
		return inventory.CapacityResult{}, err
	}
	result := inventory.CalculateCapacity(reqs)
	s.capacityCache.Set(tenantID, recipeID, result)
	return result, nil
}

// RefreshCapacity пересчитывает мощность без кэша и сохраняет денормализованные колонки рецепта
func (s *RecipeService) RefreshCapacity(tenantID, recipeID string) (inventory.CapacityResult, error) {
	recipe, err := s.Get(tenantID, recipeID)
	if err != nil {
		return inventory.CapacityResult{}, err
	}
	reqs, err := s.Requirements(tenantID, recipeID)
	if err != nil {
		return inventory.CapacityResult{}, err
	}
	result := inventory.CalculateCapacity(reqs)

	now := time.Now().UTC()
	err = s.db.Model(&models.Recipe{}).Where("id = ?", recipeID).UpdateColumns(map[string]interface{}{
		"capacity":                 result.Capacity,
		"limiting_ingredient_id":   result.LimitingIngredientID,
		"limiting_ingredient_name": result.LimitingIngredientName,
		"capacity_updated_at":      now,
	}).Error
	if err != nil {
		return result, fmt.Errorf("ошибка сохранения мощности: %w", err)
	}
	s.capacityCache.Set(tenantID, recipeID, result)

	if result.Capacity != recipe.Capacity {
		capacity := result.Capacity
		s.events.Publish(StockEvent{
			Type:       EventCapacityChanged,
			TenantID:   tenantID,
			RecipeID:   recipe.ID,
			RecipeName: recipe.Name,
			Capacity:   &capacity,
			Message:    fmt.Sprintf("%s: %d → %d", recipe.Name, recipe.Capacity, result.Capacity),
		})
	}
	return result, nil
}

// RefreshCapacitiesForIngredients пересчитывает мощность всех рецептов, использующих ингредиенты
func (s *RecipeService) RefreshCapacitiesForIngredients(tenantID string, ingredientIDs []string) error {
	if len(ingredientIDs) == 0 {
		return nil
	}
	var recipeIDs []string
	err := s.db.Model(&models.RecipeIngredient{}).
		Distinct("recipe_ingredients.recipe_id").
		Joins("JOIN recipes ON recipes.id = recipe_ingredients.recipe_id AND recipes.deleted_at IS NULL").
		Where("recipe_ingredients.ingredient_id IN ? AND recipes.tenant_id = ?", ingredientIDs, tenantID).
		Pluck("recipe_ingredients.recipe_id", &recipeIDs).Error
	if err != nil {
		return fmt.Errorf("ошибка поиска рецептов по ингредиентам: %w", err)
	}
	return s.refreshMany(tenantID, recipeIDs)
}

// RefreshAllCapacities пересчитывает мощность всех рецептов пиццерии
func (s *RecipeService) RefreshAllCapacities(tenantID string) error {
	var recipeIDs []string
	if err := s.db.Model(&models.Recipe{}).Where("tenant_id = ?", tenantID).Pluck("id", &recipeIDs).Error; err != nil {
		return fmt.Errorf("ошибка загрузки рецептов: %w", err)
	}
	return s.refreshMany(tenantID, recipeIDs)
}

func (s *RecipeService) refreshMany(tenantID string, recipeIDs []string) error {
	var failed int
	for _, id := range recipeIDs {
		if _, err := s.RefreshCapacity(tenantID, id); err != nil {
			failed++
			log.Printf("⚠️ Пересчет мощности рецепта %s: %v", id, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("не удалось пересчитать %d из %d рецептов", failed, len(recipeIDs))
	}
	return nil
}

// CapacityOverview возвращает мощность всех активных рецептов пиццерии, меньшие первыми
func (s *RecipeService) CapacityOverview(tenantID string) ([]RecipeCapacity, error) {
	var recipes []models.Recipe
	if err := s.db.Where("tenant_id = ? AND is_active = true", tenantID).Order("name ASC").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки рецептов: %w", err)
	}

	overview := make([]RecipeCapacity, 0, len(recipes))
	for _, r := range recipes {
		result, err := s.Capacity(tenantID, r.ID)
		if err != nil {
			return nil, err
		}
		overview = append(overview, RecipeCapacity{
			RecipeID:       r.ID,
			RecipeName:     r.Name,
			Type:           string(r.Type),
			CapacityResult: result,
		})
	}
	SortCapacities(overview)
	return overview, nil
}

// SortCapacities упорядочивает рецепты по возрастанию мощности, затем по имени
func SortCapacities(items []RecipeCapacity) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Capacity != items[j].Capacity {
			return items[i].Capacity < items[j].Capacity
		}
		return items[i].RecipeName < items[j].RecipeName
	})
}

// Cost рассчитывает себестоимость рецепта по текущим ценам ингредиентов
func (s *RecipeService) Cost(tenantID, recipeID string) (*RecipeCost, error) {
	recipe, err := s.Get(tenantID, recipeID)
	if err != nil {
		return nil, err
	}

	lines := make([]CostLine, 0, len(recipe.Ingredients))
	for _, ri := range recipe.Ingredients {
		if ri.Ingredient == nil {
			continue
		}
		lines = append(lines, CostLine{
			IngredientID:   ri.IngredientID,
			IngredientName: ri.Ingredient.Name,
			Unit:           string(ri.Ingredient.Unit),
			QuantityNeeded: ri.QuantityNeeded,
			CostPerUnit:    ri.Ingredient.CostPerUnit,
		})
	}

	cost := CalculateRecipeCost(lines, recipe.SalePrice)
	cost.RecipeID = recipe.ID
	cost.RecipeName = recipe.Name
	return &cost, nil
}

// checkIngredientsBelongToTenant проверяет, что все ингредиенты существуют у этой пиццерии
func (s *RecipeService) checkIngredientsBelongToTenant(tx *gorm.DB, tenantID string, lines []RecipeIngredientInput) error {
	if len(lines) == 0 {
		return nil
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.IngredientID)
	}
	var count int64
	if err := tx.Model(&models.Ingredient{}).Where("tenant_id = ? AND id IN ?", tenantID, ids).Count(&count).Error; err != nil {
		return fmt.Errorf("ошибка проверки ингредиентов: %w", err)
	}
	if int(count) != len(ids) {
		return fmt.Errorf("%w: найдено %d из %d ингредиентов рецепта", ErrInvalidInput, count, len(ids))
	}
	return nil
}

func createRecipeLines(tx *gorm.DB, recipeID string, lines []RecipeIngredientInput) error {
	for i, line := range lines {
		ri := models.RecipeIngredient{
			RecipeID:       recipeID,
			IngredientID:   line.IngredientID,
			QuantityNeeded: line.QuantityNeeded,
		}
		if err := tx.Create(&ri).Error; err != nil {
			return fmt.Errorf("ошибка создания ингредиента #%d: %w", i+1, err)
		}
	}
	return nil
}

// CostLine - стоимость одной строки технологической карты
type CostLine struct {
	IngredientID   string          `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	Unit           string          `json:"unit"`
	QuantityNeeded float64         `json:"quantity_needed"`
	CostPerUnit    float64         `json:"cost_per_unit"`
	LineCost       decimal.Decimal `json:"line_cost"`
}

// RecipeCost - себестоимость и маржа рецепта
type RecipeCost struct {
	RecipeID      string          `json:"recipe_id"`
	RecipeName    string          `json:"recipe_name"`
	Lines         []CostLine      `json:"lines"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Margin        decimal.Decimal `json:"margin"`
	MarginPercent float64         `json:"margin_percent"`
}

// CalculateRecipeCost суммирует cost_per_unit × quantity_needed в decimal, без накопления ошибок float
func CalculateRecipeCost(lines []CostLine, salePrice float64) RecipeCost {
	total := decimal.Zero
	out := make([]CostLine, len(lines))
	for i, l := range lines {
		l.LineCost = decimal.NewFromFloat(l.CostPerUnit).Mul(decimal.NewFromFloat(l.QuantityNeeded)).Round(4)
		total = total.Add(l.LineCost)
		out[i] = l
	}

	price := decimal.NewFromFloat(salePrice).Round(2)
	total = total.Round(2)
	margin := price.Sub(total)

	var marginPercent float64
	if price.IsPositive() {
		marginPercent, _ = margin.Div(price).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	}

	return RecipeCost{
		Lines:         out,
		TotalCost:     total,
		SalePrice:     price,
		Margin:        margin,
		MarginPercent: marginPercent,
	}
}
