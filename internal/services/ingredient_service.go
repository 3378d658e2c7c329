package services

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"pizzaria/internal/inventory"
	"pizzaria/internal/models"
)

// IngredientService управляет справочником ингредиентов и остатками пиццерии
type IngredientService struct {
	db            *gorm.DB
	recipeService *RecipeService
	events        *EventPublisher
	capacityCache *CapacityCache
}

// NewIngredientService создает новый экземпляр IngredientService
func NewIngredientService(db *gorm.DB) *IngredientService {
	return &IngredientService{db: db}
}

// SetRecipeService устанавливает сервис рецептов (пересчет мощности после изменения остатков)
func (s *IngredientService) SetRecipeService(rs *RecipeService) {
	s.recipeService = rs
}

// SetEventPublisher устанавливает публикатор событий склада
func (s *IngredientService) SetEventPublisher(p *EventPublisher) {
	s.events = p
}

// SetCapacityCache устанавливает кэш мощности
func (s *IngredientService) SetCapacityCache(c *CapacityCache) {
	s.capacityCache = c
}

// IngredientInput - данные для создания ингредиента
type IngredientInput struct {
	Name         string  `json:"name" binding:"required"`
	Category     string  `json:"category"`
	Unit         string  `json:"unit" binding:"required"`
	CurrentStock float64 `json:"current_stock"`
	MinStock     float64 `json:"min_stock"`
	CostPerUnit  float64 `json:"cost_per_unit"`
}

// IngredientUpdate - частичное обновление. Остаток меняется только через поступление или инвентаризацию.
type IngredientUpdate struct {
	Name        *string  `json:"name"`
	Category    *string  `json:"category"`
	Unit        *string  `json:"unit"`
	MinStock    *float64 `json:"min_stock"`
	CostPerUnit *float64 `json:"cost_per_unit"`
}

// IngredientFilter - фильтры списка ингредиентов
type IngredientFilter struct {
	Search         string
	Category       string
	Status         inventory.StockStatus
	IncludeDeleted bool
}

// IngredientView - ингредиент с вычисленным статусом остатка для API
type IngredientView struct {
	models.Ingredient
	Status          inventory.StockStatus `json:"status"`
	StatusLabel     string                `json:"status_label"`
	StatusColor     string                `json:"status_color"`
	StatusIcon      string                `json:"status_icon"`
	StockPercentage int                   `json:"stock_percentage"`
}

// NewIngredientView дополняет ингредиент метаданными статуса остатка
func NewIngredientView(ing models.Ingredient) IngredientView {
	info := inventory.Describe(inventory.ClassifyStock(ing.CurrentStock, ing.MinStock))
	return IngredientView{
		Ingredient:      ing,
		Status:          info.Status,
		StatusLabel:     info.Label,
		StatusColor:     info.Color,
		StatusIcon:      info.Icon,
		StockPercentage: inventory.StockPercentage(ing.CurrentStock, ing.MinStock),
	}
}

// Normalize проверяет и нормализует входные данные ингредиента
func (in *IngredientInput) Normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" {
		return fmt.Errorf("%w: название ингредиента обязательно", ErrInvalidInput)
	}
	unit, ok := models.ParseUnit(in.Unit)
	if !ok {
		return fmt.Errorf("%w: неизвестная единица измерения %q (допустимо: kg, g, L, ml, un)", ErrInvalidInput, in.Unit)
	}
	in.Unit = string(unit)
	if in.CurrentStock < 0 || in.MinStock < 0 || in.CostPerUnit < 0 {
		return fmt.Errorf("%w: остаток, минимум и цена не могут быть отрицательными", ErrInvalidInput)
	}
	return nil
}

// List возвращает ингредиенты пиццерии со статусами остатков
func (s *IngredientService) List(tenantID string, filter IngredientFilter) ([]IngredientView, error) {
	query := s.db.Where("tenant_id = ?", tenantID)
	if filter.IncludeDeleted {
		query = query.Unscoped()
	}
	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var ingredients []models.Ingredient
	if err := query.Order("name ASC").Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки ингредиентов: %w", err)
	}

	views := make([]IngredientView, 0, len(ingredients))
	for _, ing := range ingredients {
		view := NewIngredientView(ing)
		if filter.Status != "" && view.Status != filter.Status {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// Get возвращает ингредиент пиццерии по ID
func (s *IngredientService) Get(tenantID, id string) (*models.Ingredient, error) {
	var ing models.Ingredient
	if err := s.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&ing).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &ing, nil
}

// FindByName ищет ингредиент по имени без учета регистра
func (s *IngredientService) FindByName(tenantID, name string) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := s.db.Where("tenant_id = ? AND LOWER(name) = LOWER(?)", tenantID, strings.TrimSpace(name)).
		First(&ing).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &ing, nil
}

// Create создает ингредиент. Начальный остаток записывается движением поступления.
func (s *IngredientService) Create(tenantID string, in IngredientInput, performedBy string) (*models.Ingredient, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	ing := models.Ingredient{
		TenantID:     tenantID,
		Name:         in.Name,
		Category:     in.Category,
		Unit:         models.Unit(in.Unit),
		CurrentStock: in.CurrentStock,
		MinStock:     in.MinStock,
		CostPerUnit:  in.CostPerUnit,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ing).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", ErrDuplicate, in.Name)
			}
			return fmt.Errorf("ошибка создания ингредиента: %w", err)
		}
		if ing.CurrentStock > 0 {
			return tx.Create(&models.StockMovement{
				TenantID:     tenantID,
				IngredientID: ing.ID,
				MovementType: models.MovementEntry,
				Quantity:     ing.CurrentStock,
				StockAfter:   ing.CurrentStock,
				PerformedBy:  performedBy,
				Notes:        "Начальный остаток",
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Ингредиент создан: %s (%s, tenant %s)", ing.Name, ing.Unit, tenantID)
	return &ing, nil
}

// Update обновляет справочные поля ингредиента
func (s *IngredientService) Update(tenantID, id string, upd IngredientUpdate) (*models.Ingredient, error) {
	ing, err := s.Get(tenantID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: название ингредиента обязательно", ErrInvalidInput)
		}
		updates["name"] = name
	}
	if upd.Category != nil {
		updates["category"] = strings.TrimSpace(*upd.Category)
	}
	if upd.Unit != nil {
		unit, ok := models.ParseUnit(*upd.Unit)
		if !ok {
			return nil, fmt.Errorf("%w: неизвестная единица измерения %q", ErrInvalidInput, *upd.Unit)
		}
		updates["unit"] = unit
	}
	if upd.MinStock != nil {
		if *upd.MinStock < 0 {
			return nil, fmt.Errorf("%w: минимальный остаток не может быть отрицательным", ErrInvalidInput)
		}
		updates["min_stock"] = *upd.MinStock
	}
	if upd.CostPerUnit != nil {
		if *upd.CostPerUnit < 0 {
			return nil, fmt.Errorf("%w: цена не может быть отрицательной", ErrInvalidInput)
		}
		updates["cost_per_unit"] = *upd.CostPerUnit
	}
	if len(updates) == 0 {
		return ing, nil
	}

	if err := s.db.Model(ing).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicate, updates["name"])
		}
		return nil, fmt.Errorf("ошибка обновления ингредиента: %w", err)
	}

	// Имя и минимум влияют на ограничивающий ингредиент и статус в дашборде
	s.afterStockChange(tenantID, ing, "")
	return s.Get(tenantID, id)
}

// Delete мягко удаляет ингредиент. Ингредиент, используемый в активных рецептах, удалить нельзя.
func (s *IngredientService) Delete(tenantID, id string) error {
	ing, err := s.Get(tenantID, id)
	if err != nil {
		return err
	}

	var usage int64
	err = s.db.Model(&models.RecipeIngredient{}).
		Joins("JOIN recipes ON recipes.id = recipe_ingredients.recipe_id AND recipes.deleted_at IS NULL").
		Where("recipe_ingredients.ingredient_id = ?", id).
		Count(&usage).Error
	if err != nil {
		return fmt.Errorf("ошибка проверки использования ингредиента: %w", err)
	}
	if usage > 0 {
		return fmt.Errorf("%w: ингредиент «%s» используется в %d рецептах", ErrInUse, ing.Name, usage)
	}

	if err := s.db.Delete(ing).Error; err != nil {
		return fmt.Errorf("ошибка удаления ингредиента: %w", err)
	}
	log.Printf("🗑️ Ингредиент удален: %s (tenant %s)", ing.Name, tenantID)
	return nil
}

// Restore восстанавливает мягко удаленный ингредиент
func (s *IngredientService) Restore(tenantID, id string) (*models.Ingredient, error) {
	var ing models.Ingredient
	if err := s.db.Unscoped().Where("id = ? AND tenant_id = ?", id, tenantID).First(&ing).Error; err != nil {
		return nil, notFoundOr(err)
	}
	if !ing.DeletedAt.Valid {
		return &ing, nil
	}

	if err := s.db.Unscoped().Model(&ing).Update("deleted_at", nil).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: активный ингредиент «%s» уже существует", ErrDuplicate, ing.Name)
		}
		return nil, fmt.Errorf("ошибка восстановления ингредиента: %w", err)
	}
	ing.DeletedAt = gorm.DeletedAt{}
	log.Printf("♻️ Ингредиент восстановлен: %s (tenant %s)", ing.Name, tenantID)
	s.afterStockChange(tenantID, &ing, "")
	return &ing, nil
}

// RestoreByName восстанавливает последний удаленный ингредиент с указанным именем
func (s *IngredientService) RestoreByName(tenantID, name string) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := s.db.Unscoped().
		Where("tenant_id = ? AND LOWER(name) = LOWER(?) AND deleted_at IS NOT NULL", tenantID, strings.TrimSpace(name)).
		Order("deleted_at DESC").
		First(&ing).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return s.Restore(tenantID, ing.ID)
}
