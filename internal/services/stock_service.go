package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pizzaria/internal/inventory"
	"pizzaria/internal/models"
)

// AddStock оприходует поступление ингредиента и записывает движение
func (s *IngredientService) AddStock(tenantID, ingredientID string, quantity float64, performedBy, notes string) (*models.Ingredient, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: количество поступления должно быть больше нуля", ErrInvalidInput)
	}

	var ing models.Ingredient
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Ingredient{}).
			Where("id = ? AND tenant_id = ?", ingredientID, tenantID).
			UpdateColumn("current_stock", gorm.Expr("current_stock + ?", quantity))
		if res.Error != nil {
			return fmt.Errorf("ошибка оприходования: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.First(&ing, "id = ?", ingredientID).Error; err != nil {
			return err
		}
		return tx.Create(&models.StockMovement{
			TenantID:     tenantID,
			IngredientID: ingredientID,
			MovementType: models.MovementEntry,
			Quantity:     quantity,
			StockAfter:   ing.CurrentStock,
			PerformedBy:  performedBy,
			Notes:        notes,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📦 Поступление: %s +%.3f %s (остаток %.3f, tenant %s)", ing.Name, quantity, ing.Unit, ing.CurrentStock, tenantID)
	s.afterStockChange(tenantID, &ing, EventStockEntry)
	return &ing, nil
}

// AdjustStock устанавливает абсолютное значение остатка (инвентаризация)
func (s *IngredientService) AdjustStock(tenantID, ingredientID string, newStock float64, performedBy, notes string) (*models.Ingredient, error) {
	if newStock < 0 {
		return nil, fmt.Errorf("%w: остаток не может быть отрицательным", ErrInvalidInput)
	}

	var ing models.Ingredient
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// FOR UPDATE: параллельная продажа не должна потеряться между чтением и записью
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND tenant_id = ?", ingredientID, tenantID).
			First(&ing).Error; err != nil {
			return notFoundOr(err)
		}
		delta := newStock - ing.CurrentStock
		if err := tx.Model(&ing).UpdateColumn("current_stock", newStock).Error; err != nil {
			return fmt.Errorf("ошибка инвентаризации: %w", err)
		}
		ing.CurrentStock = newStock
		return tx.Create(&models.StockMovement{
			TenantID:     tenantID,
			IngredientID: ingredientID,
			MovementType: models.MovementAdjustment,
			Quantity:     delta,
			StockAfter:   newStock,
			PerformedBy:  performedBy,
			Notes:        notes,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📝 Инвентаризация: %s = %.3f %s (tenant %s)", ing.Name, newStock, ing.Unit, tenantID)
	s.afterStockChange(tenantID, &ing, EventStockAdjusted)
	return &ing, nil
}

// Movements возвращает историю движений ингредиента, новые первыми
func (s *IngredientService) Movements(tenantID, ingredientID string, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.Where("tenant_id = ?", tenantID)
	if ingredientID != "" {
		query = query.Where("ingredient_id = ?", ingredientID)
	}

	var movements []models.StockMovement
	if err := query.Preload("Ingredient").Order("created_at DESC").Limit(limit).Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки движений: %w", err)
	}
	return movements, nil
}

// LowStock возвращает ингредиенты, требующие внимания (critical, danger, warning), самые срочные первыми
func (s *IngredientService) LowStock(tenantID string) ([]IngredientView, error) {
	all, err := s.List(tenantID, IngredientFilter{})
	if err != nil {
		return nil, err
	}
	return FilterNeedsAttention(all), nil
}

// FilterNeedsAttention оставляет только ингредиенты с проблемным остатком, упорядочив по срочности
func FilterNeedsAttention(views []IngredientView) []IngredientView {
	var result []IngredientView
	for _, status := range []inventory.StockStatus{inventory.StatusCritical, inventory.StatusDanger, inventory.StatusWarning} {
		for _, v := range views {
			if v.Status == status {
				result = append(result, v)
			}
		}
	}
	return result
}

// afterStockChange сбрасывает кэш мощности, пересчитывает рецепты и публикует события.
// eventType пустой, если менялись только справочные поля.
func (s *IngredientService) afterStockChange(tenantID string, ing *models.Ingredient, eventType StockEventType) {
	s.capacityCache.InvalidateTenant(tenantID)

	if s.recipeService != nil {
		if err := s.recipeService.RefreshCapacitiesForIngredients(tenantID, []string{ing.ID}); err != nil {
			log.Printf("⚠️ Пересчет мощности после изменения %s: %v", ing.Name, err)
		}
	}

	if eventType == "" {
		return
	}
	status := inventory.ClassifyStock(ing.CurrentStock, ing.MinStock)
	stock := ing.CurrentStock
	s.events.Publish(StockEvent{
		Type:           eventType,
		TenantID:       tenantID,
		IngredientID:   ing.ID,
		IngredientName: ing.Name,
		CurrentStock:   &stock,
		Status:         string(status),
	})
	publishLowStock(s.events, tenantID, *ing)
}

// publishLowStock публикует предупреждение, если остаток ингредиента требует внимания
func publishLowStock(events *EventPublisher, tenantID string, ing models.Ingredient) {
	status := inventory.ClassifyStock(ing.CurrentStock, ing.MinStock)
	if !status.NeedsAttention() {
		return
	}
	stock := ing.CurrentStock
	events.Publish(StockEvent{
		Type:           EventLowStock,
		TenantID:       tenantID,
		IngredientID:   ing.ID,
		IngredientName: ing.Name,
		CurrentStock:   &stock,
		Status:         string(status),
		Message:        fmt.Sprintf("%s %s: %s", inventory.StatusIcon(status), ing.Name, inventory.StatusLabel(status)),
	})
}
