package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pizzaria/internal/inventory"
	"pizzaria/internal/models"
)

// SaleService регистрирует продажи и списывает ингредиенты со склада
type SaleService struct {
	db            *gorm.DB
	recipeService *RecipeService
	events        *EventPublisher
	capacityCache *CapacityCache
}

// NewSaleService создает новый экземпляр SaleService
func NewSaleService(db *gorm.DB, recipeService *RecipeService) *SaleService {
	return &SaleService{db: db, recipeService: recipeService}
}

// SetEventPublisher устанавливает публикатор событий склада
func (s *SaleService) SetEventPublisher(p *EventPublisher) {
	s.events = p
}

// SetCapacityCache устанавливает кэш мощности
func (s *SaleService) SetCapacityCache(c *CapacityCache) {
	s.capacityCache = c
}

// SaleReceipt - результат регистрации продажи
type SaleReceipt struct {
	Sale       models.Sale              `json:"sale"`
	Deductions []Deduction              `json:"deductions"`
	Capacity   inventory.CapacityResult `json:"capacity_after"`
	LowStock   []IngredientView         `json:"low_stock,omitempty"`
}

// Deduction - списание одного ингредиента продажей
type Deduction struct {
	IngredientID   string  `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	StockAfter     float64 `json:"stock_after"`
}

// SaleFilter - фильтр истории продаж
type SaleFilter struct {
	From     *time.Time
	To       *time.Time
	RecipeID string
	Limit    int
}

// Validate проверяет продажу по текущим остаткам, ничего не меняя.
// Результат носит рекомендательный характер: окончательную проверку делает RecordSale.
func (s *SaleService) Validate(tenantID, recipeID string, quantity int) (inventory.SaleValidation, error) {
	if _, err := s.recipeService.Get(tenantID, recipeID); err != nil {
		return inventory.SaleValidation{}, err
	}
	reqs, err := s.recipeService.Requirements(tenantID, recipeID)
	if err != nil {
		return inventory.SaleValidation{}, err
	}
	return inventory.ValidateSale(reqs, quantity), nil
}

// RecordSale регистрирует продажу и атомарно списывает все ингредиенты.
// Каждое списание выполняется условным UPDATE (current_stock >= required): при гонке
// с другой продажей транзакция откатывается целиком с ErrInsufficientStock.
func (s *SaleService) RecordSale(tenantID, recipeID string, quantity int, soldBy string) (*SaleReceipt, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, inventory.MessageInvalidQuantity)
	}

	recipe, err := s.recipeService.Get(tenantID, recipeID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.recipeService.Requirements(tenantID, recipeID)
	if err != nil {
		return nil, err
	}

	validation := inventory.ValidateSale(reqs, quantity)
	if !validation.Valid {
		if len(reqs) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validation.Message)
		}
		return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, validation.Message)
	}

	price := decimal.NewFromFloat(recipe.SalePrice).Round(2)
	total := price.Mul(decimal.NewFromInt(int64(quantity)))

	receipt := &SaleReceipt{}
	sale := models.Sale{
		TenantID:    tenantID,
		RecipeID:    recipe.ID,
		RecipeName:  recipe.Name,
		Quantity:    quantity,
		UnitPrice:   price.InexactFloat64(),
		TotalAmount: total.InexactFloat64(),
		SoldBy:      soldBy,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sale).Error; err != nil {
			return fmt.Errorf("ошибка создания продажи: %w", err)
		}

		// reqs отсортированы по ingredient_id: одинаковый порядок блокировок у параллельных продаж
		for _, req := range reqs {
			if req.QuantityNeeded <= 0 {
				continue
			}
			required := req.QuantityNeeded * float64(quantity)

			res := tx.Model(&models.Ingredient{}).
				Where("id = ? AND tenant_id = ? AND current_stock >= ?", req.IngredientID, tenantID, required).
				UpdateColumn("current_stock", gorm.Expr("current_stock - ?", required))
			if res.Error != nil {
				return fmt.Errorf("ошибка списания %s: %w", req.IngredientName, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, inventory.InsufficientMessage(req, required))
			}

			var stockAfter float64
			if err := tx.Model(&models.Ingredient{}).Where("id = ?", req.IngredientID).
				Select("current_stock").Scan(&stockAfter).Error; err != nil {
				return err
			}

			saleID := sale.ID
			if err := tx.Create(&models.StockMovement{
				TenantID:     tenantID,
				IngredientID: req.IngredientID,
				MovementType: models.MovementSale,
				Quantity:     -required,
				StockAfter:   stockAfter,
				SaleID:       &saleID,
				PerformedBy:  soldBy,
				Notes:        fmt.Sprintf("Продажа: %s × %d", recipe.Name, quantity),
			}).Error; err != nil {
				return fmt.Errorf("ошибка записи движения: %w", err)
			}

			receipt.Deductions = append(receipt.Deductions, Deduction{
				IngredientID:   req.IngredientID,
				IngredientName: req.IngredientName,
				Quantity:       required,
				Unit:           req.Unit,
				StockAfter:     stockAfter,
			})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			log.Printf("⚠️ Продажа %s × %d отклонена при списании: %v", recipe.Name, quantity, err)
		}
		return nil, err
	}
	receipt.Sale = sale

	log.Printf("💰 Продажа: %s × %d = %s (tenant %s)", recipe.Name, quantity, total.StringFixed(2), tenantID)
	s.afterSale(tenantID, recipe, receipt)
	return receipt, nil
}

// afterSale пересчитывает мощность затронутых рецептов и публикует события
func (s *SaleService) afterSale(tenantID string, recipe *models.Recipe, receipt *SaleReceipt) {
	s.capacityCache.InvalidateTenant(tenantID)

	ids := make([]string, 0, len(receipt.Deductions))
	for _, d := range receipt.Deductions {
		ids = append(ids, d.IngredientID)
	}
	if err := s.recipeService.RefreshCapacitiesForIngredients(tenantID, ids); err != nil {
		log.Printf("⚠️ Пересчет мощности после продажи %s: %v", recipe.Name, err)
	}
	if capacity, err := s.recipeService.Capacity(tenantID, recipe.ID); err == nil {
		receipt.Capacity = capacity
	}

	capacity := receipt.Capacity.Capacity
	s.events.Publish(StockEvent{
		Type:       EventSaleRecorded,
		TenantID:   tenantID,
		RecipeID:   recipe.ID,
		RecipeName: recipe.Name,
		Quantity:   float64(receipt.Sale.Quantity),
		Capacity:   &capacity,
		Message:    fmt.Sprintf("%s × %d", recipe.Name, receipt.Sale.Quantity),
	})

	if len(ids) == 0 {
		return
	}
	var ingredients []models.Ingredient
	if err := s.db.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&ingredients).Error; err != nil {
		log.Printf("⚠️ Загрузка остатков после продажи: %v", err)
		return
	}
	for _, ing := range ingredients {
		view := NewIngredientView(ing)
		if view.Status.NeedsAttention() {
			receipt.LowStock = append(receipt.LowStock, view)
			publishLowStock(s.events, tenantID, ing)
		}
	}
}

// ListSales возвращает историю продаж, новые первыми
func (s *SaleService) ListSales(tenantID string, filter SaleFilter) ([]models.Sale, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	query := s.db.Where("tenant_id = ?", tenantID)
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}
	if filter.RecipeID != "" {
		query = query.Where("recipe_id = ?", filter.RecipeID)
	}

	var sales []models.Sale
	if err := query.Order("created_at DESC").Limit(limit).Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки продаж: %w", err)
	}
	return sales, nil
}
