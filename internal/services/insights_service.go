package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pizzaria/internal/inventory"
	"pizzaria/internal/models"
)

const topBottlenecks = 5

// InsightsService собирает сводку склада для дашборда и контекста ассистента
type InsightsService struct {
	db            *gorm.DB
	recipeService *RecipeService
	now           func() time.Time
}

// NewInsightsService создает новый экземпляр InsightsService
func NewInsightsService(db *gorm.DB, recipeService *RecipeService) *InsightsService {
	return &InsightsService{db: db, recipeService: recipeService, now: time.Now}
}

// Bottleneck - ингредиент, ограничивающий мощность рецептов
type Bottleneck struct {
	IngredientID   string   `json:"ingredient_id"`
	IngredientName string   `json:"ingredient_name"`
	RecipeCount    int      `json:"recipe_count"`
	Recipes        []string `json:"recipes"`
}

// Dashboard - сводка склада пиццерии
type Dashboard struct {
	IngredientCount int                           `json:"ingredient_count"`
	ByStatus        map[inventory.StockStatus]int `json:"by_status"`
	NeedsAttention  []IngredientView              `json:"needs_attention"`
	StockValue      decimal.Decimal               `json:"stock_value"`
	RecipeCount     int                           `json:"recipe_count"`
	ZeroCapacity    []RecipeCapacity              `json:"zero_capacity"`
	Bottlenecks     []Bottleneck                  `json:"bottlenecks"`
	SalesToday      int                           `json:"sales_today"`
	UnitsSoldToday  int                           `json:"units_sold_today"`
	RevenueToday    decimal.Decimal               `json:"revenue_today"`
	Capacities      []RecipeCapacity              `json:"capacities"`
	GeneratedAt     time.Time                     `json:"generated_at"`
}

// Dashboard загружает данные пиццерии и строит сводку
func (s *InsightsService) Dashboard(tenantID string) (*Dashboard, error) {
	var ingredients []models.Ingredient
	if err := s.db.Where("tenant_id = ?", tenantID).Order("name ASC").Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки ингредиентов: %w", err)
	}

	capacities, err := s.recipeService.CapacityOverview(tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var sales []models.Sale
	if err := s.db.Where("tenant_id = ? AND created_at >= ?", tenantID, dayStart).Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки продаж: %w", err)
	}

	d := BuildDashboard(ingredients, capacities, sales)
	d.GeneratedAt = now
	return &d, nil
}

// Snapshot возвращает компактное текстовое описание склада для контекста LLM
func (s *InsightsService) Snapshot(tenantID string) (string, error) {
	d, err := s.Dashboard(tenantID)
	if err != nil {
		return "", err
	}
	return RenderSnapshot(d), nil
}

// BuildDashboard строит сводку из уже загруженных данных
func BuildDashboard(ingredients []models.Ingredient, capacities []RecipeCapacity, salesToday []models.Sale) Dashboard {
	d := Dashboard{
		IngredientCount: len(ingredients),
		ByStatus: map[inventory.StockStatus]int{
			inventory.StatusCritical: 0,
			inventory.StatusDanger:   0,
			inventory.StatusWarning:  0,
			inventory.StatusOK:       0,
		},
		NeedsAttention: []IngredientView{},
		StockValue:     decimal.Zero,
		RecipeCount:    len(capacities),
		ZeroCapacity:   []RecipeCapacity{},
		Bottlenecks:    []Bottleneck{},
		RevenueToday:   decimal.Zero,
		Capacities:     capacities,
	}

	for _, ing := range ingredients {
		view := NewIngredientView(ing)
		d.ByStatus[view.Status]++
		if view.Status.NeedsAttention() {
			d.NeedsAttention = append(d.NeedsAttention, view)
		}
		if ing.CurrentStock > 0 {
			d.StockValue = d.StockValue.Add(
				decimal.NewFromFloat(ing.CurrentStock).Mul(decimal.NewFromFloat(ing.CostPerUnit)))
		}
	}
	d.StockValue = d.StockValue.Round(2)

	byIngredient := map[string]*Bottleneck{}
	for _, c := range capacities {
		if c.Capacity == 0 {
			d.ZeroCapacity = append(d.ZeroCapacity, c)
		}
		if c.LimitingIngredientID == nil {
			continue
		}
		b, ok := byIngredient[*c.LimitingIngredientID]
		if !ok {
			b = &Bottleneck{IngredientID: *c.LimitingIngredientID}
			if c.LimitingIngredientName != nil {
				b.IngredientName = *c.LimitingIngredientName
			}
			byIngredient[*c.LimitingIngredientID] = b
		}
		b.RecipeCount++
		b.Recipes = append(b.Recipes, c.RecipeName)
	}
	for _, b := range byIngredient {
		d.Bottlenecks = append(d.Bottlenecks, *b)
	}
	sort.SliceStable(d.Bottlenecks, func(i, j int) bool {
		if d.Bottlenecks[i].RecipeCount != d.Bottlenecks[j].RecipeCount {
			return d.Bottlenecks[i].RecipeCount > d.Bottlenecks[j].RecipeCount
		}
		return d.Bottlenecks[i].IngredientName < d.Bottlenecks[j].IngredientName
	})
	if len(d.Bottlenecks) > topBottlenecks {
		d.Bottlenecks = d.Bottlenecks[:topBottlenecks]
	}

	for _, sale := range salesToday {
		d.SalesToday++
		d.UnitsSoldToday += sale.Quantity
		d.RevenueToday = d.RevenueToday.Add(decimal.NewFromFloat(sale.TotalAmount))
	}
	d.RevenueToday = d.RevenueToday.Round(2)
	return d
}

// RenderSnapshot - короткий текст для системного сообщения ассистента
func RenderSnapshot(d *Dashboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ingredients: %d (critical %d, danger %d, warning %d, ok %d). Stock value: %s.\n",
		d.IngredientCount,
		d.ByStatus[inventory.StatusCritical], d.ByStatus[inventory.StatusDanger],
		d.ByStatus[inventory.StatusWarning], d.ByStatus[inventory.StatusOK],
		d.StockValue.StringFixed(2))

	for _, v := range d.NeedsAttention {
		fmt.Fprintf(&b, "- %s: %s %s (min %s) [%s]\n", v.Name,
			formatQuantity(v.CurrentStock), v.Unit, formatQuantity(v.MinStock), v.Status)
	}

	fmt.Fprintf(&b, "Recipes: %d, zero capacity: %d.\n", d.RecipeCount, len(d.ZeroCapacity))
	for _, c := range d.Capacities {
		limiting := "-"
		if c.LimitingIngredientName != nil {
			limiting = *c.LimitingIngredientName
		}
		fmt.Fprintf(&b, "- %s (%s): %d, limited by %s\n", c.RecipeName, c.Type, c.Capacity, limiting)
	}

	fmt.Fprintf(&b, "Sales today: %d (%d units), revenue %s.", d.SalesToday, d.UnitsSoldToday, d.RevenueToday.StringFixed(2))
	return b.String()
}

func formatQuantity(v float64) string {
	return decimal.NewFromFloat(v).Round(3).String()
}
