package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Unit - единица измерения ингредиента. Конвертация между единицами не выполняется.
type Unit string

const (
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitLiter      Unit = "L"
	UnitMilliliter Unit = "ml"
	UnitPiece      Unit = "un"
)

// unitAliases - допустимые варианты написания единиц во входных данных (импорт, чат)
var unitAliases = map[string]Unit{
	"kg":      UnitKilogram,
	"кг":      UnitKilogram,
	"g":       UnitGram,
	"gr":      UnitGram,
	"г":       UnitGram,
	"l":       UnitLiter,
	"lt":      UnitLiter,
	"л":       UnitLiter,
	"ml":      UnitMilliliter,
	"мл":      UnitMilliliter,
	"un":      UnitPiece,
	"unit":    UnitPiece,
	"unidade": UnitPiece,
	"pcs":     UnitPiece,
	"шт":      UnitPiece,
}

// ParseUnit нормализует единицу измерения. ok=false для единиц вне закрытого набора.
func ParseUnit(raw string) (Unit, bool) {
	u, ok := unitAliases[strings.ToLower(strings.TrimSpace(raw))]
	return u, ok
}

// MovementType - тип движения остатков
type MovementType string

const (
	MovementEntry      MovementType = "entry"      // Поступление
	MovementSale       MovementType = "sale"       // Списание продажей
	MovementAdjustment MovementType = "adjustment" // Инвентаризация (установка абсолютного значения)
)

// Ingredient - ингредиент склада пиццерии
type Ingredient struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     string         `json:"tenant_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_ingredients_tenant_name,where:deleted_at IS NULL"`
	Name         string         `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:idx_ingredients_tenant_name,where:deleted_at IS NULL"`
	Category     string         `json:"category" gorm:"type:varchar(100)"`
	Unit         Unit           `json:"unit" gorm:"type:varchar(10);not null"`
	CurrentStock float64        `json:"current_stock" gorm:"type:decimal(12,4);not null;default:0"`
	MinStock     float64        `json:"min_stock" gorm:"type:decimal(12,4);not null;default:0"`
	CostPerUnit  float64        `json:"cost_per_unit" gorm:"type:decimal(12,4);default:0"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName указывает имя таблицы
func (Ingredient) TableName() string {
	return "ingredients"
}

// BeforeCreate генерирует UUID
func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// StockMovement - движение остатков ингредиента
type StockMovement struct {
	ID           string       `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     string       `json:"tenant_id" gorm:"type:uuid;not null;index"`
	IngredientID string       `json:"ingredient_id" gorm:"type:uuid;not null;index"`
	Ingredient   *Ingredient  `json:"ingredient,omitempty" gorm:"foreignKey:IngredientID"`
	MovementType MovementType `json:"movement_type" gorm:"type:varchar(20);not null;index"`
	Quantity     float64      `json:"quantity" gorm:"type:decimal(12,4);not null"` // Положительное = приход, отрицательное = расход
	StockAfter   float64      `json:"stock_after" gorm:"type:decimal(12,4);not null"`
	SaleID       *string      `json:"sale_id" gorm:"type:uuid;index"`
	PerformedBy  string       `json:"performed_by" gorm:"type:varchar(255)"`
	Notes        string       `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time    `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName указывает имя таблицы
func (StockMovement) TableName() string {
	return "stock_movements"
}

// BeforeCreate генерирует UUID
func (sm *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if sm.ID == "" {
		sm.ID = uuid.New().String()
	}
	return nil
}
