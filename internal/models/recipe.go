package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecipeType - вид изделия
type RecipeType string

const (
	RecipePizza  RecipeType = "pizza"
	RecipeEsfiha RecipeType = "esfiha"
)

// IsValid проверяет вид изделия
func (t RecipeType) IsValid() bool {
	return t == RecipePizza || t == RecipeEsfiha
}

// Recipe - технологическая карта изделия.
// Capacity и LimitingIngredientID денормализованы и обновляются при каждом изменении остатков.
type Recipe struct {
	ID                     string         `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID               string         `json:"tenant_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_recipes_tenant_name,where:deleted_at IS NULL"`
	Name                   string         `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:idx_recipes_tenant_name,where:deleted_at IS NULL"`
	Type                   RecipeType     `json:"type" gorm:"type:varchar(20);not null;default:'pizza'"`
	Description            string         `json:"description" gorm:"type:text"`
	SalePrice              float64        `json:"sale_price" gorm:"type:decimal(10,2);default:0"`
	IsActive               bool           `json:"is_active" gorm:"default:true"`
	Capacity               int            `json:"capacity" gorm:"default:0"`
	LimitingIngredientID   *string        `json:"limiting_ingredient_id" gorm:"type:uuid"`
	LimitingIngredientName *string        `json:"limiting_ingredient_name" gorm:"type:varchar(255)"`
	CapacityUpdatedAt      *time.Time     `json:"capacity_updated_at"`
	CreatedAt              time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt              time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt              gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Ingredients []RecipeIngredient `json:"ingredients" gorm:"foreignKey:RecipeID"`
}

// TableName указывает имя таблицы
func (Recipe) TableName() string {
	return "recipes"
}

// BeforeCreate генерирует UUID
func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// RecipeIngredient - строка технологической карты (количество на одну порцию)
type RecipeIngredient struct {
	ID             string      `json:"id" gorm:"type:uuid;primaryKey"`
	RecipeID       string      `json:"recipe_id" gorm:"type:uuid;not null;uniqueIndex:idx_recipe_ingredient"`
	IngredientID   string      `json:"ingredient_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_recipe_ingredient"`
	Ingredient     *Ingredient `json:"ingredient,omitempty" gorm:"foreignKey:IngredientID"`
	QuantityNeeded float64     `json:"quantity_needed" gorm:"type:decimal(12,4);not null"`
	CreatedAt      time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}

// BeforeCreate генерирует UUID
func (ri *RecipeIngredient) BeforeCreate(tx *gorm.DB) error {
	if ri.ID == "" {
		ri.ID = uuid.New().String()
	}
	return nil
}
