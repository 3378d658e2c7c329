package models

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// AutoMigrate создает и обновляет таблицы склада.
// Порядок важен: tenants и ingredients должны существовать раньше таблиц, которые на них ссылаются.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	tables := []interface{}{
		&Tenant{},
		&PlatformAdmin{},
		&User{},
		&Ingredient{},
		&Recipe{},
		&RecipeIngredient{},
		&Sale{},
		&StockMovement{},
		&ChatMessage{},
	}

	for _, table := range tables {
		if err := db.AutoMigrate(table); err != nil {
			log.Printf("❌ AutoMigrate для %T failed: %v", table, err)
			return fmt.Errorf("auto migrate %T: %w", table, err)
		}
	}

	// Остаток не может уйти в минус: списание продажей защищено этим ограничением на уровне БД
	if err := db.Exec(`DO $$ BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_ingredients_stock_non_negative') THEN
			ALTER TABLE ingredients ADD CONSTRAINT chk_ingredients_stock_non_negative CHECK (current_stock >= 0);
		END IF;
	END $$`).Error; err != nil {
		log.Printf("⚠️ Не удалось добавить ограничение неотрицательного остатка: %v", err)
	}

	log.Println("✅ Таблицы склада мигрированы успешно")
	return nil
}
