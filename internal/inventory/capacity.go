package inventory

import (
	"math"
	"sort"
)

// Requirement - одна строка технологической карты вместе с текущим остатком ингредиента.
// Единицы измерения QuantityNeeded и CurrentStock совпадают, конвертация не выполняется.
type Requirement struct {
	IngredientID   string  `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	QuantityNeeded float64 `json:"quantity_needed"`
	CurrentStock   float64 `json:"current_stock"`
	Unit           string  `json:"unit"`
}

// CapacityResult - сколько целых порций рецепта можно произвести и какой ингредиент ограничивает
type CapacityResult struct {
	Capacity               int     `json:"capacity"`
	LimitingIngredientID   *string `json:"limiting_ingredient_id"`
	LimitingIngredientName *string `json:"limiting_ingredient_name"`
}

// CalculateCapacity возвращает минимум floor(current_stock / quantity_needed) по всем
// требованиям с quantity_needed > 0.
//
// Пустой список и список без ни одного ограничивающего требования дают 0, а не бесконечность.
// При равенстве побеждает первое требование в порядке обхода.
func CalculateCapacity(reqs []Requirement) CapacityResult {
	if len(reqs) == 0 {
		return CapacityResult{}
	}

	var (
		found       bool
		minPossible float64
		limiting    Requirement
	)

	for _, req := range reqs {
		// Нулевое или отрицательное количество - ошибка ввода, такое требование не ограничивает выпуск
		if req.QuantityNeeded <= 0 {
			continue
		}

		possible := math.Floor(req.CurrentStock / req.QuantityNeeded)
		if !found || possible < minPossible {
			found = true
			minPossible = possible
			limiting = req
		}
	}

	if !found {
		return CapacityResult{}
	}

	id := limiting.IngredientID
	name := limiting.IngredientName
	return CapacityResult{
		Capacity:               toCapacity(minPossible),
		LimitingIngredientID:   &id,
		LimitingIngredientName: &name,
	}
}

// toCapacity приводит результат floor к неотрицательному int
func toCapacity(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(v)
}

// SortByIngredientID возвращает копию требований, отсортированную по ID ингредиента.
// БД не гарантирует порядок строк, а выбор ограничивающего ингредиента зависит от порядка.
func SortByIngredientID(reqs []Requirement) []Requirement {
	sorted := make([]Requirement, len(reqs))
	copy(sorted, reqs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IngredientID < sorted[j].IngredientID
	})
	return sorted
}
