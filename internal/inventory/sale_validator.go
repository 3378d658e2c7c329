package inventory

import "fmt"

const (
	MessageNoIngredients   = "у рецепта нет настроенных ингредиентов"
	MessageInvalidQuantity = "количество продажи должно быть больше нуля"
)

// SaleValidation - результат предварительной проверки остатков перед продажей
type SaleValidation struct {
	Valid                  bool   `json:"valid"`
	InsufficientIngredient string `json:"insufficient_ingredient,omitempty"`
	Message                string `json:"message,omitempty"`
}

// ValidateSale проверяет, хватает ли остатков на saleQuantity порций.
// Возвращает только первый ингредиент (в порядке списка), которого не хватает.
//
// Проверка рекомендательная: само списание выполняется отдельно и может проиграть гонку
// с параллельной продажей.
func ValidateSale(reqs []Requirement, saleQuantity int) SaleValidation {
	if len(reqs) == 0 {
		return SaleValidation{Valid: false, Message: MessageNoIngredients}
	}
	if saleQuantity <= 0 {
		return SaleValidation{Valid: false, Message: MessageInvalidQuantity}
	}

	for _, req := range reqs {
		required := req.QuantityNeeded * float64(saleQuantity)
		if req.CurrentStock < required {
			return SaleValidation{
				Valid:                  false,
				InsufficientIngredient: req.IngredientName,
				Message:                InsufficientMessage(req, required),
			}
		}
	}

	return SaleValidation{Valid: true}
}

// InsufficientMessage форматирует сообщение о нехватке ингредиента
func InsufficientMessage(req Requirement, required float64) string {
	return fmt.Sprintf("Недостаточно «%s»: нужно %s %s, в наличии %s %s",
		req.IngredientName,
		formatQuantity(required), req.Unit,
		formatQuantity(req.CurrentStock), req.Unit)
}

// formatQuantity убирает лишние нули у целых значений
func formatQuantity(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
