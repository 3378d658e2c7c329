package inventory

import "math"

// StockStatus - порядковая оценка остатка относительно минимального запаса
type StockStatus string

const (
	StatusCritical StockStatus = "critical" // Остатка нет
	StatusDanger   StockStatus = "danger"   // Не больше половины минимума
	StatusWarning  StockStatus = "warning"  // Не больше минимума
	StatusOK       StockStatus = "ok"
)

// StatusInfo - данные для отображения статуса в интерфейсе
type StatusInfo struct {
	Status StockStatus `json:"status"`
	Label  string      `json:"label"`
	Color  string      `json:"color"`
	Icon   string      `json:"icon"`
}

var statusColors = map[StockStatus]string{
	StatusCritical: "#dc2626",
	StatusDanger:   "#f97316",
	StatusWarning:  "#eab308",
	StatusOK:       "#10b981",
}

var statusIcons = map[StockStatus]string{
	StatusCritical: "🔴",
	StatusDanger:   "🟠",
	StatusWarning:  "🟡",
	StatusOK:       "🟢",
}

var statusLabels = map[StockStatus]string{
	StatusCritical: "Критично",
	StatusDanger:   "Опасно",
	StatusWarning:  "Внимание",
	StatusOK:       "В норме",
}

// ClassifyStock определяет статус остатка. Условия проверяются строго по порядку.
// При minStock == 0 любой положительный остаток считается нормой: минимум не настроен.
func ClassifyStock(currentStock, minStock float64) StockStatus {
	switch {
	case currentStock <= 0:
		return StatusCritical
	case currentStock <= minStock*0.5:
		return StatusDanger
	case currentStock <= minStock:
		return StatusWarning
	default:
		return StatusOK
	}
}

// StatusColor возвращает цвет бейджа для статуса
func StatusColor(status StockStatus) string {
	if color, ok := statusColors[status]; ok {
		return color
	}
	return statusColors[StatusOK]
}

// StatusIcon возвращает иконку для статуса
func StatusIcon(status StockStatus) string {
	if icon, ok := statusIcons[status]; ok {
		return icon
	}
	return statusIcons[StatusOK]
}

// StatusLabel возвращает подпись статуса
func StatusLabel(status StockStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return statusLabels[StatusOK]
}

// Describe собирает все данные отображения для статуса
func Describe(status StockStatus) StatusInfo {
	return StatusInfo{
		Status: status,
		Label:  StatusLabel(status),
		Color:  StatusColor(status),
		Icon:   StatusIcon(status),
	}
}

// StockPercentage - остаток в процентах от минимума, округленный до целого.
// Без настроенного минимума возвращает 100.
func StockPercentage(currentStock, minStock float64) int {
	if minStock == 0 {
		return 100
	}
	return int(math.Round(currentStock / minStock * 100))
}

// NeedsAttention сообщает, стоит ли поднимать уведомление о низком остатке
func (s StockStatus) NeedsAttention() bool {
	return s != StatusOK
}
