package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("не найдено")
	ErrInvalidInput      = errors.New("некорректные данные")
	ErrDuplicate         = errors.New("запись с таким именем уже существует")
	ErrInUse             = errors.New("запись используется")
	ErrInsufficientStock = errors.New("недостаточно остатков")
	ErrTenantSuspended   = errors.New("пиццерия приостановлена")
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
	ErrUnavailable       = errors.New("сервис недоступен")
	ErrUnauthorized      = errors.New("неверный email или пароль")
)

// notFoundOr заменяет gorm.ErrRecordNotFound на ErrNotFound, остальные ошибки возвращает как есть
func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueConstraintError проверяет, является ли ошибка нарушением уникального ограничения
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "23505")
}
