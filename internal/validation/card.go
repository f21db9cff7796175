// Package validation содержит функции валидации входных данных.
package validation

import "strings"

const (
	minCardLength = 8
	maxCardLength = 20
)

// IsValidCardNumber проверяет корректность номера бонусной карты.
// Номер считается корректным, если он не пустой, не состоит из одних
// пробелов и его длина лежит в диапазоне [8, 20].
func IsValidCardNumber(cardNo string) bool {
	if strings.TrimSpace(cardNo) == "" {
		return false
	}
	return len(cardNo) >= minCardLength && len(cardNo) <= maxCardLength
}
