// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidUserID возвращается, если идентификатор пользователя не является целым числом.
var ErrInvalidUserID = errors.New("invalid user ID")

// ParseUserID разбирает идентификатор пользователя из сегмента пути.
// Допускается только десятичное целое со знаком без посторонних символов.
func ParseUserID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidUserID
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidUserID
	}

	return id, nil
}
