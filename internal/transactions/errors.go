package transactions

import (
	"errors"
	"net/http"
)

// Domain errors for transaction records.
var (
	ErrNotFound  = errors.New("transaction not found")
	ErrDuplicate = errors.New("transaction already recorded")
)

// MapHTTPStatus maps domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
