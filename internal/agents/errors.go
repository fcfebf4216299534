package agents

import (
	"errors"
	"net/http"
)

// Domain errors for agent operations.
var (
	ErrNotFound       = errors.New("agent not found")
	ErrDuplicate      = errors.New("agent already registered")
	ErrInvalidID      = errors.New("invalid agent id")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidABI     = errors.New("invalid agent abi")
)

// MapHTTPStatus maps domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidID) || errors.Is(err, ErrInvalidAddress) || errors.Is(err, ErrInvalidABI) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
