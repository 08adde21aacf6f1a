package model

import "errors"

var (
	// ErrNotFound is returned for unknown cocktail or ingredient identifiers.
	ErrNotFound = errors.New("not found")
	// ErrInvalidChannel is returned when a channel index is outside the configured range.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrValidation is returned for malformed quantities.
	ErrValidation = errors.New("validation error")
	// ErrUnavailable is returned when liquid stock does not cover a cocktail.
	ErrUnavailable = errors.New("cocktail unavailable")
)
