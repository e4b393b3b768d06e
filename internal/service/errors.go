package service

import "errors"

// Ошибки сервисного слоя. Хендлеры сопоставляют их с HTTP статусами через errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("incident was modified concurrently")
	ErrNotFound          = errors.New("not found")
	ErrUnavailable       = errors.New("storage unavailable")
)
