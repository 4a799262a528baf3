package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется, когда операция требует аутентифицированного пользователя.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда пользователь не является владельцем викторины или вопроса.
	// Операция при этом отклоняется целиком, без частичных изменений.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния
	// (например, черновик уже редактируется другим запросом).
	ErrConflict = errors.New("resource state conflict")
)
