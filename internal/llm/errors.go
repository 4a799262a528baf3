package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrRateLimit провайдер вернул 429
type ErrRateLimit struct {
	Payload string
	Err     error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("llm rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderUnavailable сетевая ошибка, 5xx, таймаут или любой другой отказ провайдера
type ErrProviderUnavailable struct {
	Payload string
	Err     error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm provider unavailable: %v", e.Err)
	}
	return "llm provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrInvalidResponse ответ не разбирается как JSON или не соответствует схеме
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid llm response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// PayloadOf извлекает сырое тело ошибки провайдера, если оно есть
func PayloadOf(err error) string {
	var rl *ErrRateLimit
	if errors.As(err, &rl) {
		return rl.Payload
	}
	var unavail *ErrProviderUnavailable
	if errors.As(err, &unavail) {
		return unavail.Payload
	}
	var invalid *ErrInvalidResponse
	if errors.As(err, &invalid) {
		return string(invalid.Content)
	}
	return ""
}
