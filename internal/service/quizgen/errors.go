package quizgen

import (
	"errors"
	"fmt"
)

// ErrCanceled генерация остановлена между итерациями
var ErrCanceled = errors.New("generation canceled")

// GenerationError вызов провайдера не удался или вернул неразбираемые данные.
// Payload хранит сырое тело ошибки провайдера.
type GenerationError struct {
	Payload string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("question generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
