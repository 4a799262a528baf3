package llm

import (
	"context"
	"encoding/json"
)

// Provider абстракция над провайдером генерации (OpenAI / Azure OpenAI).
// Вызов блокируется на сетевом I/O и должен уважать дедлайн ctx.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Role роль отправителя сообщения
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message одно сообщение диалога
type Message struct {
	Role    Role
	Content string
}

// Schema описывает JSON-структуру, которую провайдер обязан вернуть
type Schema struct {
	// Name используется как имя схемы в response_format и как ключ кеша компиляции
	Name        string
	Description string
	Definition  map[string]any
}

// Request запрос к провайдеру
type Request struct {
	// Model идентификатор модели (для Azure это имя deployment)
	Model    string
	Messages []Message
	// Schema при наличии включает structured output; ответ валидируется локально
	Schema    *Schema
	MaxTokens int
}

// Response ответ провайдера
type Response struct {
	// Content провалидированный JSON, если в запросе была схема
	Content json.RawMessage
	// Text сырой текст первого варианта ответа
	Text  string
	Model string
	Usage Usage
}

// Usage расход токенов на запрос
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// UserPrompt собирает запрос из одного пользовательского сообщения
func UserPrompt(model, prompt string, schema *Schema) Request {
	return Request{
		Model:    model,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
		Schema:   schema,
	}
}
