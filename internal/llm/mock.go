package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse заготовленный ответ для MockProvider
type MockResponse struct {
	Content json.RawMessage
	Text    string
	Err     error
}

// MockProvider детерминированный Provider для тестов.
// Отдает ответы в порядке FIFO и запоминает все запросы.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
}

// NewMockProvider создает мок с очередью ответов
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate возвращает следующий ответ из очереди или ErrProviderUnavailable, если очередь пуста.
// Если в запросе есть схема, ответ валидируется так же, как у настоящего провайдера.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	if len(m.responses) == 0 {
		return nil, &ErrProviderUnavailable{Payload: `{"error":"mock queue is empty"}`}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp.Err != nil {
		return nil, resp.Err
	}

	text := resp.Text
	if text == "" {
		text = string(resp.Content)
	}
	out := &Response{Text: text, Model: req.Model}
	if req.Schema != nil {
		if err := validateResponse(req.Schema, json.RawMessage(text)); err != nil {
			return nil, err
		}
		out.Content = json.RawMessage(text)
	}
	return out, nil
}

// CallCount количество вызовов Generate
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
