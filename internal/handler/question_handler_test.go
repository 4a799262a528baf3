package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Проверки запроса выполняются до обращения к сервису, поэтому сервис не нужен
func TestQuestionHandler_RequestValidation(t *testing.T) {
	h := &QuestionHandler{}

	c, w := newTestGinContext(http.MethodGet, "/api/questions?limit=abc", nil)
	h.ListQuestions(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestGinContext(http.MethodPost, "/api/questions", map[string]interface{}{
		"questionText": "Only one answer",
		"answers":      []map[string]interface{}{{"text": "A", "isCorrect": true}},
	})
	h.CreateQuestion(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestGinContext(http.MethodPut, "/api/questions/x", map[string]interface{}{
		"answers": []map[string]interface{}{{"text": "A"}, {"text": "B"}},
	})
	h.UpdateQuestion(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestGinContext(http.MethodPost, "/api/questions", map[string]interface{}{
		"questionText": "Too many",
		"answers": []map[string]interface{}{
			{"text": "A", "isCorrect": true}, {"text": "B"}, {"text": "C"}, {"text": "D"}, {"text": "E"},
		},
	})
	h.CreateQuestion(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
