package quizgen

import "github.com/leetosc/quiz-aide/internal/llm"

// questionSchema структура ответа провайдера: {question: {questionText, answers[4]}}
var questionSchema = &llm.Schema{
	Name:        "quiz_question",
	Description: "A single multiple choice quiz question with exactly four answers",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"questionText": map[string]any{"type": "string"},
					"answers": map[string]any{
						"type":     "array",
						"minItems": MaxAnswers,
						"maxItems": MaxAnswers,
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"text":      map[string]any{"type": "string"},
								"isCorrect": map[string]any{"type": "boolean"},
							},
							"required":             []any{"text", "isCorrect"},
							"additionalProperties": false,
						},
					},
				},
				"required":             []any{"questionText", "answers"},
				"additionalProperties": false,
			},
		},
		"required":             []any{"question"},
		"additionalProperties": false,
	},
}

// questionEnvelope соответствует questionSchema
type questionEnvelope struct {
	Question Question `json:"question"`
}
