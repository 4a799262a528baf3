package quizgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/leetosc/quiz-aide/internal/llm"
)

// QuestionGenerator генерирует один вопрос. Вызов блокируется на сети.
type QuestionGenerator interface {
	GenerateOne(ctx context.Context, topic string, previousQuestions []string, model string, difficulty DifficultyLevel) (Question, error)
}

// Generator реализует QuestionGenerator поверх llm.Provider
type Generator struct {
	provider   llm.Provider
	shuffle    func([]Answer) []Answer
	maxTokens  int
	titleModel string
}

// NewGenerator создает генератор вопросов
func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{
		provider:   provider,
		shuffle:    ShuffleAnswers,
		maxTokens:  1024,
		titleModel: ModelGPT5Mini,
	}
}

// WithTitleModel задает модель для генерации названий
func (g *Generator) WithTitleModel(model string) *Generator {
	if model != "" {
		g.titleModel = model
	}
	return g
}

// GenerateOne запрашивает у провайдера один вопрос, проверяет структуру и перемешивает ответы.
// Любой отказ возвращается как *GenerationError, повторов здесь нет.
func (g *Generator) GenerateOne(ctx context.Context, topic string, previousQuestions []string, model string, difficulty DifficultyLevel) (Question, error) {
	req := llm.UserPrompt(model, buildQuestionPrompt(topic, previousQuestions, difficulty), questionSchema)
	req.MaxTokens = g.maxTokens

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return Question{}, &GenerationError{Payload: llm.PayloadOf(err), Err: err}
	}

	var envelope questionEnvelope
	if err := json.Unmarshal(resp.Content, &envelope); err != nil {
		return Question{}, &GenerationError{Payload: string(resp.Content), Err: fmt.Errorf("decode question: %w", err)}
	}

	q := envelope.Question
	if err := q.Validate(); err != nil {
		return Question{}, &GenerationError{Payload: string(resp.Content), Err: err}
	}

	q.Answers = g.shuffle(q.Answers)
	log.Printf("[Generator] Сгенерирован вопрос по теме %q (модель %s, предыдущих %d)", topic, model, len(previousQuestions))
	return q, nil
}
