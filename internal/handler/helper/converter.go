package helper

import (
	"github.com/leetosc/quiz-aide/internal/domain/entity"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

// AnswerOption ответ в формате для фронтенда. Position - 0-based порядок отображения.
type AnswerOption struct {
	Position  int    `json:"position"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// ConvertAnswers переводит ответы банка в порядок отображения
func ConvertAnswers(answers []entity.Answer) []AnswerOption {
	converted := make([]AnswerOption, len(answers))
	for i, a := range answers {
		converted[i] = AnswerOption{Position: i, Text: a.AnswerText, IsCorrect: a.IsCorrect}
	}
	return converted
}

// ConvertGeneratedAnswers переводит ответы из редактора
func ConvertGeneratedAnswers(answers []quizgen.Answer) []AnswerOption {
	converted := make([]AnswerOption, len(answers))
	for i, a := range answers {
		converted[i] = AnswerOption{Position: i, Text: a.Text, IsCorrect: a.IsCorrect}
	}
	return converted
}
