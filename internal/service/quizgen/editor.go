package quizgen

import (
	"context"
	"errors"
)

// ErrIndexOutOfRange индекс вопроса или ответа вне набора
var ErrIndexOutOfRange = errors.New("index out of range")

// Функции редактора чистые: принимают набор вопросов и возвращают новый,
// входной срез не меняется. Адресация по позиции (0-based), а не по идентичности.

// InRange true, если index адресует существующий вопрос
func InRange(questions []Question, index int) bool {
	return index >= 0 && index < len(questions)
}

// UpdateQuestionText заменяет текст вопроса. Индекс вне диапазона: без изменений.
func UpdateQuestionText(questions []Question, index int, text string) []Question {
	out := cloneQuestions(questions)
	if !InRange(out, index) {
		return out
	}
	out[index].QuestionText = text
	return out
}

// UpdateAnswerText заменяет текст одного ответа, IsCorrect не трогается.
// Любой индекс вне диапазона: без изменений.
func UpdateAnswerText(questions []Question, index, answerIndex int, text string) []Question {
	out := cloneQuestions(questions)
	if !InRange(out, index) {
		return out
	}
	if answerIndex < 0 || answerIndex >= len(out[index].Answers) {
		return out
	}
	out[index].Answers[answerIndex].Text = text
	return out
}

// DeleteQuestion удаляет вопрос, последующие индексы сдвигаются на один вниз.
// Держатели старых индексов должны их перепроверить.
func DeleteQuestion(questions []Question, index int) []Question {
	if !InRange(questions, index) {
		return cloneQuestions(questions)
	}
	out := make([]Question, 0, len(questions)-1)
	for i, q := range questions {
		if i == index {
			continue
		}
		out = append(out, q.Clone())
	}
	return out
}

// AddQuestion добавляет вопрос в конец
func AddQuestion(questions []Question, q Question) []Question {
	out := cloneQuestions(questions)
	return append(out, q.Clone())
}

// RegenerateQuestion заменяет вопрос index новым. В previousQuestions уходят тексты
// всех остальных вопросов. При ошибке возвращается неизмененная копия набора и ошибка.
func RegenerateQuestion(ctx context.Context, gen QuestionGenerator, session Session, questions []Question, index int) ([]Question, error) {
	out := cloneQuestions(questions)
	if !InRange(out, index) {
		return out, ErrIndexOutOfRange
	}

	others := make([]string, 0, len(out)-1)
	for i, q := range out {
		if i != index {
			others = append(others, q.QuestionText)
		}
	}

	q, err := gen.GenerateOne(ctx, session.Topic, others, session.Model, session.Difficulty)
	if err != nil {
		return out, err
	}
	out[index] = q
	return out, nil
}

func cloneQuestions(questions []Question) []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = q.Clone()
	}
	return out
}
