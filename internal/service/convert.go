package service

import (
	"strings"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

// questionFromEntity переводит вопрос из банка в форму генератора/экспорта (ответы по position)
func questionFromEntity(e *entity.Question) quizgen.Question {
	e.SortAnswers()
	answers := make([]quizgen.Answer, len(e.Answers))
	for i, a := range e.Answers {
		answers[i] = quizgen.Answer{Text: a.AnswerText, IsCorrect: a.IsCorrect}
	}
	return quizgen.Question{QuestionText: e.QuestionText, Answers: answers}
}

// questionsFromQuiz вопросы викторины в порядке order
func questionsFromQuiz(quiz *entity.Quiz) []quizgen.Question {
	out := make([]quizgen.Question, 0, len(quiz.Questions))
	for _, qq := range quiz.Questions {
		if qq.Question == nil {
			continue
		}
		out = append(out, questionFromEntity(qq.Question))
	}
	return out
}

// entityFromQuestion строит вопрос банка; position ответа = его индекс
func entityFromQuestion(q quizgen.Question, authorID, subject string) entity.Question {
	answers := make([]entity.Answer, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = entity.Answer{AnswerText: a.Text, IsCorrect: a.IsCorrect, Position: i}
	}
	return entity.Question{
		QuestionText: q.QuestionText,
		Subject:      subjectFor(subject),
		AuthorID:     authorID,
		Answers:      answers,
	}
}

// subjectFor тема викторины или "General"
func subjectFor(topic string) string {
	if s := strings.TrimSpace(topic); s != "" {
		return s
	}
	return entity.DefaultSubject
}
