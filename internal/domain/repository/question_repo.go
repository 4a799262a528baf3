package repository

import (
	"github.com/leetosc/quiz-aide/internal/domain/entity"
)

// QuestionFilter фильтры банка вопросов
type QuestionFilter struct {
	Search      string // Поиск по тексту вопроса (ILIKE)
	Subject     string // Точное совпадение предмета
	StarredOnly bool
}

// QuestionRepository определяет методы для работы с банком вопросов
type QuestionRepository interface {
	Create(question *entity.Question) error
	// GetByID возвращает вопрос с ответами и названиями викторин
	GetByID(id string) (*entity.Question, error)
	// ListByAuthor возвращает до limit вопросов автора, новые первыми.
	// cursor - ID вопроса, с которого (включительно) начинается страница.
	ListByAuthor(authorID string, filter QuestionFilter, cursor string, limit int) ([]entity.Question, error)
	// Subjects возвращает отсортированный список различных предметов автора
	Subjects(authorID string) ([]string, error)
	// ReplaceContent обновляет текст/предмет и полностью заменяет ответы в одной транзакции
	ReplaceContent(question *entity.Question) error
	SetStarred(id string, starred bool) error
	Delete(id string) error
}
