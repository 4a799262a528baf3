package repository

import (
	"github.com/leetosc/quiz-aide/internal/domain/entity"
)

// QuizRepository определяет методы для работы с сохраненными викторинами.
// Все операции над порядком вопросов переписывают order целиком в одной транзакции,
// так что order всегда образует непрерывную последовательность 0..N-1.
type QuizRepository interface {
	// CreateWithQuestions создает викторину, вопросы (в банке автора) и связи с order = индекс
	CreateWithQuestions(quiz *entity.Quiz, questions []entity.Question) error
	// GetByID возвращает викторину с вопросами (по order) и ответами (по position)
	GetByID(id string) (*entity.Quiz, error)
	GetByShortID(shortID string) (*entity.Quiz, error)
	// ListByAuthor возвращает до limit викторин автора, новые по updated_at первыми.
	// cursor - ID викторины, с которой (включительно) начинается страница.
	ListByAuthor(authorID, cursor string, limit int) ([]entity.Quiz, error)
	// UpdateMeta точечно обновляет метаданные (name, description, topic, time_limit, difficulty)
	UpdateMeta(id string, updates map[string]interface{}) error
	Delete(id string) error

	// AddQuestion связывает вопрос с викториной. position == nil - в конец,
	// иначе вставка со сдвигом последующих.
	AddQuestion(quizID, questionID string, position *int) error
	// CreateAndAddQuestion создает новый вопрос и связывает его с викториной атомарно
	CreateAndAddQuestion(quizID string, question *entity.Question, position *int) error
	// RemoveQuestion удаляет связь и уплотняет order
	RemoveQuestion(quizID, questionID string) error
	// Reorder задает новый порядок. questionIDs должен быть перестановкой текущих ID.
	Reorder(quizID string, questionIDs []string) error
}
