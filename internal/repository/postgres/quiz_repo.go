package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
)

// QuizRepo реализует repository.QuizRepository
type QuizRepo struct {
	db *gorm.DB
}

// NewQuizRepo создает новый репозиторий викторин
func NewQuizRepo(db *gorm.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

// CreateWithQuestions создает викторину вместе с вопросами и связями в одной транзакции
func (r *QuizRepo) CreateWithQuestions(quiz *entity.Quiz, questions []entity.Question) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Questions").Create(quiz).Error; err != nil {
			return fmt.Errorf("create quiz: %w", err)
		}

		if len(questions) == 0 {
			return nil
		}

		if err := tx.Omit("Quizzes").Create(&questions).Error; err != nil {
			return fmt.Errorf("create questions: %w", err)
		}

		links := make([]entity.QuizQuestion, len(questions))
		for i := range questions {
			links[i] = entity.QuizQuestion{
				QuizID:     quiz.ID,
				QuestionID: questions[i].ID,
				Order:      i,
			}
		}
		if err := tx.Omit("Question", "Quiz").Create(&links).Error; err != nil {
			return fmt.Errorf("create quiz questions: %w", err)
		}
		quiz.Questions = links
		return nil
	})
}

// withQuestions подгружает связи по order и ответы по position
func withQuestions(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order(`quiz_questions."order" ASC`)
		}).
		Preload("Questions.Question").
		Preload("Questions.Question.Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.position ASC")
		})
}

// GetByID возвращает викторину по ID
func (r *QuizRepo) GetByID(id string) (*entity.Quiz, error) {
	var quiz entity.Quiz
	err := withQuestions(r.db).Where("id = ?", id).First(&quiz).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &quiz, nil
}

// GetByShortID возвращает викторину по короткому публичному ID
func (r *QuizRepo) GetByShortID(shortID string) (*entity.Quiz, error) {
	var quiz entity.Quiz
	err := withQuestions(r.db).Where("short_id = ?", shortID).First(&quiz).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &quiz, nil
}

// ListByAuthor возвращает викторины автора по (updated_at DESC, id DESC) с курсором по ID
func (r *QuizRepo) ListByAuthor(authorID, cursor string, limit int) ([]entity.Quiz, error) {
	query := r.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order(`quiz_questions."order" ASC`)
		}).
		Preload("Questions.Question").
		Where("author_id = ?", authorID)

	if cursor != "" {
		var anchor entity.Quiz
		if err := r.db.Select("id", "updated_at").Where("id = ? AND author_id = ?", cursor, authorID).First(&anchor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: unknown cursor", apperrors.ErrValidation)
			}
			return nil, err
		}
		query = query.Where("(updated_at, id) <= (?, ?)", anchor.UpdatedAt, anchor.ID)
	}

	var quizzes []entity.Quiz
	err := query.Order("updated_at DESC").Order("id DESC").Limit(limit).Find(&quizzes).Error
	if err != nil {
		return nil, err
	}
	return quizzes, nil
}

// UpdateMeta точечно обновляет метаданные викторины
func (r *QuizRepo) UpdateMeta(id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.Model(&entity.Quiz{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete удаляет викторину. Связи удаляются каскадом, вопросы остаются в банке.
func (r *QuizRepo) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&entity.QuizQuestion{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&entity.Quiz{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// AddQuestion связывает вопрос с викториной в конец или в позицию position
func (r *QuizRepo) AddQuestion(quizID, questionID string, position *int) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		return linkQuestion(tx, quizID, questionID, position)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: question %s already in quiz %s", apperrors.ErrConflict, questionID, quizID)
		}
		return err
	}
	return nil
}

// CreateAndAddQuestion создает вопрос с ответами и связывает его с викториной в одной транзакции
func (r *QuizRepo) CreateAndAddQuestion(quizID string, question *entity.Question, position *int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Quizzes").Create(question).Error; err != nil {
			return fmt.Errorf("create question: %w", err)
		}
		if err := linkQuestion(tx, quizID, question.ID, position); err != nil {
			return fmt.Errorf("add question: %w", err)
		}
		return nil
	})
}

// linkQuestion вставляет связь на position (или в конец) со сдвигом последующих
func linkQuestion(tx *gorm.DB, quizID, questionID string, position *int) error {
	var count int64
	if err := tx.Model(&entity.QuizQuestion{}).Where("quiz_id = ?", quizID).Count(&count).Error; err != nil {
		return err
	}

	order := int(count)
	if position != nil && *position >= 0 && *position < int(count) {
		order = *position
		if err := shiftOrders(tx, quizID, order, 1); err != nil {
			return err
		}
	}

	link := entity.QuizQuestion{QuizID: quizID, QuestionID: questionID, Order: order}
	if err := tx.Omit("Question", "Quiz").Create(&link).Error; err != nil {
		return err
	}
	return touchQuiz(tx, quizID)
}

// RemoveQuestion удаляет связь и сдвигает последующие вопросы на одну позицию вверх
func (r *QuizRepo) RemoveQuestion(quizID, questionID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var link entity.QuizQuestion
		if err := tx.Where("quiz_id = ? AND question_id = ?", quizID, questionID).First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if err := tx.Delete(&link).Error; err != nil {
			return err
		}
		if err := shiftOrders(tx, quizID, link.Order+1, -1); err != nil {
			return err
		}
		return touchQuiz(tx, quizID)
	})
}

// Reorder переписывает order всех вопросов викторины.
// Сначала все order уводятся в отрицательные значения, чтобы не нарушить уникальный индекс.
func (r *QuizRepo) Reorder(quizID string, questionIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var current []string
		if err := tx.Model(&entity.QuizQuestion{}).Where("quiz_id = ?", quizID).Pluck("question_id", &current).Error; err != nil {
			return err
		}
		if !isPermutation(current, questionIDs) {
			return fmt.Errorf("%w: question ids must be a permutation of the quiz questions", apperrors.ErrValidation)
		}

		if err := tx.Model(&entity.QuizQuestion{}).
			Where("quiz_id = ?", quizID).
			Update("order", gorm.Expr(`-"order" - 1`)).Error; err != nil {
			return err
		}

		for i, qid := range questionIDs {
			if err := tx.Model(&entity.QuizQuestion{}).
				Where("quiz_id = ? AND question_id = ?", quizID, qid).
				Update("order", i).Error; err != nil {
				return err
			}
		}
		return touchQuiz(tx, quizID)
	})
}

// shiftOrders сдвигает order >= from на delta (+1 или -1) в два шага через отрицательные значения
func shiftOrders(tx *gorm.DB, quizID string, from, delta int) error {
	if err := tx.Model(&entity.QuizQuestion{}).
		Where(`quiz_id = ? AND "order" >= ?`, quizID, from).
		Update("order", gorm.Expr(`-"order" - 1`)).Error; err != nil {
		return err
	}
	// -(o) - 1 -> o + delta
	return tx.Model(&entity.QuizQuestion{}).
		Where(`quiz_id = ? AND "order" < 0`, quizID).
		Update("order", gorm.Expr(`-"order" - 1 + ?`, delta)).Error
}

// touchQuiz обновляет updated_at викторины
func touchQuiz(tx *gorm.DB, quizID string) error {
	return tx.Model(&entity.Quiz{}).Where("id = ?", quizID).Update("updated_at", time.Now()).Error
}

func isPermutation(current, proposed []string) bool {
	if len(current) != len(proposed) {
		return false
	}
	seen := make(map[string]int, len(current))
	for _, id := range current {
		seen[id]++
	}
	for _, id := range proposed {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
