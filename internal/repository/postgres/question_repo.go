package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	"github.com/leetosc/quiz-aide/internal/domain/repository"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// Create создает новый вопрос вместе с ответами
func (r *QuestionRepo) Create(question *entity.Question) error {
	return r.db.Omit("Quizzes").Create(question).Error
}

// bankPreloads подгружает ответы по position и викторины (id, name, short_id)
func bankPreloads(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.position ASC")
		}).
		Preload("Quizzes").
		Preload("Quizzes.Quiz", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "short_id")
		})
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(id string) (*entity.Question, error) {
	var question entity.Question
	err := bankPreloads(r.db).Where("id = ?", id).First(&question).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// ListByAuthor возвращает вопросы банка по (created_at DESC, id DESC) с курсором по ID
func (r *QuestionRepo) ListByAuthor(authorID string, filter repository.QuestionFilter, cursor string, limit int) ([]entity.Question, error) {
	query := bankPreloads(r.db).Where("author_id = ?", authorID)

	if s := strings.TrimSpace(filter.Search); s != "" {
		query = query.Where("question_text ILIKE ?", "%"+escapeLike(s)+"%")
	}
	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	if filter.StarredOnly {
		query = query.Where("starred = ?", true)
	}

	if cursor != "" {
		var anchor entity.Question
		if err := r.db.Select("id", "created_at").Where("id = ? AND author_id = ?", cursor, authorID).First(&anchor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: unknown cursor", apperrors.ErrValidation)
			}
			return nil, err
		}
		query = query.Where("(created_at, id) <= (?, ?)", anchor.CreatedAt, anchor.ID)
	}

	var questions []entity.Question
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

// Subjects возвращает различные предметы автора по алфавиту
func (r *QuestionRepo) Subjects(authorID string) ([]string, error) {
	var subjects []string
	err := r.db.Model(&entity.Question{}).
		Where("author_id = ?", authorID).
		Distinct("subject").
		Order("subject ASC").
		Pluck("subject", &subjects).Error
	if err != nil {
		return nil, err
	}
	return subjects, nil
}

// ReplaceContent обновляет текст и предмет вопроса и заменяет ответы
func (r *QuestionRepo) ReplaceContent(question *entity.Question) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.Question{}).
			Where("id = ?", question.ID).
			Updates(map[string]interface{}{
				"question_text": question.QuestionText,
				"subject":       question.Subject,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}

		if err := tx.Where("question_id = ?", question.ID).Delete(&entity.Answer{}).Error; err != nil {
			return err
		}
		if len(question.Answers) == 0 {
			return nil
		}
		for i := range question.Answers {
			question.Answers[i].ID = ""
			question.Answers[i].QuestionID = question.ID
			question.Answers[i].Position = i
		}
		return tx.Create(&question.Answers).Error
	})
}

// SetStarred помечает вопрос избранным или снимает отметку
func (r *QuestionRepo) SetStarred(id string, starred bool) error {
	result := r.db.Model(&entity.Question{}).Where("id = ?", id).Update("starred", starred)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete удаляет вопрос. Связи с викторинами удаляются, порядок в викторинах уплотняется.
func (r *QuestionRepo) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var links []entity.QuizQuestion
		if err := tx.Where("question_id = ?", id).Find(&links).Error; err != nil {
			return err
		}
		for _, link := range links {
			if err := tx.Delete(&link).Error; err != nil {
				return err
			}
			if err := shiftOrders(tx, link.QuizID, link.Order+1, -1); err != nil {
				return err
			}
		}

		if err := tx.Where("question_id = ?", id).Delete(&entity.Answer{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&entity.Question{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// escapeLike экранирует спецсимволы LIKE
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
