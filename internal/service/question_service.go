package service

import (
	"fmt"
	"log"
	"strings"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	"github.com/leetosc/quiz-aide/internal/domain/repository"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

// QuestionPage страница банка вопросов
type QuestionPage struct {
	Questions  []entity.Question
	NextCursor string
}

// QuestionService предоставляет методы для работы с банком вопросов
type QuestionService struct {
	questionRepo repository.QuestionRepository
	cacheRepo    repository.CacheRepository
}

// NewQuestionService создает новый сервис банка вопросов
func NewQuestionService(questionRepo repository.QuestionRepository, cacheRepo repository.CacheRepository) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		cacheRepo:    cacheRepo,
	}
}

// ListBank возвращает страницу вопросов пользователя
func (s *QuestionService) ListBank(userID string, filter repository.QuestionFilter, cursor string, limit int) (*QuestionPage, error) {
	limit = NormalizeLimit(limit)

	questions, err := s.questionRepo.ListByAuthor(userID, filter, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	page := &QuestionPage{Questions: questions}
	if len(questions) > limit {
		page.NextCursor = questions[limit].ID
		page.Questions = questions[:limit]
	}
	for i := range page.Questions {
		page.Questions[i].SortAnswers()
	}
	return page, nil
}

// Subjects возвращает предметы банка пользователя
func (s *QuestionService) Subjects(userID string) ([]string, error) {
	return s.questionRepo.Subjects(userID)
}

// CreateQuestion создает вопрос в банке вручную
func (s *QuestionService) CreateQuestion(userID string, q quizgen.Question, subject string) (*entity.Question, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	question := entityFromQuestion(q, userID, subject)
	if err := s.questionRepo.Create(&question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return &question, nil
}

// UpdateQuestion заменяет текст и ответы вопроса. Только владелец.
func (s *QuestionService) UpdateQuestion(userID, questionID string, q quizgen.Question, subject *string) (*entity.Question, error) {
	existing, err := s.getOwned(userID, questionID)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	updated := entityFromQuestion(q, userID, existing.Subject)
	updated.ID = existing.ID
	if subject != nil {
		updated.Subject = subjectFor(*subject)
	}
	if err := s.questionRepo.ReplaceContent(&updated); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	s.invalidateQuizzes(existing)

	return s.questionRepo.GetByID(questionID)
}

// DeleteQuestion удаляет вопрос из банка и из всех викторин. Только владелец.
func (s *QuestionService) DeleteQuestion(userID, questionID string) error {
	existing, err := s.getOwned(userID, questionID)
	if err != nil {
		return err
	}
	if err := s.questionRepo.Delete(questionID); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	s.invalidateQuizzes(existing)
	log.Printf("[QuestionService] Вопрос %s удален пользователем %s", questionID, userID)
	return nil
}

// ToggleStar переключает отметку избранного и возвращает новое значение
func (s *QuestionService) ToggleStar(userID, questionID string) (bool, error) {
	existing, err := s.getOwned(userID, questionID)
	if err != nil {
		return false, err
	}
	starred := !existing.Starred
	if err := s.questionRepo.SetStarred(questionID, starred); err != nil {
		return false, fmt.Errorf("failed to update star: %w", err)
	}
	return starred, nil
}

func (s *QuestionService) getOwned(userID, questionID string) (*entity.Question, error) {
	question, err := s.questionRepo.GetByID(questionID)
	if err != nil {
		return nil, err
	}
	if !question.IsOwnedBy(userID) {
		return nil, fmt.Errorf("%w: question %s", apperrors.ErrForbidden, questionID)
	}
	return question, nil
}

// invalidateQuizzes сбрасывает кеш публичных викторин, в которые входит вопрос
func (s *QuestionService) invalidateQuizzes(question *entity.Question) {
	for _, qq := range question.Quizzes {
		if qq.Quiz == nil || strings.TrimSpace(qq.Quiz.ShortID) == "" {
			continue
		}
		if err := s.cacheRepo.Delete(publicQuizCacheKey(qq.Quiz.ShortID)); err != nil {
			log.Printf("[QuestionService] Ошибка сброса кеша викторины %s: %v", qq.Quiz.ShortID, err)
		}
	}
}
