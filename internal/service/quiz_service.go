package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	"github.com/leetosc/quiz-aide/internal/domain/repository"
	"github.com/leetosc/quiz-aide/internal/export"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

const (
	// DefaultPageLimit размер страницы по умолчанию
	DefaultPageLimit = 20
	// MaxPageLimit максимальный размер страницы
	MaxPageLimit = 100

	publicQuizCacheTTL = 60 * time.Second
)

// TitleGenerator придумывает название викторины
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, topic string, sampleQuestions []string) string
}

// CreateQuizInput данные новой викторины
type CreateQuizInput struct {
	Name        string
	Description string
	Topic       string
	TimeLimit   int
	Difficulty  string
	Questions   []quizgen.Question
}

// UpdateQuizInput частичное обновление метаданных: nil - поле не меняется
type UpdateQuizInput struct {
	Name        *string
	Description *string
	Topic       *string
	TimeLimit   *int
	Difficulty  *string
}

// QuizPage страница списка викторин
type QuizPage struct {
	Quizzes    []entity.Quiz
	NextCursor string
}

// QuizService предоставляет методы для работы с сохраненными викторинами
type QuizService struct {
	quizRepo     repository.QuizRepository
	questionRepo repository.QuestionRepository
	cacheRepo    repository.CacheRepository
	exporter     *export.Exporter
	emailService EmailService
	titles       TitleGenerator
}

// NewQuizService создает новый сервис викторин
func NewQuizService(
	quizRepo repository.QuizRepository,
	questionRepo repository.QuestionRepository,
	cacheRepo repository.CacheRepository,
	exporter *export.Exporter,
	emailService EmailService,
	titles TitleGenerator,
) *QuizService {
	return &QuizService{
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		cacheRepo:    cacheRepo,
		exporter:     exporter,
		emailService: emailService,
		titles:       titles,
	}
}

// NormalizeLimit приводит limit к [1, 100], 0 - значение по умолчанию
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

func publicQuizCacheKey(shortID string) string {
	return fmt.Sprintf("public_quiz:%s", shortID)
}

// CreateQuiz создает викторину и кладет ее вопросы в банк автора
func (s *QuizService) CreateQuiz(userID string, in CreateQuizInput) (*entity.Quiz, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: quiz name is required", apperrors.ErrValidation)
	}
	timeLimit := in.TimeLimit
	if timeLimit == 0 {
		timeLimit = entity.DefaultQuizTimeLimit
	}
	if !quizgen.ValidTimeLimit(timeLimit) {
		return nil, fmt.Errorf("%w: time limit %d is not allowed", apperrors.ErrValidation, timeLimit)
	}
	if in.Difficulty != "" && !quizgen.DifficultyLevel(in.Difficulty).Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrValidation, in.Difficulty)
	}

	questions := make([]entity.Question, 0, len(in.Questions))
	for i, q := range in.Questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", apperrors.ErrValidation, i+1, err)
		}
		questions = append(questions, entityFromQuestion(q, userID, in.Topic))
	}

	quiz := &entity.Quiz{
		Name:        name,
		Description: in.Description,
		Topic:       strings.TrimSpace(in.Topic),
		TimeLimit:   timeLimit,
		Difficulty:  in.Difficulty,
		AuthorID:    userID,
	}

	if err := s.quizRepo.CreateWithQuestions(quiz, questions); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	log.Printf("[QuizService] Создана викторина %s (%q) пользователем %s, вопросов: %d", quiz.ID, quiz.Name, userID, len(questions))
	return quiz, nil
}

// ListQuizzes возвращает страницу викторин пользователя
func (s *QuizService) ListQuizzes(userID, cursor string, limit int) (*QuizPage, error) {
	limit = NormalizeLimit(limit)

	quizzes, err := s.quizRepo.ListByAuthor(userID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	page := &QuizPage{Quizzes: quizzes}
	if len(quizzes) > limit {
		page.NextCursor = quizzes[limit].ID
		page.Quizzes = quizzes[:limit]
	}
	return page, nil
}

// GetQuiz возвращает викторину владельца
func (s *QuizService) GetQuiz(userID, quizID string) (*entity.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsOwnedBy(userID) {
		return nil, fmt.Errorf("%w: quiz %s", apperrors.ErrForbidden, quizID)
	}
	return quiz, nil
}

// UpdateQuiz обновляет метаданные викторины
func (s *QuizService) UpdateQuiz(userID, quizID string, in UpdateQuizInput) (*entity.Quiz, error) {
	quiz, err := s.GetQuiz(userID, quizID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: quiz name cannot be empty", apperrors.ErrValidation)
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Topic != nil {
		updates["topic"] = strings.TrimSpace(*in.Topic)
	}
	if in.TimeLimit != nil {
		if !quizgen.ValidTimeLimit(*in.TimeLimit) {
			return nil, fmt.Errorf("%w: time limit %d is not allowed", apperrors.ErrValidation, *in.TimeLimit)
		}
		updates["time_limit"] = *in.TimeLimit
	}
	if in.Difficulty != nil {
		if *in.Difficulty != "" && !quizgen.DifficultyLevel(*in.Difficulty).Valid() {
			return nil, fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrValidation, *in.Difficulty)
		}
		updates["difficulty"] = *in.Difficulty
	}

	if err := s.quizRepo.UpdateMeta(quizID, updates); err != nil {
		return nil, fmt.Errorf("failed to update quiz: %w", err)
	}
	s.invalidatePublic(quiz.ShortID)

	return s.quizRepo.GetByID(quizID)
}

// DeleteQuiz удаляет викторину. Вопросы остаются в банке.
func (s *QuizService) DeleteQuiz(userID, quizID string) error {
	quiz, err := s.GetQuiz(userID, quizID)
	if err != nil {
		return err
	}
	if err := s.quizRepo.Delete(quizID); err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}
	s.invalidatePublic(quiz.ShortID)
	log.Printf("[QuizService] Викторина %s удалена пользователем %s", quizID, userID)
	return nil
}

// AddQuestion добавляет вопрос из банка в викторину (в конец или в позицию)
func (s *QuizService) AddQuestion(userID, quizID, questionID string, position *int) (*entity.Quiz, error) {
	quiz, err := s.GetQuiz(userID, quizID)
	if err != nil {
		return nil, err
	}
	question, err := s.questionRepo.GetByID(questionID)
	if err != nil {
		return nil, err
	}
	if !question.IsOwnedBy(userID) {
		return nil, fmt.Errorf("%w: question %s", apperrors.ErrForbidden, questionID)
	}

	if err := s.quizRepo.AddQuestion(quizID, questionID, position); err != nil {
		return nil, fmt.Errorf("failed to add question: %w", err)
	}
	s.invalidatePublic(quiz.ShortID)
	return s.quizRepo.GetByID(quizID)
}

// AddNewQuestion создает вопрос в банке (предмет = тема викторины) и добавляет его в викторину
func (s *QuizService) AddNewQuestion(userID, quizID string, q quizgen.Question, position *int) (*entity.Quiz, error) {
	quiz, err := s.GetQuiz(userID, quizID)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	question := entityFromQuestion(q, userID, quiz.Topic)
	if err := s.quizRepo.CreateAndAddQuestion(quizID, &question, position); err != nil {
		return nil, fmt.Errorf("failed to add new question: %w", err)
	}
	s.invalidatePublic(quiz.ShortID)
	return s.quizRepo.GetByID(quizID)
}

// RemoveQuestion убирает вопрос из викторины (в банке он остается)
func (s *QuizService) RemoveQuestion(userID, quizID, questionID string) error {
	quiz, err := s.GetQuiz(userID, quizID)
	if err != nil {
		return err
	}
	if err := s.quizRepo.RemoveQuestion(quizID, questionID); err != nil {
		return fmt.Errorf("failed to remove question: %w", err)
	}
	s.invalidatePublic(quiz.ShortID)
	return nil
}

// ReorderQuestions задает новый порядок вопросов
func (s *QuizService) ReorderQuestions(userID, quizID string, questionIDs []string) (*entity.Quiz, error) {
	quiz, err := s.GetQuiz(userID, quizID)
	if err != nil {
		return nil, err
	}
	if len(questionIDs) != len(quiz.Questions) {
		return nil, fmt.Errorf("%w: expected %d question ids, got %d", apperrors.ErrValidation, len(quiz.Questions), len(questionIDs))
	}
	if err := s.quizRepo.Reorder(quizID, questionIDs); err != nil {
		return nil, fmt.Errorf("failed to reorder questions: %w", err)
	}
	s.invalidatePublic(quiz.ShortID)
	return s.quizRepo.GetByID(quizID)
}

// ExportQuiz выгружает викторину владельца в xlsx
func (s *QuizService) ExportQuiz(userID, quizID string) (*export.File, error) {
	quiz, err := s.GetQuiz(userID, quizID)
	if err != nil {
		return nil, err
	}
	return s.exportQuiz(quiz)
}

// EmailExport отправляет xlsx викторины на почту
func (s *QuizService) EmailExport(ctx context.Context, userID, quizID, toEmail string) error {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("%w: valid email is required", apperrors.ErrValidation)
	}

	quiz, err := s.GetQuiz(userID, quizID)
	if err != nil {
		return err
	}
	file, err := s.exportQuiz(quiz)
	if err != nil {
		return err
	}
	return s.emailService.SendQuizExport(ctx, toEmail, quiz.Name, file)
}

func (s *QuizService) exportQuiz(quiz *entity.Quiz) (*export.File, error) {
	questions := questionsFromQuiz(quiz)
	return s.exporter.Export(questions, quiz.TimeLimit, quiz.Name)
}

// GetPublicQuiz возвращает викторину по shortId без авторизации. Кешируется на 60 секунд.
func (s *QuizService) GetPublicQuiz(shortID string) (*entity.Quiz, error) {
	key := publicQuizCacheKey(shortID)

	var cached entity.Quiz
	if err := s.cacheRepo.GetJSON(key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("[QuizService] Ошибка чтения кеша %s: %v", key, err)
	}

	quiz, err := s.quizRepo.GetByShortID(shortID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepo.SetJSON(key, quiz, publicQuizCacheTTL); err != nil {
		log.Printf("[QuizService] Ошибка записи кеша %s: %v", key, err)
	}
	return quiz, nil
}

// ExportPublicQuiz выгружает публичную викторину в xlsx
func (s *QuizService) ExportPublicQuiz(shortID string) (*export.File, error) {
	quiz, err := s.GetPublicQuiz(shortID)
	if err != nil {
		return nil, err
	}
	return s.exportQuiz(quiz)
}

// GenerateTitle придумывает название по теме и примерам вопросов
func (s *QuizService) GenerateTitle(ctx context.Context, topic string, samples []string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("%w: topic is required", apperrors.ErrValidation)
	}
	return s.titles.GenerateTitle(ctx, topic, samples), nil
}

// invalidatePublic сбрасывает кеш публичной викторины
func (s *QuizService) invalidatePublic(shortID string) {
	if shortID == "" {
		return
	}
	if err := s.cacheRepo.Delete(publicQuizCacheKey(shortID)); err != nil {
		log.Printf("[QuizService] Ошибка сброса кеша викторины %s: %v", shortID, err)
	}
}
