package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	"github.com/leetosc/quiz-aide/internal/domain/repository"
	"github.com/leetosc/quiz-aide/internal/export"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

// ============================================================================
// Моки репозиториев
// ============================================================================

// MockQuizRepository реализует repository.QuizRepository
type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) CreateWithQuestions(quiz *entity.Quiz, questions []entity.Question) error {
	args := m.Called(quiz, questions)
	return args.Error(0)
}

func (m *MockQuizRepository) GetByID(id string) (*entity.Quiz, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) GetByShortID(shortID string) (*entity.Quiz, error) {
	args := m.Called(shortID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) ListByAuthor(authorID, cursor string, limit int) ([]entity.Quiz, error) {
	args := m.Called(authorID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) UpdateMeta(id string, updates map[string]interface{}) error {
	args := m.Called(id, updates)
	return args.Error(0)
}

func (m *MockQuizRepository) Delete(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockQuizRepository) AddQuestion(quizID, questionID string, position *int) error {
	args := m.Called(quizID, questionID, position)
	return args.Error(0)
}

func (m *MockQuizRepository) CreateAndAddQuestion(quizID string, question *entity.Question, position *int) error {
	args := m.Called(quizID, question, position)
	if question.ID == "" {
		question.ID = "generated-question-id"
	}
	return args.Error(0)
}

func (m *MockQuizRepository) RemoveQuestion(quizID, questionID string) error {
	args := m.Called(quizID, questionID)
	return args.Error(0)
}

func (m *MockQuizRepository) Reorder(quizID string, questionIDs []string) error {
	args := m.Called(quizID, questionIDs)
	return args.Error(0)
}

// MockQuestionRepository реализует repository.QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(question *entity.Question) error {
	args := m.Called(question)
	if question.ID == "" {
		question.ID = "generated-question-id"
	}
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(id string) (*entity.Question, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) ListByAuthor(authorID string, filter repository.QuestionFilter, cursor string, limit int) ([]entity.Question, error) {
	args := m.Called(authorID, filter, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) Subjects(authorID string) ([]string, error) {
	args := m.Called(authorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockQuestionRepository) ReplaceContent(question *entity.Question) error {
	args := m.Called(question)
	return args.Error(0)
}

func (m *MockQuestionRepository) SetStarred(id string, starred bool) error {
	args := m.Called(id, starred)
	return args.Error(0)
}

func (m *MockQuestionRepository) Delete(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

// ============================================================================
// In-memory кеш
// ============================================================================

// memoryCache реализует repository.CacheRepository поверх map. TTL не учитывается.
type memoryCache struct {
	mu      sync.Mutex
	data    map[string]string
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}}
}

// Get читает сырое значение ключа (для проверок в тестах)
func (c *memoryCache) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *memoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes = append(c.deletes, key)
	return nil
}

func (c *memoryCache) SetJSON(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = string(data)
	return nil
}

func (c *memoryCache) GetJSON(key string, dest interface{}) error {
	c.mu.Lock()
	v, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound
	}
	return json.Unmarshal([]byte(v), dest)
}

func (c *memoryCache) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = fmt.Sprint(value)
	return true, nil
}

func (c *memoryCache) DeleteIfEquals(key string, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data[key] != value {
		return false, nil
	}
	delete(c.data, key)
	return true, nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *memoryCache) deleted(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.deletes {
		if k == key {
			return true
		}
	}
	return false
}

// ============================================================================
// Прочие фейки
// ============================================================================

// MockQuestionGenerator testify-мок quizgen.QuestionGenerator
type MockQuestionGenerator struct {
	mock.Mock
}

func (m *MockQuestionGenerator) GenerateOne(ctx context.Context, topic string, previous []string, model string, difficulty quizgen.DifficultyLevel) (quizgen.Question, error) {
	args := m.Called(ctx, topic, previous, model, difficulty)
	return args.Get(0).(quizgen.Question), args.Error(1)
}

// staticTitles всегда возвращает одно название
type staticTitles struct {
	title string
}

func (s staticTitles) GenerateTitle(ctx context.Context, topic string, samples []string) string {
	return s.title
}

// recordingEmail запоминает отправленные экспорты
type recordingEmail struct {
	mu    sync.Mutex
	sent  []string
	files []*export.File
	err   error
}

func (r *recordingEmail) SendQuizExport(ctx context.Context, toEmail, quizName string, file *export.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, toEmail)
	r.files = append(r.files, file)
	return nil
}

func newTestExporter() *export.Exporter {
	return export.NewExporter(export.NewTemplateStore(""))
}

func makeQuestion(text string, answers ...string) quizgen.Question {
	q := quizgen.Question{QuestionText: text}
	for i, a := range answers {
		q.Answers = append(q.Answers, quizgen.Answer{Text: a, IsCorrect: i == 0})
	}
	return q
}

// storedQuiz викторина с вопросами, как ее возвращает репозиторий
func storedQuiz(id, shortID, authorID string, questions ...quizgen.Question) *entity.Quiz {
	quiz := &entity.Quiz{
		ID:        id,
		ShortID:   shortID,
		Name:      "Stored " + id,
		Topic:     "History",
		TimeLimit: 30,
		AuthorID:  authorID,
	}
	for i, q := range questions {
		e := entityFromQuestion(q, authorID, quiz.Topic)
		e.ID = fmt.Sprintf("%s-q%d", id, i)
		quiz.Questions = append(quiz.Questions, entity.QuizQuestion{
			QuizID:     id,
			QuestionID: e.ID,
			Order:      i,
			Question:   &e,
		})
	}
	return quiz
}
