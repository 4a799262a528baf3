package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/leetosc/quiz-aide/internal/export"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

// GenerateRequest параметры запроса генерации от клиента
type GenerateRequest struct {
	Topic             string
	Difficulty        string
	Model             string
	NumberOfQuestions int
	TimeLimitSeconds  int
}

// GenerationService связывает генератор, оркестратор, политику моделей и экспорт
type GenerationService struct {
	generator    quizgen.QuestionGenerator
	orchestrator *quizgen.Orchestrator
	policy       quizgen.ModelPolicy
	callTimeout  time.Duration
	exporter     *export.Exporter
}

// NewGenerationService создает сервис генерации
func NewGenerationService(
	generator quizgen.QuestionGenerator,
	policy quizgen.ModelPolicy,
	callTimeout time.Duration,
	exporter *export.Exporter,
) *GenerationService {
	if callTimeout <= 0 {
		callTimeout = quizgen.DefaultCallTimeout
	}
	return &GenerationService{
		generator:    generator,
		orchestrator: quizgen.NewOrchestrator(generator, quizgen.Config{CallTimeout: callTimeout}),
		policy:       policy,
		callTimeout:  callTimeout,
		exporter:     exporter,
	}
}

// ResolveSession проверяет параметры и один раз разрешает модель для вызывающего
func (s *GenerationService) ResolveSession(req GenerateRequest, userID string) (quizgen.Session, error) {
	session, err := quizgen.Session{
		Topic:             req.Topic,
		Difficulty:        quizgen.DifficultyLevel(req.Difficulty),
		NumberOfQuestions: req.NumberOfQuestions,
		TimeLimitSeconds:  req.TimeLimitSeconds,
	}.Normalize()
	if err != nil {
		return session, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	session.Model = s.policy.Resolve(req.Model, userID != "")
	if req.Model != "" && session.Model != req.Model {
		log.Printf("[GenerationService] Модель %q заменена на %q (user=%q)", req.Model, session.Model, userID)
	}
	return session, nil
}

// GenerateQuestion генерирует один вопрос, избегая повторов previous
func (s *GenerationService) GenerateQuestion(ctx context.Context, session quizgen.Session, previous []string) (quizgen.Question, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.generator.GenerateOne(callCtx, session.Topic, previous, session.Model, session.Difficulty)
}

// GenerateQuiz запускает последовательную генерацию всего набора
func (s *GenerationService) GenerateQuiz(ctx context.Context, session quizgen.Session, onProgress quizgen.ProgressFunc) ([]quizgen.Question, error) {
	return s.orchestrator.GenerateQuiz(ctx, session, onProgress)
}

// Regenerate заменяет вопрос index новым с учетом остальных вопросов
func (s *GenerationService) Regenerate(ctx context.Context, session quizgen.Session, questions []quizgen.Question, index int) ([]quizgen.Question, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return quizgen.RegenerateQuestion(callCtx, s.generator, session, questions, index)
}

// ExportQuestions выгружает произвольный набор вопросов (без сохранения)
func (s *GenerationService) ExportQuestions(questions []quizgen.Question, timeLimitSeconds int, name string) (*export.File, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions to export", apperrors.ErrValidation)
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", apperrors.ErrValidation, i+1, err)
		}
	}
	if timeLimitSeconds == 0 {
		timeLimitSeconds = quizgen.DefaultTimeLimit
	}
	if !quizgen.ValidTimeLimit(timeLimitSeconds) {
		return nil, fmt.Errorf("%w: time limit %d is not allowed", apperrors.ErrValidation, timeLimitSeconds)
	}
	return s.exporter.Export(questions, timeLimitSeconds, name)
}
