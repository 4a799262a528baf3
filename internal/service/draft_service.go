package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	"github.com/leetosc/quiz-aide/internal/domain/repository"
	"github.com/leetosc/quiz-aide/internal/export"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

const (
	// DefaultDraftTTL время жизни черновика
	DefaultDraftTTL = 24 * time.Hour
	// DefaultDraftLockTTL время жизни блокировки черновика
	DefaultDraftLockTTL = 2 * time.Minute
)

// Draft сессия генерации, хранящаяся на сервере: параметры и редактируемый набор вопросов
type Draft struct {
	ID        string             `json:"id"`
	OwnerID   string             `json:"ownerId,omitempty"`
	Session   quizgen.Session    `json:"session"`
	Questions []quizgen.Question `json:"questions"`
	Failed    int                `json:"failed"`
	// Truncated генерация остановлена по истечении бюджета запроса, набор неполный
	Truncated bool               `json:"truncated,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// LimitWarning true, если хотя бы один вопрос превышает лимиты символов
func (d *Draft) LimitWarning() bool {
	return quizgen.AnyExceedsLimit(d.Questions)
}

// SaveDraftInput данные для сохранения черновика как викторины
type SaveDraftInput struct {
	Name        string
	Description string
}

// DraftService хранит черновики в кеше и применяет к ним операции редактора.
// Изменения одного черновика сериализуются блокировкой SETNX.
type DraftService struct {
	cacheRepo   repository.CacheRepository
	generation  *GenerationService
	quizService *QuizService
	titles      TitleGenerator
	ttl         time.Duration
	lockTTL     time.Duration
}

// NewDraftService создает сервис черновиков
func NewDraftService(
	cacheRepo repository.CacheRepository,
	generation *GenerationService,
	quizService *QuizService,
	titles TitleGenerator,
	ttl, lockTTL time.Duration,
) *DraftService {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultDraftLockTTL
	}
	return &DraftService{
		cacheRepo:   cacheRepo,
		generation:  generation,
		quizService: quizService,
		titles:      titles,
		ttl:         ttl,
		lockTTL:     lockTTL,
	}
}

func draftKey(id string) string {
	return fmt.Sprintf("draft:%s", id)
}

func draftLockKey(id string) string {
	return fmt.Sprintf("draft_lock:%s", id)
}

// Create запускает генерацию и сохраняет результат как новый черновик.
// При отмене ctx черновик не создается. Если истек дедлайн ctx,
// сохраняется частичный черновик с Truncated.
func (s *DraftService) Create(ctx context.Context, ownerID string, session quizgen.Session, onProgress quizgen.ProgressFunc) (*Draft, error) {
	questions, err := s.generation.GenerateQuiz(ctx, session, onProgress)
	truncated := false
	if err != nil {
		if !errors.Is(err, quizgen.ErrCanceled) || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, err
		}
		truncated = true
		log.Printf("[DraftService] Бюджет генерации исчерпан, сохраняем %d из %d вопросов", len(questions), session.NumberOfQuestions)
	}

	now := time.Now().UTC()
	draft := &Draft{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Session:   session,
		Questions: questions,
		Failed:    session.NumberOfQuestions - len(questions),
		Truncated: truncated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store(draft); err != nil {
		return nil, err
	}

	log.Printf("[DraftService] Создан черновик %s: вопросов %d, ошибок %d", draft.ID, len(questions), draft.Failed)
	return draft, nil
}

// Get возвращает черновик. Черновик с владельцем доступен только ему.
func (s *DraftService) Get(userID, draftID string) (*Draft, error) {
	var draft Draft
	if err := s.cacheRepo.GetJSON(draftKey(draftID), &draft); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: draft %s", apperrors.ErrNotFound, draftID)
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if draft.OwnerID != "" && draft.OwnerID != userID {
		return nil, fmt.Errorf("%w: draft %s", apperrors.ErrForbidden, draftID)
	}
	return &draft, nil
}

// AddQuestion добавляет вопрос, введенный вручную, в конец набора
func (s *DraftService) AddQuestion(userID, draftID string, q quizgen.Question) (*Draft, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return s.mutate(userID, draftID, func(d *Draft) error {
		d.Questions = quizgen.AddQuestion(d.Questions, q)
		return nil
	})
}

// GenerateMore генерирует еще один вопрос с учетом всех имеющихся и добавляет его в конец
func (s *DraftService) GenerateMore(ctx context.Context, userID, draftID string) (*Draft, error) {
	return s.mutate(userID, draftID, func(d *Draft) error {
		if len(d.Questions) >= quizgen.MaxQuestions {
			return fmt.Errorf("%w: draft already has %d questions", apperrors.ErrValidation, quizgen.MaxQuestions)
		}
		q, err := s.generation.GenerateQuestion(ctx, d.Session, quizgen.QuestionTexts(d.Questions))
		if err != nil {
			return err
		}
		d.Questions = quizgen.AddQuestion(d.Questions, q)
		return nil
	})
}

// UpdateQuestionText меняет текст вопроса index
func (s *DraftService) UpdateQuestionText(userID, draftID string, index int, text string) (*Draft, error) {
	return s.mutate(userID, draftID, func(d *Draft) error {
		if !quizgen.InRange(d.Questions, index) {
			return indexNotFound(index)
		}
		d.Questions = quizgen.UpdateQuestionText(d.Questions, index, text)
		return nil
	})
}

// UpdateAnswerText меняет текст ответа answerIndex вопроса index
func (s *DraftService) UpdateAnswerText(userID, draftID string, index, answerIndex int, text string) (*Draft, error) {
	return s.mutate(userID, draftID, func(d *Draft) error {
		if !quizgen.InRange(d.Questions, index) {
			return indexNotFound(index)
		}
		if answerIndex < 0 || answerIndex >= len(d.Questions[index].Answers) {
			return fmt.Errorf("%w: answer %d of question %d", apperrors.ErrNotFound, answerIndex, index)
		}
		d.Questions = quizgen.UpdateAnswerText(d.Questions, index, answerIndex, text)
		return nil
	})
}

// DeleteQuestion удаляет вопрос index, последующие индексы сдвигаются
func (s *DraftService) DeleteQuestion(userID, draftID string, index int) (*Draft, error) {
	return s.mutate(userID, draftID, func(d *Draft) error {
		if !quizgen.InRange(d.Questions, index) {
			return indexNotFound(index)
		}
		d.Questions = quizgen.DeleteQuestion(d.Questions, index)
		return nil
	})
}

// Regenerate заменяет вопрос index новым. При ошибке черновик не меняется.
// Вызов провайдера идет без блокировки, поэтому разные индексы перегенерируются независимо.
// Если за время генерации вопрос index изменили или удалили, возвращается ErrConflict.
func (s *DraftService) Regenerate(ctx context.Context, userID, draftID string, index int) (*Draft, error) {
	snapshot, err := s.Get(userID, draftID)
	if err != nil {
		return nil, err
	}

	questions, err := s.generation.Regenerate(ctx, snapshot.Session, snapshot.Questions, index)
	if err != nil {
		if errors.Is(err, quizgen.ErrIndexOutOfRange) {
			return nil, indexNotFound(index)
		}
		return nil, err
	}
	replaced := snapshot.Questions[index].QuestionText
	fresh := questions[index]

	return s.mutate(userID, draftID, func(d *Draft) error {
		if !quizgen.InRange(d.Questions, index) || d.Questions[index].QuestionText != replaced {
			return fmt.Errorf("%w: question %d of draft %s changed during regeneration", apperrors.ErrConflict, index, draftID)
		}
		d.Questions[index] = fresh
		return nil
	})
}

// Export выгружает вопросы черновика в xlsx
func (s *DraftService) Export(userID, draftID, name string) (*export.File, error) {
	draft, err := s.Get(userID, draftID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = draft.Session.Topic
	}
	return s.generation.ExportQuestions(draft.Questions, draft.Session.TimeLimitSeconds, name)
}

// Save сохраняет черновик как викторину пользователя и удаляет черновик.
// Без имени название придумывается по теме.
func (s *DraftService) Save(ctx context.Context, userID, draftID string, in SaveDraftInput) (*entity.Quiz, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var quiz *entity.Quiz
	_, err := s.mutate(userID, draftID, func(d *Draft) error {
		if len(d.Questions) == 0 {
			return fmt.Errorf("%w: draft has no questions", apperrors.ErrValidation)
		}
		name := in.Name
		if name == "" {
			name = s.titles.GenerateTitle(ctx, d.Session.Topic, quizgen.QuestionTexts(d.Questions))
		}
		created, err := s.quizService.CreateQuiz(userID, CreateQuizInput{
			Name:        name,
			Description: in.Description,
			Topic:       d.Session.Topic,
			TimeLimit:   d.Session.TimeLimitSeconds,
			Difficulty:  string(d.Session.Difficulty),
			Questions:   d.Questions,
		})
		if err != nil {
			return err
		}
		quiz = created

		// Удаление до снятия блокировки: повторный Save получит ErrNotFound
		if err := s.cacheRepo.Delete(draftKey(draftID)); err != nil {
			log.Printf("[DraftService] Ошибка удаления черновика %s: %v", draftID, err)
		}
		return errDraftConsumed
	})
	if err != nil && !errors.Is(err, errDraftConsumed) {
		return nil, err
	}

	log.Printf("[DraftService] Черновик %s сохранен как викторина %s", draftID, quiz.ID)
	return quiz, nil
}

// errDraftConsumed прерывает mutate без записи черновика
var errDraftConsumed = errors.New("draft consumed")

// mutate загружает черновик под блокировкой, применяет fn и сохраняет результат.
// Если fn вернула ошибку, черновик в хранилище не меняется.
func (s *DraftService) mutate(userID, draftID string, fn func(d *Draft) error) (*Draft, error) {
	token := uuid.NewString()
	lockKey := draftLockKey(draftID)

	acquired, err := s.cacheRepo.SetNX(lockKey, token, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock draft: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: draft %s is being modified", apperrors.ErrConflict, draftID)
	}
	defer func() {
		if _, err := s.cacheRepo.DeleteIfEquals(lockKey, token); err != nil {
			log.Printf("[DraftService] Ошибка снятия блокировки %s: %v", lockKey, err)
		}
	}()

	draft, err := s.Get(userID, draftID)
	if err != nil {
		return nil, err
	}
	if err := fn(draft); err != nil {
		return nil, err
	}

	draft.UpdatedAt = time.Now().UTC()
	if err := s.store(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *DraftService) store(draft *Draft) error {
	if err := s.cacheRepo.SetJSON(draftKey(draft.ID), draft, s.ttl); err != nil {
		return fmt.Errorf("failed to store draft: %w", err)
	}
	return nil
}

func indexNotFound(index int) error {
	return fmt.Errorf("%w: question index %d", apperrors.ErrNotFound, index)
}
