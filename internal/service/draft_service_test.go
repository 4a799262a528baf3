package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

type draftDeps struct {
	gen     *MockQuestionGenerator
	cache   *memoryCache
	quizzes *MockQuizRepository
}

func newDraftServiceForTest() (*DraftService, *draftDeps) {
	deps := &draftDeps{
		gen:     new(MockQuestionGenerator),
		cache:   newMemoryCache(),
		quizzes: new(MockQuizRepository),
	}
	exporter := newTestExporter()
	generation := NewGenerationService(deps.gen, quizgen.DefaultModelPolicy(), 0, exporter)
	quizService := NewQuizService(deps.quizzes, new(MockQuestionRepository), deps.cache, exporter, &recordingEmail{}, staticTitles{title: "Auto title"})
	svc := NewDraftService(deps.cache, generation, quizService, staticTitles{title: "Auto title"}, 0, 0)
	return svc, deps
}

func testSession(n int) quizgen.Session {
	return quizgen.Session{
		Topic:             "Space",
		Difficulty:        quizgen.DifficultyCollege,
		Model:             quizgen.ModelGPT5Mini,
		NumberOfQuestions: n,
		TimeLimitSeconds:  30,
	}
}

// seedDraft кладет черновик в кеш напрямую
func seedDraft(t *testing.T, cache *memoryCache, id, owner string, questions ...quizgen.Question) {
	t.Helper()
	require.NoError(t, cache.SetJSON(draftKey(id), &Draft{
		ID:        id,
		OwnerID:   owner,
		Session:   testSession(len(questions)),
		Questions: questions,
	}, 0))
}

func TestDraftService_Create_PartialFailure(t *testing.T) {
	svc, deps := newDraftServiceForTest()

	deps.gen.On("GenerateOne", mock.Anything, "Space", []string{}, quizgen.ModelGPT5Mini, quizgen.DifficultyCollege).
		Return(makeQuestion("Q1", "A", "B"), nil).Once()
	deps.gen.On("GenerateOne", mock.Anything, "Space", []string{"Q1"}, quizgen.ModelGPT5Mini, quizgen.DifficultyCollege).
		Return(quizgen.Question{}, &quizgen.GenerationError{Err: errors.New("boom")}).Once()
	deps.gen.On("GenerateOne", mock.Anything, "Space", []string{"Q1"}, quizgen.ModelGPT5Mini, quizgen.DifficultyCollege).
		Return(makeQuestion("Q3", "A", "B"), nil).Once()

	var percents []float64
	draft, err := svc.Create(context.Background(), "", testSession(3), func(p quizgen.Progress) {
		percents = append(percents, p.Percent)
	})
	require.NoError(t, err)

	assert.Len(t, draft.Questions, 2)
	assert.Equal(t, 1, draft.Failed)
	assert.Equal(t, float64(100), percents[len(percents)-1])
	assert.True(t, deps.cache.has(draftKey(draft.ID)))
	deps.gen.AssertExpectations(t)
}

func TestDraftService_Create_Canceled(t *testing.T) {
	svc, deps := newDraftServiceForTest()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Create(ctx, "", testSession(2), nil)
	assert.ErrorIs(t, err, quizgen.ErrCanceled)
	deps.gen.AssertNotCalled(t, "GenerateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDraftService_Get_Ownership(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "anon", "", makeQuestion("Q", "A", "B"))
	seedDraft(t, deps.cache, "owned", "user-1", makeQuestion("Q", "A", "B"))

	_, err := svc.Get("", "anon")
	assert.NoError(t, err, "Анонимный черновик доступен по id")

	_, err = svc.Get("user-2", "owned")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Get("user-1", "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDraftService_EditorIndexSemantics(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "",
		makeQuestion("Q0", "A", "B"), makeQuestion("Q1", "A", "B"), makeQuestion("Q2", "A", "B"),
		makeQuestion("Q3", "A", "B"), makeQuestion("Q4", "A", "B"))

	draft, err := svc.DeleteQuestion("", "d1", 2)
	require.NoError(t, err)
	require.Len(t, draft.Questions, 4)
	assert.Equal(t, "Q3", draft.Questions[2].QuestionText)

	draft, err = svc.UpdateQuestionText("", "d1", 2, "x")
	require.NoError(t, err)
	assert.Equal(t, "x", draft.Questions[2].QuestionText)
	assert.Equal(t, "Q4", draft.Questions[3].QuestionText)

	draft, err = svc.UpdateAnswerText("", "d1", 0, 1, "Changed")
	require.NoError(t, err)
	assert.Equal(t, "Changed", draft.Questions[0].Answers[1].Text)
	assert.False(t, draft.Questions[0].Answers[1].IsCorrect)

	stored, err := svc.Get("", "d1")
	require.NoError(t, err)
	assert.Equal(t, draft.Questions, stored.Questions)
}

func TestDraftService_OutOfRange(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "", makeQuestion("Q0", "A", "B"))

	_, err := svc.UpdateQuestionText("", "d1", 5, "x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.UpdateAnswerText("", "d1", 0, 9, "x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.DeleteQuestion("", "d1", -1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Regenerate(context.Background(), "", "d1", 3)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDraftService_AddQuestion(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "", makeQuestion("Q0", "A", "B"))

	_, err := svc.AddQuestion("", "d1", quizgen.Question{QuestionText: "bad"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	draft, err := svc.AddQuestion("", "d1", makeQuestion("Manual", "Yes", "No"))
	require.NoError(t, err)
	require.Len(t, draft.Questions, 2)
	assert.Equal(t, "Manual", draft.Questions[1].QuestionText)
}

func TestDraftService_GenerateMore(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "", makeQuestion("Q0", "A", "B"))

	deps.gen.On("GenerateOne", mock.Anything, "Space", []string{"Q0"}, quizgen.ModelGPT5Mini, quizgen.DifficultyCollege).
		Return(makeQuestion("Q1", "A", "B"), nil).Once()

	draft, err := svc.GenerateMore(context.Background(), "", "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q0", "Q1"}, quizgen.QuestionTexts(draft.Questions))
}

func TestDraftService_Regenerate_FailureLeavesDraftUntouched(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "",
		makeQuestion("Q0", "A", "B"), makeQuestion("Q1", "A", "B"), makeQuestion("Q2", "A", "B"))

	deps.gen.On("GenerateOne", mock.Anything, "Space", []string{"Q0", "Q2"}, quizgen.ModelGPT5Mini, quizgen.DifficultyCollege).
		Return(quizgen.Question{}, &quizgen.GenerationError{Err: errors.New("provider down")}).Once()

	before, err := svc.Get("", "d1")
	require.NoError(t, err)

	_, err = svc.Regenerate(context.Background(), "", "d1", 1)
	var genErr *quizgen.GenerationError
	assert.ErrorAs(t, err, &genErr)

	after, err := svc.Get("", "d1")
	require.NoError(t, err)
	assert.Equal(t, before.Questions[1], after.Questions[1])
	assert.False(t, deps.cache.has(draftLockKey("d1")), "Блокировка снимается и при ошибке")
}

func TestDraftService_Regenerate_Success(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "", makeQuestion("Q0", "A", "B"), makeQuestion("Q1", "A", "B"))

	deps.gen.On("GenerateOne", mock.Anything, "Space", []string{"Q1"}, quizgen.ModelGPT5Mini, quizgen.DifficultyCollege).
		Return(makeQuestion("Fresh", "A", "B"), nil).Once()

	draft, err := svc.Regenerate(context.Background(), "", "d1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fresh", "Q1"}, quizgen.QuestionTexts(draft.Questions))
}

func TestDraftService_LockConflict(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "", makeQuestion("Q0", "A", "B"))

	ok, err := deps.cache.SetNX(draftLockKey("d1"), "other-writer", 0)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.UpdateQuestionText("", "d1", 0, "x")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	value, err := deps.cache.Get(draftLockKey("d1"))
	require.NoError(t, err)
	assert.Equal(t, "other-writer", value, "Чужая блокировка не снимается")
}

func TestDraftService_Export(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "", makeQuestion("Q0", "A", "B"), makeQuestion("Q1", "A", "B"))

	file, err := svc.Export("", "d1", "")
	require.NoError(t, err)
	assert.Equal(t, "Space_2-questions.xlsx", file.Name)
}

func TestDraftService_Save(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "", makeQuestion("Q0", "A", "B"))

	_, err := svc.Save(context.Background(), "", "d1", SaveDraftInput{})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	deps.quizzes.On("CreateWithQuestions", mock.AnythingOfType("*entity.Quiz"), mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(0).(*entity.Quiz).ID = "quiz-9"
		}).
		Return(nil).Once()

	quiz, err := svc.Save(context.Background(), "user-1", "d1", SaveDraftInput{})
	require.NoError(t, err)
	assert.Equal(t, "quiz-9", quiz.ID)
	assert.Equal(t, "Auto title", quiz.Name)
	assert.Equal(t, "Space", quiz.Topic)
	assert.Equal(t, 30, quiz.TimeLimit)
	assert.False(t, deps.cache.has(draftKey("d1")), "Сохраненный черновик удаляется")
}

func TestDraftService_Save_FailureKeepsDraft(t *testing.T) {
	svc, deps := newDraftServiceForTest()
	seedDraft(t, deps.cache, "d1", "", makeQuestion("Q0", "A", "B"))

	deps.quizzes.On("CreateWithQuestions", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	_, err := svc.Save(context.Background(), "user-1", "d1", SaveDraftInput{Name: "Mine"})
	assert.Error(t, err)
	assert.True(t, deps.cache.has(draftKey("d1")))
}

// unlockHookCache вызывает afterUnlock один раз сразу после снятия блокировки черновика
type unlockHookCache struct {
	*memoryCache
	fired       bool
	afterUnlock func()
}

func (c *unlockHookCache) DeleteIfEquals(key string, value string) (bool, error) {
	ok, err := c.memoryCache.DeleteIfEquals(key, value)
	if strings.HasPrefix(key, "draft_lock:") && c.afterUnlock != nil && !c.fired {
		c.fired = true
		c.afterUnlock()
	}
	return ok, err
}

func TestDraftService_Save_RepeatedSaveCreatesOneQuiz(t *testing.T) {
	cache := &unlockHookCache{memoryCache: newMemoryCache()}
	quizzes := new(MockQuizRepository)
	exporter := newTestExporter()
	generation := NewGenerationService(new(MockQuestionGenerator), quizgen.DefaultModelPolicy(), 0, exporter)
	quizService := NewQuizService(quizzes, new(MockQuestionRepository), cache, exporter, &recordingEmail{}, staticTitles{title: "T"})
	svc := NewDraftService(cache, generation, quizService, staticTitles{title: "T"}, 0, 0)
	seedDraft(t, cache.memoryCache, "d1", "", makeQuestion("Q0", "A", "B"))

	quizzes.On("CreateWithQuestions", mock.Anything, mock.Anything).Return(nil)

	var secondErr error
	cache.afterUnlock = func() {
		_, secondErr = svc.Save(context.Background(), "u1", "d1", SaveDraftInput{Name: "Again"})
	}

	_, err := svc.Save(context.Background(), "u1", "d1", SaveDraftInput{Name: "First"})
	require.NoError(t, err)
	assert.ErrorIs(t, secondErr, apperrors.ErrNotFound, "Повторный Save видит, что черновик уже сохранен")
	quizzes.AssertNumberOfCalls(t, "CreateWithQuestions", 1)
}

// gatedGenerator блокирует вызов, в котором единственный предыдущий вопрос равен blockOn
type gatedGenerator struct {
	blockOn string
	started chan struct{}
	release chan struct{}
}

func newGatedGenerator(blockOn string) *gatedGenerator {
	return &gatedGenerator{blockOn: blockOn, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedGenerator) GenerateOne(ctx context.Context, topic string, previous []string, model string, difficulty quizgen.DifficultyLevel) (quizgen.Question, error) {
	if len(previous) == 1 && previous[0] == g.blockOn {
		close(g.started)
		<-g.release
	}
	return makeQuestion("Fresh after "+strings.Join(previous, ","), "A", "B"), nil
}

func newGatedDraftService(gen quizgen.QuestionGenerator) (*DraftService, *memoryCache) {
	cache := newMemoryCache()
	generation := NewGenerationService(gen, quizgen.DefaultModelPolicy(), 0, newTestExporter())
	return NewDraftService(cache, generation, nil, staticTitles{}, 0, 0), cache
}

type regenResult struct {
	draft *Draft
	err   error
}

func TestDraftService_Regenerate_DifferentIndicesRunIndependently(t *testing.T) {
	gen := newGatedGenerator("Q1")
	svc, cache := newGatedDraftService(gen)
	seedDraft(t, cache, "d1", "", makeQuestion("Q0", "A", "B"), makeQuestion("Q1", "A", "B"))

	done := make(chan regenResult, 1)
	go func() {
		d, err := svc.Regenerate(context.Background(), "", "d1", 0)
		done <- regenResult{d, err}
	}()
	<-gen.started

	draft, err := svc.Regenerate(context.Background(), "", "d1", 1)
	require.NoError(t, err, "Пока идет генерация индекса 0, индекс 1 не блокируется")
	assert.Equal(t, []string{"Q0", "Fresh after Q0"}, quizgen.QuestionTexts(draft.Questions))

	close(gen.release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, []string{"Fresh after Q1", "Fresh after Q0"}, quizgen.QuestionTexts(res.draft.Questions))
}

func TestDraftService_Regenerate_ConflictWhenSlotEdited(t *testing.T) {
	gen := newGatedGenerator("Q1")
	svc, cache := newGatedDraftService(gen)
	seedDraft(t, cache, "d1", "", makeQuestion("Q0", "A", "B"), makeQuestion("Q1", "A", "B"))

	done := make(chan regenResult, 1)
	go func() {
		d, err := svc.Regenerate(context.Background(), "", "d1", 0)
		done <- regenResult{d, err}
	}()
	<-gen.started

	_, err := svc.UpdateQuestionText("", "d1", 0, "Edited")
	require.NoError(t, err)

	close(gen.release)
	res := <-done
	assert.ErrorIs(t, res.err, apperrors.ErrConflict)

	stored, err := svc.Get("", "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Edited", "Q1"}, quizgen.QuestionTexts(stored.Questions), "Ручная правка не затирается")
}

// slowGenerator отвечает через delay или по отмене ctx
type slowGenerator struct {
	delay time.Duration
}

func (g slowGenerator) GenerateOne(ctx context.Context, topic string, previous []string, model string, difficulty quizgen.DifficultyLevel) (quizgen.Question, error) {
	select {
	case <-time.After(g.delay):
		return makeQuestion("Q"+string(rune('A'+len(previous))), "A", "B"), nil
	case <-ctx.Done():
		return quizgen.Question{}, ctx.Err()
	}
}

func TestDraftService_Create_DeadlineStoresPartialDraft(t *testing.T) {
	svc, cache := newGatedDraftService(slowGenerator{delay: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	draft, err := svc.Create(ctx, "", testSession(quizgen.MaxQuestions), nil)
	require.NoError(t, err)
	assert.True(t, draft.Truncated)
	assert.Less(t, len(draft.Questions), quizgen.MaxQuestions)
	assert.Equal(t, quizgen.MaxQuestions-len(draft.Questions), draft.Failed)
	assert.True(t, cache.has(draftKey(draft.ID)))
}
