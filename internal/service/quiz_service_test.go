package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

type quizServiceDeps struct {
	quizzes   *MockQuizRepository
	questions *MockQuestionRepository
	cache     *memoryCache
	email     *recordingEmail
}

func newQuizServiceForTest() (*QuizService, *quizServiceDeps) {
	deps := &quizServiceDeps{
		quizzes:   new(MockQuizRepository),
		questions: new(MockQuestionRepository),
		cache:     newMemoryCache(),
		email:     &recordingEmail{},
	}
	svc := NewQuizService(deps.quizzes, deps.questions, deps.cache, newTestExporter(), deps.email, staticTitles{title: "Generated"})
	return svc, deps
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultPageLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultPageLimit, NormalizeLimit(-5))
	assert.Equal(t, 1, NormalizeLimit(1))
	assert.Equal(t, MaxPageLimit, NormalizeLimit(1000))
}

func TestQuizService_CreateQuiz(t *testing.T) {
	svc, deps := newQuizServiceForTest()

	deps.quizzes.On("CreateWithQuestions", mock.AnythingOfType("*entity.Quiz"), mock.AnythingOfType("[]entity.Question")).
		Run(func(args mock.Arguments) {
			quiz := args.Get(0).(*entity.Quiz)
			quiz.ID = "quiz-1"
		}).
		Return(nil).Once()

	quiz, err := svc.CreateQuiz("user-1", CreateQuizInput{
		Name:  "  Capitals ",
		Topic: "Geography",
		Questions: []quizgen.Question{
			makeQuestion("Capital of France?", "Paris", "London"),
			makeQuestion("Capital of Spain?", "Madrid", "Rome", "Lisbon"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "quiz-1", quiz.ID)
	assert.Equal(t, "Capitals", quiz.Name)
	assert.Equal(t, entity.DefaultQuizTimeLimit, quiz.TimeLimit)
	assert.Equal(t, "user-1", quiz.AuthorID)

	questions := deps.quizzes.Calls[0].Arguments.Get(1).([]entity.Question)
	require.Len(t, questions, 2)
	assert.Equal(t, "Geography", questions[0].Subject, "Предмет вопроса = тема викторины")
	assert.Equal(t, "user-1", questions[1].AuthorID)
	assert.Equal(t, 2, questions[1].Answers[2].Position)
	deps.quizzes.AssertExpectations(t)
}

func TestQuizService_CreateQuiz_DefaultSubject(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	deps.quizzes.On("CreateWithQuestions", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := svc.CreateQuiz("user-1", CreateQuizInput{
		Name:      "No topic",
		Questions: []quizgen.Question{makeQuestion("Q?", "A", "B")},
	})
	require.NoError(t, err)

	questions := deps.quizzes.Calls[0].Arguments.Get(1).([]entity.Question)
	assert.Equal(t, entity.DefaultSubject, questions[0].Subject)
}

func TestQuizService_CreateQuiz_Validation(t *testing.T) {
	svc, deps := newQuizServiceForTest()

	tests := []struct {
		name  string
		user  string
		input CreateQuizInput
		want  error
	}{
		{"аноним", "", CreateQuizInput{Name: "x"}, apperrors.ErrUnauthorized},
		{"пустое имя", "u", CreateQuizInput{Name: "  "}, apperrors.ErrValidation},
		{"недопустимый лимит", "u", CreateQuizInput{Name: "x", TimeLimit: 7}, apperrors.ErrValidation},
		{"неизвестная сложность", "u", CreateQuizInput{Name: "x", Difficulty: "kindergarten"}, apperrors.ErrValidation},
		{"нет правильного ответа", "u", CreateQuizInput{Name: "x", Questions: []quizgen.Question{{
			QuestionText: "Q?",
			Answers:      []quizgen.Answer{{Text: "A"}, {Text: "B"}},
		}}}, apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateQuiz(tt.user, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	deps.quizzes.AssertNotCalled(t, "CreateWithQuestions", mock.Anything, mock.Anything)
}

func TestQuizService_ListQuizzes_NextCursor(t *testing.T) {
	svc, deps := newQuizServiceForTest()

	page := []entity.Quiz{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	deps.quizzes.On("ListByAuthor", "user-1", "", 3).Return(page, nil).Once()

	result, err := svc.ListQuizzes("user-1", "", 2)
	require.NoError(t, err)
	assert.Len(t, result.Quizzes, 2)
	assert.Equal(t, "c", result.NextCursor, "Следующая страница начинается с лишнего элемента")

	deps.quizzes.On("ListByAuthor", "user-1", "c", 3).Return([]entity.Quiz{{ID: "c"}}, nil).Once()
	result, err = svc.ListQuizzes("user-1", "c", 2)
	require.NoError(t, err)
	assert.Len(t, result.Quizzes, 1)
	assert.Empty(t, result.NextCursor)
}

func TestQuizService_GetQuiz_Ownership(t *testing.T) {
	svc, deps := newQuizServiceForTest()

	deps.quizzes.On("GetByID", "quiz-1").Return(storedQuiz("quiz-1", "short1", "owner"), nil)
	deps.quizzes.On("GetByID", "missing").Return(nil, apperrors.ErrNotFound)

	_, err := svc.GetQuiz("owner", "quiz-1")
	assert.NoError(t, err)

	_, err = svc.GetQuiz("intruder", "quiz-1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.GetQuiz("owner", "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQuizService_UpdateQuiz_InvalidatesPublicCache(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	quiz := storedQuiz("quiz-1", "short1", "owner")
	require.NoError(t, deps.cache.SetJSON(publicQuizCacheKey("short1"), quiz, 0))

	name := "Renamed"
	limit := 60
	deps.quizzes.On("GetByID", "quiz-1").Return(quiz, nil)
	deps.quizzes.On("UpdateMeta", "quiz-1", map[string]interface{}{"name": "Renamed", "time_limit": 60}).Return(nil).Once()

	_, err := svc.UpdateQuiz("owner", "quiz-1", UpdateQuizInput{Name: &name, TimeLimit: &limit})
	require.NoError(t, err)
	assert.False(t, deps.cache.has(publicQuizCacheKey("short1")))
	deps.quizzes.AssertExpectations(t)
}

func TestQuizService_UpdateQuiz_Forbidden_NoMutation(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	deps.quizzes.On("GetByID", "quiz-1").Return(storedQuiz("quiz-1", "short1", "owner"), nil)

	name := "Hijacked"
	_, err := svc.UpdateQuiz("intruder", "quiz-1", UpdateQuizInput{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	deps.quizzes.AssertNotCalled(t, "UpdateMeta", mock.Anything, mock.Anything)
}

func TestQuizService_DeleteQuiz(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	deps.quizzes.On("GetByID", "quiz-1").Return(storedQuiz("quiz-1", "short1", "owner"), nil)
	deps.quizzes.On("Delete", "quiz-1").Return(nil).Once()

	require.NoError(t, svc.DeleteQuiz("owner", "quiz-1"))
	assert.True(t, deps.cache.deleted(publicQuizCacheKey("short1")))

	err := svc.DeleteQuiz("intruder", "quiz-1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	deps.quizzes.AssertNumberOfCalls(t, "Delete", 1)
}

func TestQuizService_AddQuestion_RequiresOwnedBankQuestion(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	deps.quizzes.On("GetByID", "quiz-1").Return(storedQuiz("quiz-1", "short1", "owner"), nil)
	deps.questions.On("GetByID", "foreign").Return(&entity.Question{ID: "foreign", AuthorID: "someone"}, nil)
	deps.questions.On("GetByID", "mine").Return(&entity.Question{ID: "mine", AuthorID: "owner"}, nil)

	pos := 0
	deps.quizzes.On("AddQuestion", "quiz-1", "mine", &pos).Return(nil).Once()

	_, err := svc.AddQuestion("owner", "quiz-1", "foreign", nil)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.AddQuestion("owner", "quiz-1", "mine", &pos)
	require.NoError(t, err)
	deps.quizzes.AssertExpectations(t)
}

func TestQuizService_AddNewQuestion_UsesQuizTopic(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	deps.quizzes.On("GetByID", "quiz-1").Return(storedQuiz("quiz-1", "short1", "owner"), nil)
	deps.quizzes.On("CreateAndAddQuestion", "quiz-1", mock.AnythingOfType("*entity.Question"), (*int)(nil)).Return(nil).Once()

	_, err := svc.AddNewQuestion("owner", "quiz-1", makeQuestion("New?", "Yes", "No"), nil)
	require.NoError(t, err)

	var created *entity.Question
	for _, call := range deps.quizzes.Calls {
		if call.Method == "CreateAndAddQuestion" {
			created = call.Arguments.Get(1).(*entity.Question)
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, "History", created.Subject)
	deps.quizzes.AssertExpectations(t)
	deps.questions.AssertNotCalled(t, "Create", mock.Anything)
}

func TestQuizService_AddNewQuestion_LinkFailureReturnsError(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	deps.quizzes.On("GetByID", "quiz-1").Return(storedQuiz("quiz-1", "short1", "owner"), nil)
	deps.quizzes.On("CreateAndAddQuestion", "quiz-1", mock.AnythingOfType("*entity.Question"), (*int)(nil)).
		Return(errors.New("add question: fk violation")).Once()

	_, err := svc.AddNewQuestion("owner", "quiz-1", makeQuestion("New?", "Yes", "No"), nil)
	require.Error(t, err)
	deps.questions.AssertNotCalled(t, "Create", mock.Anything)
}

func TestQuizService_ReorderQuestions(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	quiz := storedQuiz("quiz-1", "short1", "owner",
		makeQuestion("Q0", "A", "B"), makeQuestion("Q1", "A", "B"), makeQuestion("Q2", "A", "B"))
	deps.quizzes.On("GetByID", "quiz-1").Return(quiz, nil)

	_, err := svc.ReorderQuestions("owner", "quiz-1", []string{"quiz-1-q0"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	order := []string{"quiz-1-q2", "quiz-1-q0", "quiz-1-q1"}
	deps.quizzes.On("Reorder", "quiz-1", order).Return(nil).Once()
	_, err = svc.ReorderQuestions("owner", "quiz-1", order)
	require.NoError(t, err)
	deps.quizzes.AssertExpectations(t)
}

func TestQuizService_ExportQuiz(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	quiz := storedQuiz("quiz-1", "short1", "owner",
		makeQuestion("Capital of France?", "Paris", "London"),
		makeQuestion("Capital of Spain?", "Madrid", "Rome"))
	deps.quizzes.On("GetByID", "quiz-1").Return(quiz, nil)

	file, err := svc.ExportQuiz("owner", "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, "Stored quiz-1_2-questions.xlsx", file.Name)
	assert.NotEmpty(t, file.Data)
	assert.False(t, file.LimitWarning)
}

func TestQuizService_EmailExport(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	quiz := storedQuiz("quiz-1", "short1", "owner", makeQuestion("Q?", "A", "B"))
	deps.quizzes.On("GetByID", "quiz-1").Return(quiz, nil)

	err := svc.EmailExport(context.Background(), "owner", "quiz-1", "not-an-email")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	require.NoError(t, svc.EmailExport(context.Background(), "owner", "quiz-1", "host@example.com"))
	assert.Equal(t, []string{"host@example.com"}, deps.email.sent)
	require.Len(t, deps.email.files, 1)
	assert.NotEmpty(t, deps.email.files[0].Data)

	deps.email.err = errors.New("smtp down")
	assert.Error(t, svc.EmailExport(context.Background(), "owner", "quiz-1", "host@example.com"))
}

func TestQuizService_GetPublicQuiz_Cached(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	quiz := storedQuiz("quiz-1", "short1", "owner", makeQuestion("Q?", "A", "B"))
	deps.quizzes.On("GetByShortID", "short1").Return(quiz, nil).Once()

	first, err := svc.GetPublicQuiz("short1")
	require.NoError(t, err)
	second, err := svc.GetPublicQuiz("short1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.Len(t, second.Questions, 1)
	assert.Equal(t, "Q?", second.Questions[0].Question.QuestionText)
	deps.quizzes.AssertNumberOfCalls(t, "GetByShortID", 1)
}

func TestQuizService_GetPublicQuiz_NotFound(t *testing.T) {
	svc, deps := newQuizServiceForTest()
	deps.quizzes.On("GetByShortID", "nope").Return(nil, apperrors.ErrNotFound)

	_, err := svc.GetPublicQuiz("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, deps.cache.has(publicQuizCacheKey("nope")))
}

func TestQuizService_GenerateTitle(t *testing.T) {
	svc, _ := newQuizServiceForTest()

	title, err := svc.GenerateTitle(context.Background(), "Rome", []string{"Who founded Rome?"})
	require.NoError(t, err)
	assert.Equal(t, "Generated", title)

	_, err = svc.GenerateTitle(context.Background(), " ", nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
