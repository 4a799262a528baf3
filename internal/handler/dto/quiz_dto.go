package dto

import (
	"time"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	"github.com/leetosc/quiz-aide/internal/handler/helper"
	"github.com/leetosc/quiz-aide/internal/service"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

// AnswerInput ответ во входящем запросе
type AnswerInput struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

// QuestionInput вопрос во входящем запросе
type QuestionInput struct {
	QuestionText string        `json:"questionText" binding:"required"`
	Answers      []AnswerInput `json:"answers" binding:"required,min=2,max=4,dive"`
}

// ToQuestion переводит вход в тип редактора
func (in QuestionInput) ToQuestion() quizgen.Question {
	answers := make([]quizgen.Answer, len(in.Answers))
	for i, a := range in.Answers {
		answers[i] = quizgen.Answer{Text: a.Text, IsCorrect: a.IsCorrect}
	}
	return quizgen.Question{QuestionText: in.QuestionText, Answers: answers}
}

// ToQuestions переводит список входных вопросов
func ToQuestions(in []QuestionInput) []quizgen.Question {
	out := make([]quizgen.Question, len(in))
	for i, q := range in {
		out[i] = q.ToQuestion()
	}
	return out
}

// GeneratedQuestionResponse вопрос набора (черновик, генерация)
type GeneratedQuestionResponse struct {
	Index        int                   `json:"index"`
	QuestionText string                `json:"questionText"`
	Answers      []helper.AnswerOption `json:"answers"`
	ExceedsLimit bool                  `json:"exceedsLimit"`
}

// NewGeneratedQuestionResponse создает DTO вопроса набора
func NewGeneratedQuestionResponse(index int, q quizgen.Question) GeneratedQuestionResponse {
	return GeneratedQuestionResponse{
		Index:        index,
		QuestionText: q.QuestionText,
		Answers:      helper.ConvertGeneratedAnswers(q.Answers),
		ExceedsLimit: quizgen.ExceedsLimit(q),
	}
}

// DraftResponse черновик генерации
type DraftResponse struct {
	ID                string                      `json:"id"`
	Topic             string                      `json:"topic"`
	DifficultyLevel   string                      `json:"difficultyLevel"`
	Model             string                      `json:"model"`
	NumberOfQuestions int                         `json:"numberOfQuestions"`
	TimeLimitSeconds  int                         `json:"timeLimitSeconds"`
	Questions         []GeneratedQuestionResponse `json:"questions"`
	Failed            int                         `json:"failed"`
	Truncated         bool                        `json:"truncated"`
	LimitWarning      bool                        `json:"limitWarning"`
	CreatedAt         time.Time                   `json:"createdAt"`
	UpdatedAt         time.Time                   `json:"updatedAt"`
}

// NewDraftResponse создает DTO черновика
func NewDraftResponse(d *service.Draft) *DraftResponse {
	questions := make([]GeneratedQuestionResponse, len(d.Questions))
	for i, q := range d.Questions {
		questions[i] = NewGeneratedQuestionResponse(i, q)
	}
	return &DraftResponse{
		ID:                d.ID,
		Topic:             d.Session.Topic,
		DifficultyLevel:   string(d.Session.Difficulty),
		Model:             d.Session.Model,
		NumberOfQuestions: d.Session.NumberOfQuestions,
		TimeLimitSeconds:  d.Session.TimeLimitSeconds,
		Questions:         questions,
		Failed:            d.Failed,
		Truncated:         d.Truncated,
		LimitWarning:      d.LimitWarning(),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// QuizQuestionResponse вопрос викторины в ее порядке
type QuizQuestionResponse struct {
	ID           string                `json:"id"`
	Order        int                   `json:"order"`
	QuestionText string                `json:"questionText"`
	Answers      []helper.AnswerOption `json:"answers"`
	ExceedsLimit bool                  `json:"exceedsLimit"`
}

// QuizResponse представляет викторину в формате для ответа клиенту
type QuizResponse struct {
	ID            string                 `json:"id"`
	ShortID       string                 `json:"shortId"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description,omitempty"`
	Topic         string                 `json:"topic"`
	TimeLimit     int                    `json:"timeLimit"`
	Difficulty    string                 `json:"difficulty,omitempty"`
	AuthorID      string                 `json:"authorId,omitempty"`
	QuestionCount int                    `json:"questionCount"`
	Questions     []QuizQuestionResponse `json:"questions,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// NewQuizResponse создает DTO для викторины
func NewQuizResponse(quiz *entity.Quiz, includeQuestions bool) *QuizResponse {
	resp := &QuizResponse{
		ID:            quiz.ID,
		ShortID:       quiz.ShortID,
		Name:          quiz.Name,
		Description:   quiz.Description,
		Topic:         quiz.Topic,
		TimeLimit:     quiz.TimeLimit,
		Difficulty:    quiz.Difficulty,
		AuthorID:      quiz.AuthorID,
		QuestionCount: len(quiz.Questions),
		CreatedAt:     quiz.CreatedAt,
		UpdatedAt:     quiz.UpdatedAt,
	}
	if !includeQuestions {
		return resp
	}

	resp.Questions = make([]QuizQuestionResponse, 0, len(quiz.Questions))
	for _, qq := range quiz.Questions {
		if qq.Question == nil {
			continue
		}
		qq.Question.SortAnswers()
		resp.Questions = append(resp.Questions, QuizQuestionResponse{
			ID:           qq.QuestionID,
			Order:        qq.Order,
			QuestionText: qq.Question.QuestionText,
			Answers:      helper.ConvertAnswers(qq.Question.Answers),
			ExceedsLimit: exceedsLimit(qq.Question),
		})
	}
	return resp
}

// NewPublicQuizResponse викторина без данных автора
func NewPublicQuizResponse(quiz *entity.Quiz) *QuizResponse {
	resp := NewQuizResponse(quiz, true)
	resp.AuthorID = ""
	return resp
}

// QuizListResponse страница викторин
type QuizListResponse struct {
	Quizzes    []*QuizResponse `json:"quizzes"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// NewQuizListResponse создает DTO для страницы викторин
func NewQuizListResponse(page *service.QuizPage) *QuizListResponse {
	resp := &QuizListResponse{
		Quizzes:    make([]*QuizResponse, len(page.Quizzes)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Quizzes {
		resp.Quizzes[i] = NewQuizResponse(&page.Quizzes[i], false)
	}
	return resp
}

// BankQuestionResponse вопрос банка с названиями викторин
type BankQuestionResponse struct {
	ID           string                `json:"id"`
	QuestionText string                `json:"questionText"`
	Subject      string                `json:"subject"`
	Starred      bool                  `json:"starred"`
	Answers      []helper.AnswerOption `json:"answers"`
	QuizNames    []string              `json:"quizNames"`
	ExceedsLimit bool                  `json:"exceedsLimit"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// NewBankQuestionResponse создает DTO вопроса банка
func NewBankQuestionResponse(q *entity.Question) *BankQuestionResponse {
	q.SortAnswers()
	return &BankQuestionResponse{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		Subject:      q.Subject,
		Starred:      q.Starred,
		Answers:      helper.ConvertAnswers(q.Answers),
		QuizNames:    q.QuizNames(),
		ExceedsLimit: exceedsLimit(q),
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}
}

// QuestionListResponse страница банка вопросов
type QuestionListResponse struct {
	Questions  []*BankQuestionResponse `json:"questions"`
	NextCursor string                  `json:"nextCursor,omitempty"`
}

// NewQuestionListResponse создает DTO страницы банка
func NewQuestionListResponse(page *service.QuestionPage) *QuestionListResponse {
	resp := &QuestionListResponse{
		Questions:  make([]*BankQuestionResponse, len(page.Questions)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Questions {
		resp.Questions[i] = NewBankQuestionResponse(&page.Questions[i])
	}
	return resp
}

func exceedsLimit(q *entity.Question) bool {
	answers := make([]quizgen.Answer, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = quizgen.Answer{Text: a.AnswerText, IsCorrect: a.IsCorrect}
	}
	return quizgen.ExceedsLimit(quizgen.Question{QuestionText: q.QuestionText, Answers: answers})
}
