package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leetosc/quiz-aide/internal/domain/entity"
	"github.com/leetosc/quiz-aide/internal/handler/dto"
	"github.com/leetosc/quiz-aide/internal/service"
)

// QuizHandler обрабатывает запросы, связанные с сохраненными викторинами
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler создает новый обработчик викторин
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// CreateQuizRequest представляет запрос на создание викторины
type CreateQuizRequest struct {
	Name        string              `json:"name" binding:"required,max=200"`
	Description string              `json:"description" binding:"max=1000"`
	Topic       string              `json:"topic" binding:"max=200"`
	TimeLimit   int                 `json:"timeLimit"`
	Difficulty  string              `json:"difficulty"`
	Questions   []dto.QuestionInput `json:"questions" binding:"max=50,dive"`
}

// CreateQuiz обрабатывает запрос на создание викторины
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.quizService.CreateQuiz(currentUserID(c), service.CreateQuizInput{
		Name:        req.Name,
		Description: req.Description,
		Topic:       req.Topic,
		TimeLimit:   req.TimeLimit,
		Difficulty:  req.Difficulty,
		Questions:   dto.ToQuestions(req.Questions),
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuizResponse(quiz, false))
}

// ListQuizzes возвращает викторины пользователя с курсорной пагинацией
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	page, err := h.quizService.ListQuizzes(currentUserID(c), c.Query("cursor"), limit)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizListResponse(page))
}

// GetQuiz возвращает викторину с вопросами
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	quiz, err := h.quizService.GetQuiz(currentUserID(c), c.GetString("quizID"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, true))
}

// UpdateQuizRequest частичное обновление метаданных
type UpdateQuizRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=200"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Topic       *string `json:"topic" binding:"omitempty,max=200"`
	TimeLimit   *int    `json:"timeLimit"`
	Difficulty  *string `json:"difficulty"`
}

// UpdateQuiz обновляет метаданные викторины
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	var req UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.quizService.UpdateQuiz(currentUserID(c), c.GetString("quizID"), service.UpdateQuizInput{
		Name:        req.Name,
		Description: req.Description,
		Topic:       req.Topic,
		TimeLimit:   req.TimeLimit,
		Difficulty:  req.Difficulty,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, true))
}

// DeleteQuiz удаляет викторину
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	if err := h.quizService.DeleteQuiz(currentUserID(c), c.GetString("quizID")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quiz deleted successfully"})
}

// AddQuestionRequest добавление вопроса: существующего из банка (questionId) или нового (question)
type AddQuestionRequest struct {
	QuestionID string             `json:"questionId" binding:"omitempty,uuid"`
	Question   *dto.QuestionInput `json:"question"`
	Position   *int               `json:"position" binding:"omitempty,min=0"`
}

// AddQuestion добавляет вопрос в викторину
func (h *QuizHandler) AddQuestion(c *gin.Context) {
	var req AddQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.QuestionID == "") == (req.Question == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Exactly one of questionId or question is required"})
		return
	}

	userID := currentUserID(c)
	quizID := c.GetString("quizID")

	var quiz *entity.Quiz
	var err error
	if req.Question != nil {
		quiz, err = h.quizService.AddNewQuestion(userID, quizID, req.Question.ToQuestion(), req.Position)
	} else {
		quiz, err = h.quizService.AddQuestion(userID, quizID, req.QuestionID, req.Position)
	}
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, true))
}

// RemoveQuestion убирает вопрос из викторины
func (h *QuizHandler) RemoveQuestion(c *gin.Context) {
	if err := h.quizService.RemoveQuestion(currentUserID(c), c.GetString("quizID"), c.GetString("questionID")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question removed from quiz"})
}

// ReorderRequest новый порядок вопросов
type ReorderRequest struct {
	QuestionIDs []string `json:"questionIds" binding:"required,dive,uuid"`
}

// ReorderQuestions задает новый порядок вопросов
func (h *QuizHandler) ReorderQuestions(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.quizService.ReorderQuestions(currentUserID(c), c.GetString("quizID"), req.QuestionIDs)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, true))
}

// ExportQuiz отдает xlsx викторины
func (h *QuizHandler) ExportQuiz(c *gin.Context) {
	file, err := h.quizService.ExportQuiz(currentUserID(c), c.GetString("quizID"))
	if err != nil {
		handleError(c, err)
		return
	}
	sendSpreadsheet(c, file)
}

// EmailExportRequest адрес для отправки выгрузки
type EmailExportRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// EmailExport отправляет xlsx на почту
func (h *QuizHandler) EmailExport(c *gin.Context) {
	var req EmailExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.quizService.EmailExport(c.Request.Context(), currentUserID(c), c.GetString("quizID"), req.Email); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Export sent"})
}

// GenerateTitleRequest запрос названия викторины
type GenerateTitleRequest struct {
	Topic           string   `json:"topic" binding:"required,max=200"`
	SampleQuestions []string `json:"sampleQuestions" binding:"max=10"`
}

// GenerateTitle придумывает название викторины
func (h *QuizHandler) GenerateTitle(c *gin.Context) {
	var req GenerateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	title, err := h.quizService.GenerateTitle(c.Request.Context(), req.Topic, req.SampleQuestions)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": title})
}

// GetPublicQuiz возвращает викторину по короткой ссылке
func (h *QuizHandler) GetPublicQuiz(c *gin.Context) {
	quiz, err := h.quizService.GetPublicQuiz(c.Param("shortId"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPublicQuizResponse(quiz))
}

// ExportPublicQuiz отдает xlsx викторины по короткой ссылке
func (h *QuizHandler) ExportPublicQuiz(c *gin.Context) {
	file, err := h.quizService.ExportPublicQuiz(c.Param("shortId"))
	if err != nil {
		handleError(c, err)
		return
	}
	sendSpreadsheet(c, file)
}
