package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leetosc/quiz-aide/internal/domain/repository"
	"github.com/leetosc/quiz-aide/internal/handler/dto"
	"github.com/leetosc/quiz-aide/internal/service"
)

// QuestionHandler обрабатывает запросы к банку вопросов
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler создает новый обработчик банка вопросов
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// ListQuestions возвращает вопросы банка: ?search=&subject=&starred=true&cursor=&limit=
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	starred, _ := strconv.ParseBool(c.DefaultQuery("starred", "false"))

	filter := repository.QuestionFilter{
		Search:      c.Query("search"),
		Subject:     c.Query("subject"),
		StarredOnly: starred,
	}

	page, err := h.questionService.ListBank(currentUserID(c), filter, c.Query("cursor"), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuestionListResponse(page))
}

// ListSubjects возвращает предметы банка
func (h *QuestionHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.questionService.Subjects(currentUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	if subjects == nil {
		subjects = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

// BankQuestionRequest вопрос банка
type BankQuestionRequest struct {
	dto.QuestionInput
	Subject *string `json:"subject" binding:"omitempty,max=200"`
}

// CreateQuestion создает вопрос в банке
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req BankQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subject := ""
	if req.Subject != nil {
		subject = *req.Subject
	}
	question, err := h.questionService.CreateQuestion(currentUserID(c), req.ToQuestion(), subject)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewBankQuestionResponse(question))
}

// UpdateQuestion заменяет текст и ответы вопроса
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	var req BankQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question, err := h.questionService.UpdateQuestion(currentUserID(c), c.GetString("questionID"), req.ToQuestion(), req.Subject)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewBankQuestionResponse(question))
}

// DeleteQuestion удаляет вопрос из банка и всех викторин
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	if err := h.questionService.DeleteQuestion(currentUserID(c), c.GetString("questionID")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

// ToggleStar переключает избранное
func (h *QuestionHandler) ToggleStar(c *gin.Context) {
	starred, err := h.questionService.ToggleStar(currentUserID(c), c.GetString("questionID"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"starred": starred})
}
