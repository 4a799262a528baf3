package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/leetosc/quiz-aide/internal/handler/dto"
	"github.com/leetosc/quiz-aide/internal/service"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
	"github.com/leetosc/quiz-aide/internal/websocket"
)

// DefaultSyncBudget время синхронной генерации набора, если не задано в конфиге
const DefaultSyncBudget = 100 * time.Second

// GenerationHandler обрабатывает генерацию вопросов, черновики и экспорт без сохранения
type GenerationHandler struct {
	generation *service.GenerationService
	drafts     *service.DraftService
	upgrader   *gorillaws.Upgrader
	wsConfig   websocket.ClientConfig
	syncBudget time.Duration
}

// NewGenerationHandler создает новый обработчик генерации.
// syncBudget должен быть меньше WriteTimeout сервера.
func NewGenerationHandler(
	generation *service.GenerationService,
	drafts *service.DraftService,
	allowedOrigins []string,
	syncBudget time.Duration,
) *GenerationHandler {
	if syncBudget <= 0 {
		syncBudget = DefaultSyncBudget
	}
	return &GenerationHandler{
		generation: generation,
		drafts:     drafts,
		upgrader:   websocket.NewUpgrader(allowedOrigins),
		wsConfig:   websocket.DefaultClientConfig(),
		syncBudget: syncBudget,
	}
}

// GenerateSessionRequest параметры сессии генерации
type GenerateSessionRequest struct {
	Topic             string `json:"topic" form:"topic" binding:"required,max=200"`
	DifficultyLevel   string `json:"difficultyLevel" form:"difficultyLevel"`
	Model             string `json:"model" form:"model"`
	NumberOfQuestions int    `json:"numberOfQuestions" form:"numberOfQuestions"`
	TimeLimitSeconds  int    `json:"timeLimitSeconds" form:"timeLimitSeconds"`
}

func (r GenerateSessionRequest) toService() service.GenerateRequest {
	return service.GenerateRequest{
		Topic:             r.Topic,
		Difficulty:        r.DifficultyLevel,
		Model:             r.Model,
		NumberOfQuestions: r.NumberOfQuestions,
		TimeLimitSeconds:  r.TimeLimitSeconds,
	}
}

// GenerateQuestionRequest запрос одного вопроса
type GenerateQuestionRequest struct {
	GenerateSessionRequest
	PreviousQuestions []string `json:"previousQuestions" binding:"max=100"`
}

// GenerateQuestion генерирует один вопрос с учетом уже имеющихся
func (h *GenerationHandler) GenerateQuestion(c *gin.Context) {
	var req GenerateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.generation.ResolveSession(req.toService(), currentUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	q, err := h.generation.GenerateQuestion(c.Request.Context(), session, req.PreviousQuestions)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model":    session.Model,
		"question": dto.NewGeneratedQuestionResponse(0, q),
	})
}

// CreateDraft генерирует набор синхронно и возвращает черновик.
// По истечении syncBudget отдается частичный черновик с truncated=true,
// полный прогон большого набора идет через /api/generate/ws.
func (h *GenerationHandler) CreateDraft(c *gin.Context) {
	var req GenerateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	session, err := h.generation.ResolveSession(req.toService(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.syncBudget)
	defer cancel()

	draft, err := h.drafts.Create(ctx, userID, session, nil)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewDraftResponse(draft))
}

// progressPayload данные событий прогресса
type progressPayload struct {
	Attempt   int                            `json:"attempt"`
	Total     int                            `json:"total"`
	Percent   float64                        `json:"percent"`
	Succeeded int                            `json:"succeeded"`
	Failed    int                            `json:"failed"`
	Question  *dto.GeneratedQuestionResponse `json:"question,omitempty"`
	Error     string                         `json:"error,omitempty"`
}

// StreamGeneration запускает генерацию и шлет прогресс по WebSocket.
// Параметры сессии берутся из query. Отключение клиента останавливает генерацию между вопросами.
func (h *GenerationHandler) StreamGeneration(c *gin.Context) {
	var req GenerateSessionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	session, err := h.generation.ResolveSession(req.toService(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[GenerationHandler] Ошибка upgrade: %v", err)
		return
	}

	client := websocket.NewClient(context.Background(), conn, userID, h.wsConfig)
	defer client.Close()

	onProgress := func(p quizgen.Progress) {
		payload := progressPayload{
			Attempt:   p.Attempt,
			Total:     p.Total,
			Percent:   p.Percent,
			Succeeded: p.Succeeded,
			Failed:    p.Failed,
		}
		eventType := websocket.QUESTION_GENERATED
		switch {
		case p.Attempt == 0:
			eventType = websocket.GENERATION_STARTED
		case p.Err != nil:
			eventType = websocket.QUESTION_FAILED
			payload.Error = p.Err.Error()
		case p.Question != nil:
			q := dto.NewGeneratedQuestionResponse(p.Succeeded-1, *p.Question)
			payload.Question = &q
		}
		h.send(client, eventType, payload)
	}

	draft, err := h.drafts.Create(client.Context(), userID, session, onProgress)
	if err != nil {
		if errors.Is(err, quizgen.ErrCanceled) {
			log.Printf("[GenerationHandler] Клиент отключился, генерация остановлена: %v", err)
			return
		}
		h.send(client, websocket.GENERATION_ERROR, gin.H{"error": err.Error()})
		return
	}

	h.send(client, websocket.GENERATION_COMPLETED, gin.H{
		"draftId": draft.ID,
		"draft":   dto.NewDraftResponse(draft),
	})
}

// send отправляет событие клиенту; закрытое соединение не считается ошибкой
func (h *GenerationHandler) send(client *websocket.Client, eventType string, data interface{}) {
	if err := client.SendEvent(eventType, data); err != nil && !errors.Is(err, websocket.ErrClientClosed) {
		log.Printf("[GenerationHandler] Не удалось отправить %s: %v", eventType, err)
	}
}

// ExportRequest выгрузка произвольного набора без сохранения
type ExportRequest struct {
	Questions        []dto.QuestionInput `json:"questions" binding:"required,min=1,max=50,dive"`
	TimeLimitSeconds int                 `json:"timeLimitSeconds"`
	Name             string              `json:"name" binding:"max=200"`
}

// Export отдает xlsx для переданных вопросов
func (h *GenerationHandler) Export(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := h.generation.ExportQuestions(dto.ToQuestions(req.Questions), req.TimeLimitSeconds, req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	sendSpreadsheet(c, file)
}

// GetDraft возвращает черновик
func (h *GenerationHandler) GetDraft(c *gin.Context) {
	draft, err := h.drafts.Get(currentUserID(c), c.GetString("draftID"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewDraftResponse(draft))
}

// AddDraftQuestion добавляет в черновик вопрос, введенный вручную
func (h *GenerationHandler) AddDraftQuestion(c *gin.Context) {
	var req dto.QuestionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft, err := h.drafts.AddQuestion(currentUserID(c), c.GetString("draftID"), req.ToQuestion())
	h.respondDraft(c, draft, err)
}

// GenerateDraftQuestion догенерирует еще один вопрос в черновик
func (h *GenerationHandler) GenerateDraftQuestion(c *gin.Context) {
	draft, err := h.drafts.GenerateMore(c.Request.Context(), currentUserID(c), c.GetString("draftID"))
	h.respondDraft(c, draft, err)
}

// UpdateTextRequest новый текст вопроса или ответа
type UpdateTextRequest struct {
	Text string `json:"text" binding:"required"`
}

// UpdateDraftQuestion меняет текст вопроса
func (h *GenerationHandler) UpdateDraftQuestion(c *gin.Context) {
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	var req UpdateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft, err := h.drafts.UpdateQuestionText(currentUserID(c), c.GetString("draftID"), index, req.Text)
	h.respondDraft(c, draft, err)
}

// UpdateDraftAnswer меняет текст ответа, правильность не меняется
func (h *GenerationHandler) UpdateDraftAnswer(c *gin.Context) {
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	answerIndex, ok := intParam(c, "answerIndex")
	if !ok {
		return
	}
	var req UpdateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft, err := h.drafts.UpdateAnswerText(currentUserID(c), c.GetString("draftID"), index, answerIndex, req.Text)
	h.respondDraft(c, draft, err)
}

// DeleteDraftQuestion удаляет вопрос из черновика
func (h *GenerationHandler) DeleteDraftQuestion(c *gin.Context) {
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	draft, err := h.drafts.DeleteQuestion(currentUserID(c), c.GetString("draftID"), index)
	h.respondDraft(c, draft, err)
}

// RegenerateDraftQuestion заменяет вопрос новым
func (h *GenerationHandler) RegenerateDraftQuestion(c *gin.Context) {
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	draft, err := h.drafts.Regenerate(c.Request.Context(), currentUserID(c), c.GetString("draftID"), index)
	h.respondDraft(c, draft, err)
}

// ExportDraft отдает xlsx черновика
func (h *GenerationHandler) ExportDraft(c *gin.Context) {
	file, err := h.drafts.Export(currentUserID(c), c.GetString("draftID"), c.Query("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	sendSpreadsheet(c, file)
}

// SaveDraftRequest параметры сохранения черновика
type SaveDraftRequest struct {
	Name        string `json:"name" binding:"max=200"`
	Description string `json:"description" binding:"max=1000"`
}

// SaveDraft сохраняет черновик как викторину
func (h *GenerationHandler) SaveDraft(c *gin.Context) {
	var req SaveDraftRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	quiz, err := h.drafts.Save(c.Request.Context(), currentUserID(c), c.GetString("draftID"), service.SaveDraftInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewQuizResponse(quiz, false))
}

func (h *GenerationHandler) respondDraft(c *gin.Context, draft *service.Draft, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewDraftResponse(draft))
}
