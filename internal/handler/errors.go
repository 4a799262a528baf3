package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leetosc/quiz-aide/internal/export"
	"github.com/leetosc/quiz-aide/internal/middleware"
	apperrors "github.com/leetosc/quiz-aide/internal/pkg/errors"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

// LimitWarningHeader выставляется, если в выгрузке есть текст длиннее лимитов Kahoot
const LimitWarningHeader = "X-Quiz-Limit-Warning"

// handleError переводит ошибки сервисов в HTTP ответ
func handleError(c *gin.Context, err error) {
	var genErr *quizgen.GenerationError
	var exportErr *export.ExportError

	switch {
	case errors.As(err, &genErr):
		log.Printf("[Handler] Ошибка генерации: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Question generation failed, please try again", "details": genErr.Payload})
	case errors.As(err, &exportErr):
		log.Printf("[Handler] Ошибка экспорта: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Export failed: template could not be processed"})
	case errors.Is(err, quizgen.ErrCanceled):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// sendSpreadsheet отдает xlsx вложением
func sendSpreadsheet(c *gin.Context, file *export.File) {
	if file.LimitWarning {
		c.Header(LimitWarningHeader, "true")
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s",
		asciiFileName(file.Name), url.PathEscape(file.Name)))
	c.Data(http.StatusOK, export.ContentType, file.Data)
}

// asciiFileName заменяет не-ASCII символы для устаревшего параметра filename
func asciiFileName(name string) string {
	out := []rune(name)
	for i, r := range out {
		if r > 126 || r < 32 || r == '"' || r == '\\' {
			out[i] = '_'
		}
	}
	return string(out)
}

// currentUserID ID пользователя из контекста, пустая строка для анонима
func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

// intParam разбирает целочисленный параметр пути
func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", name)})
		return 0, false
	}
	return v, true
}
