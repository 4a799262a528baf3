package quizgen

import (
	"context"
	"log"
	"strings"

	"github.com/leetosc/quiz-aide/internal/llm"
)

const (
	// MaxTitleChars максимальная длина названия квиза
	MaxTitleChars   = 50
	maxTitleSamples = 3
	titleMaxTokens  = 60
)

// GenerateTitle придумывает короткое название квиза. Ошибок не возвращает:
// при любом отказе провайдера отдается "Quiz: <topic>".
func (g *Generator) GenerateTitle(ctx context.Context, topic string, sampleQuestions []string) string {
	req := llm.UserPrompt(g.titleModel, buildTitlePrompt(topic, sampleQuestions), nil)
	req.MaxTokens = titleMaxTokens

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		log.Printf("[Generator] Не удалось сгенерировать название для %q: %v", topic, err)
		return FallbackTitle(topic)
	}

	title := strings.TrimSpace(stripQuotes(strings.TrimSpace(resp.Text)))
	if title == "" {
		return FallbackTitle(topic)
	}
	return truncateRunes(title, MaxTitleChars)
}

// stripQuotes снимает не более одной кавычки (" или ') с каждого края
func stripQuotes(s string) string {
	if s != "" && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if s != "" && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return s
}

// FallbackTitle название по умолчанию
func FallbackTitle(topic string) string {
	return truncateRunes("Quiz: "+topic, MaxTitleChars)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
