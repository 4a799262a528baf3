package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/leetosc/quiz-aide/internal/export"
)

// EmailService отправляет экспорт викторины по почте
type EmailService interface {
	SendQuizExport(ctx context.Context, toEmail, quizName string, file *export.File) error
}

// NoopEmailService используется, когда отправка почты не настроена
type NoopEmailService struct{}

func (s *NoopEmailService) SendQuizExport(ctx context.Context, toEmail, quizName string, file *export.File) error {
	log.Printf("[EmailService] noop send export %q to=%s", file.Name, toEmail)
	return nil
}

// ResendEmailService отправляет письма через Resend REST API
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

// SendQuizExport отправляет xlsx вложением. Повторяет попытку при 429 и временных сетевых ошибках.
func (s *ResendEmailService) SendQuizExport(ctx context.Context, toEmail, quizName string, file *export.File) error {
	if toEmail == "" || file == nil {
		return fmt.Errorf("toEmail and file are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Your quiz export: %s", quizName),
		Text:    fmt.Sprintf("Your quiz %q is attached as a Kahoot spreadsheet (%s).", quizName, file.Name),
		Html: fmt.Sprintf("<p>Your quiz <strong>%s</strong> is attached as a Kahoot spreadsheet.</p>",
			html.EscapeString(quizName)),
		Attachments: []*resend.Attachment{{
			Content:     file.Data,
			Filename:    file.Name,
			ContentType: export.ContentType,
		}},
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithContext(ctx, params)
		if err == nil {
			log.Printf("[EmailService] Экспорт %q отправлен на %s", file.Name, toEmail)
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
