package quizgen

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DefaultCallTimeout таймаут одного вызова провайдера
const DefaultCallTimeout = 45 * time.Second

// Progress состояние запуска после очередной попытки.
// Attempt == 0 означает старт запуска (Percent == 0).
type Progress struct {
	Attempt   int
	Total     int
	Percent   float64
	Succeeded int
	Failed    int
	// Question заполнен, если попытка удалась
	Question *Question
	// Err заполнен, если попытка провалилась
	Err error
}

// ProgressFunc получает обновления прогресса. Вызывается синхронно из цикла генерации.
type ProgressFunc func(Progress)

// Config настройки оркестратора
type Config struct {
	CallTimeout time.Duration
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{CallTimeout: DefaultCallTimeout}
}

// Orchestrator последовательно вызывает генератор N раз.
// Вызовы не параллелятся: промпт каждого зависит от текстов всех предыдущих удачных вопросов.
type Orchestrator struct {
	generator QuestionGenerator
	config    Config
}

// NewOrchestrator создает оркестратор
func NewOrchestrator(generator QuestionGenerator, config Config) *Orchestrator {
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultCallTimeout
	}
	return &Orchestrator{generator: generator, config: config}
}

// GenerateQuiz делает ровно NumberOfQuestions попыток и возвращает удавшиеся вопросы.
// Провал отдельной попытки пропускается. Отмена ctx проверяется между итерациями,
// в этом случае возвращается накопленное и ошибка, оборачивающая ErrCanceled.
func (o *Orchestrator) GenerateQuiz(ctx context.Context, session Session, onProgress ProgressFunc) ([]Question, error) {
	total := ClampQuestionCount(session.NumberOfQuestions)
	results := make([]Question, 0, total)
	failed := 0

	emit := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	log.Printf("[Orchestrator] Старт генерации: тема %q, вопросов %d, модель %s, сложность %s",
		session.Topic, total, session.Model, session.Difficulty)
	emit(Progress{Attempt: 0, Total: total, Percent: 0})

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			log.Printf("[Orchestrator] Генерация остановлена после %d из %d попыток: %v", i, total, err)
			return results, fmt.Errorf("%w after %d of %d attempts: %v", ErrCanceled, i, total, err)
		}

		previous := QuestionTexts(results)
		callCtx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
		q, err := o.generator.GenerateOne(callCtx, session.Topic, previous, session.Model, session.Difficulty)
		cancel()

		p := Progress{
			Attempt: i + 1,
			Total:   total,
			Percent: float64(i+1) / float64(total) * 100,
		}
		if err != nil {
			failed++
			log.Printf("[Orchestrator] Попытка %d/%d не удалась, пропускаем: %v", i+1, total, err)
			p.Err = err
		} else {
			results = append(results, q)
			generated := q.Clone()
			p.Question = &generated
		}
		p.Succeeded = len(results)
		p.Failed = failed
		emit(p)
	}

	log.Printf("[Orchestrator] Генерация завершена: успешно %d, ошибок %d", len(results), failed)
	return results, nil
}
