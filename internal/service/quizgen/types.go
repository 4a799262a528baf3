package quizgen

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxQuestionChars мягкий лимит длины вопроса (Kahoot)
	MaxQuestionChars = 120
	// MaxAnswerChars мягкий лимит длины ответа (Kahoot)
	MaxAnswerChars = 75

	MinQuestions = 1
	MaxQuestions = 50

	MinAnswers = 2
	MaxAnswers = 4
)

// Answer вариант ответа
type Answer struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question вопрос с вариантами ответа. Порядок Answers это порядок отображения.
type Question struct {
	QuestionText string   `json:"questionText"`
	Answers      []Answer `json:"answers"`
}

// Clone возвращает глубокую копию вопроса
func (q Question) Clone() Question {
	answers := make([]Answer, len(q.Answers))
	copy(answers, q.Answers)
	return Question{QuestionText: q.QuestionText, Answers: answers}
}

// CorrectPositions 1-based позиции правильных ответов
func (q Question) CorrectPositions() []int {
	var positions []int
	for i, a := range q.Answers {
		if a.IsCorrect {
			positions = append(positions, i+1)
		}
	}
	return positions
}

// Validate проверяет структурный инвариант: 2..4 ответа, хотя бы один правильный, непустой текст.
// Лимиты длины сюда не входят, они только предупреждают.
func (q Question) Validate() error {
	if strings.TrimSpace(q.QuestionText) == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Answers) < MinAnswers || len(q.Answers) > MaxAnswers {
		return fmt.Errorf("question must have %d-%d answers, got %d", MinAnswers, MaxAnswers, len(q.Answers))
	}
	hasCorrect := false
	for i, a := range q.Answers {
		if strings.TrimSpace(a.Text) == "" {
			return fmt.Errorf("answer %d text is empty", i+1)
		}
		if a.IsCorrect {
			hasCorrect = true
		}
	}
	if !hasCorrect {
		return fmt.Errorf("question must have at least one correct answer")
	}
	return nil
}

// ExceedsLimit true, если вопрос длиннее 120 символов или любой ответ длиннее 75.
// Считаются символы, а не байты.
func ExceedsLimit(q Question) bool {
	if utf8.RuneCountInString(q.QuestionText) > MaxQuestionChars {
		return true
	}
	for _, a := range q.Answers {
		if utf8.RuneCountInString(a.Text) > MaxAnswerChars {
			return true
		}
	}
	return false
}

// AnyExceedsLimit true, если хотя бы один вопрос набора превышает лимит
func AnyExceedsLimit(questions []Question) bool {
	for _, q := range questions {
		if ExceedsLimit(q) {
			return true
		}
	}
	return false
}

// DifficultyLevel уровень сложности генерации
type DifficultyLevel string

const (
	DifficultyHighSchool DifficultyLevel = "high_school"
	DifficultyCollege    DifficultyLevel = "college"
	DifficultyPostGrad   DifficultyLevel = "post_grad"

	DefaultDifficulty = DifficultyCollege
)

// Valid true для известного уровня
func (d DifficultyLevel) Valid() bool {
	switch d {
	case DifficultyHighSchool, DifficultyCollege, DifficultyPostGrad:
		return true
	}
	return false
}

// ParseDifficulty разбирает уровень; пустая строка дает college
func ParseDifficulty(s string) (DifficultyLevel, error) {
	if s == "" {
		return DefaultDifficulty, nil
	}
	d := DifficultyLevel(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty level %q", s)
	}
	return d, nil
}

// TimeLimits допустимые лимиты времени на вопрос (сек)
var TimeLimits = []int{5, 10, 20, 30, 60, 90, 120, 240}

// DefaultTimeLimit лимит времени по умолчанию
const DefaultTimeLimit = 20

// ValidTimeLimit true, если значение входит в TimeLimits
func ValidTimeLimit(seconds int) bool {
	for _, t := range TimeLimits {
		if t == seconds {
			return true
		}
	}
	return false
}

// ClampQuestionCount приводит количество вопросов к [1, 50]
func ClampQuestionCount(n int) int {
	if n < MinQuestions {
		return MinQuestions
	}
	if n > MaxQuestions {
		return MaxQuestions
	}
	return n
}

// Session параметры одного запуска генерации. Модель уже разрешена политикой.
type Session struct {
	Topic             string          `json:"topic"`
	Difficulty        DifficultyLevel `json:"difficultyLevel"`
	Model             string          `json:"model"`
	NumberOfQuestions int             `json:"numberOfQuestions"`
	TimeLimitSeconds  int             `json:"timeLimitSeconds"`
}

// Normalize заполняет значения по умолчанию и проверяет параметры
func (s Session) Normalize() (Session, error) {
	s.Topic = strings.TrimSpace(s.Topic)
	if s.Topic == "" {
		return s, fmt.Errorf("topic is required")
	}
	if s.Difficulty == "" {
		s.Difficulty = DefaultDifficulty
	}
	if !s.Difficulty.Valid() {
		return s, fmt.Errorf("unknown difficulty level %q", s.Difficulty)
	}
	s.NumberOfQuestions = ClampQuestionCount(s.NumberOfQuestions)
	if s.TimeLimitSeconds == 0 {
		s.TimeLimitSeconds = DefaultTimeLimit
	}
	if !ValidTimeLimit(s.TimeLimitSeconds) {
		return s, fmt.Errorf("time limit %d is not allowed", s.TimeLimitSeconds)
	}
	return s, nil
}

// QuestionTexts тексты вопросов в исходном порядке
func QuestionTexts(questions []Question) []string {
	texts := make([]string, 0, len(questions))
	for _, q := range questions {
		texts = append(texts, q.QuestionText)
	}
	return texts
}
