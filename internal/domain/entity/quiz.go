package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultQuizTimeLimit время на вопрос по умолчанию (сек)
	DefaultQuizTimeLimit = 20
	// ShortIDLength длина публичного короткого идентификатора викторины
	ShortIDLength = 10
)

// Quiz представляет сохраненную викторину пользователя
type Quiz struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	ShortID     string         `gorm:"size:16;not null;uniqueIndex" json:"short_id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	Description string         `gorm:"size:1000;not null;default:''" json:"description"`
	Topic       string         `gorm:"size:200;not null;default:''" json:"topic"`
	TimeLimit   int            `gorm:"not null;default:20" json:"time_limit"`
	Difficulty  string         `gorm:"size:20;not null;default:''" json:"difficulty"`
	AuthorID    string         `gorm:"size:64;not null;index" json:"author_id"`
	Questions   []QuizQuestion `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Quiz) TableName() string {
	return "quizzes"
}

// BeforeCreate проставляет ID и ShortID, если они не заданы
func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.ShortID == "" {
		q.ShortID = NewShortID()
	}
	if q.TimeLimit <= 0 {
		q.TimeLimit = DefaultQuizTimeLimit
	}
	return nil
}

// IsOwnedBy проверяет, что викторина принадлежит пользователю
func (q *Quiz) IsOwnedBy(userID string) bool {
	return userID != "" && q.AuthorID == userID
}

// QuestionIDs возвращает ID вопросов в порядке их следования в викторине
func (q *Quiz) QuestionIDs() []string {
	ids := make([]string, 0, len(q.Questions))
	for _, qq := range q.Questions {
		ids = append(ids, qq.QuestionID)
	}
	return ids
}

// NewShortID генерирует короткий публичный идентификатор для ссылок вида /quiz/{shortId}
func NewShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:ShortIDLength]
}
