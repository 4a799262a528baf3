package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuizQuestion связывает викторину с вопросом из банка.
// Order уникален в пределах викторины и образует непрерывную последовательность 0..N-1.
type QuizQuestion struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	QuizID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_quiz_questions_quiz_question,priority:1;uniqueIndex:idx_quiz_questions_quiz_order,priority:1" json:"quiz_id"`
	QuestionID string    `gorm:"type:uuid;not null;uniqueIndex:idx_quiz_questions_quiz_question,priority:2;index" json:"question_id"`
	Order      int       `gorm:"column:order;not null;uniqueIndex:idx_quiz_questions_quiz_order,priority:2" json:"order"`
	Question   *Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
	Quiz       *Quiz     `gorm:"foreignKey:QuizID" json:"quiz,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName задает имя таблицы для GORM.
func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// BeforeCreate проставляет ID связи
func (qq *QuizQuestion) BeforeCreate(tx *gorm.DB) error {
	if qq.ID == "" {
		qq.ID = uuid.NewString()
	}
	return nil
}
