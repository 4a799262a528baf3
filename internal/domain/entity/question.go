package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultSubject предмет вопроса, если тема викторины не указана
const DefaultSubject = "General"

// Question представляет вопрос в банке вопросов пользователя
type Question struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionText string         `gorm:"type:text;not null" json:"question_text"`
	Subject      string         `gorm:"size:200;not null;default:'General';index" json:"subject"`
	AuthorID     string         `gorm:"size:64;not null;index" json:"author_id"`
	Starred      bool           `gorm:"not null;default:false" json:"starred"`
	Answers      []Answer       `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"answers"`
	Quizzes      []QuizQuestion `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"quizzes,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// BeforeCreate проставляет ID и предмет по умолчанию
func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Subject == "" {
		q.Subject = DefaultSubject
	}
	return nil
}

// IsOwnedBy проверяет, что вопрос принадлежит пользователю
func (q *Question) IsOwnedBy(userID string) bool {
	return userID != "" && q.AuthorID == userID
}

// SortAnswers упорядочивает ответы по позиции отображения
func (q *Question) SortAnswers() {
	sort.SliceStable(q.Answers, func(i, j int) bool {
		return q.Answers[i].Position < q.Answers[j].Position
	})
}

// CorrectPositions возвращает 1-based позиции правильных ответов
func (q *Question) CorrectPositions() []int {
	positions := make([]int, 0, 1)
	for i, a := range q.Answers {
		if a.IsCorrect {
			positions = append(positions, i+1)
		}
	}
	return positions
}

// QuizNames возвращает названия викторин, в которые входит вопрос
func (q *Question) QuizNames() []string {
	names := make([]string, 0, len(q.Quizzes))
	for _, qq := range q.Quizzes {
		if qq.Quiz != nil {
			names = append(names, qq.Quiz.Name)
		}
	}
	return names
}

// Answer вариант ответа на вопрос. Position задает порядок отображения.
type Answer struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID string `gorm:"type:uuid;not null;index" json:"question_id"`
	AnswerText string `gorm:"type:text;not null" json:"answer_text"`
	IsCorrect  bool   `gorm:"not null;default:false" json:"is_correct"`
	Position   int    `gorm:"not null;default:0" json:"position"`
}

// TableName определяет имя таблицы для GORM
func (Answer) TableName() string {
	return "answers"
}

// BeforeCreate проставляет ID ответа
func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
