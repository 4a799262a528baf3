package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/leetosc/quiz-aide/internal/service/quizgen"
)

const (
	// OriginCell первая ячейка данных: колонка B, строка 9. Строки выше не трогаются.
	OriginCell = "B9"
	// OriginRow строка первого вопроса
	OriginRow = 9
	// HeaderRow строка заголовков шаблона
	HeaderRow = 8

	// ContentType MIME для xlsx
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	fileNameChars = 30
)

// ExportError шаблон не загрузился/не разобрался или файл не удалось записать.
// Частичный файл в этом случае не возвращается.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Op, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ExportToTemplate заполняет первый лист шаблона вопросами начиная с B9, одна строка на вопрос:
// B текст вопроса, C..F ответы 1..4 ("" если ответа нет), G лимит времени (число),
// H 1-based позиции правильных ответов через запятую. Лимиты длины не проверяются.
func ExportToTemplate(questions []quizgen.Question, timeLimitSeconds int, templateBytes []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(templateBytes))
	if err != nil {
		return nil, &ExportError{Op: "open template", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ExportError{Op: "open template", Err: fmt.Errorf("template has no sheets")}
	}
	sheet := sheets[0]

	for i, q := range questions {
		cell, err := excelize.CoordinatesToCellName(2, OriginRow+i)
		if err != nil {
			return nil, &ExportError{Op: "resolve cell", Err: err}
		}
		row := rowValues(q, timeLimitSeconds)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, &ExportError{Op: fmt.Sprintf("write row %d", OriginRow+i), Err: err}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, &ExportError{Op: "write workbook", Err: err}
	}
	return buf.Bytes(), nil
}

// rowValues значения колонок B..H для одного вопроса
func rowValues(q quizgen.Question, timeLimitSeconds int) []interface{} {
	answerText := func(i int) string {
		if i < len(q.Answers) {
			return q.Answers[i].Text
		}
		return ""
	}

	positions := q.CorrectPositions()
	correct := make([]string, len(positions))
	for i, p := range positions {
		correct[i] = strconv.Itoa(p)
	}

	return []interface{}{
		q.QuestionText,
		answerText(0),
		answerText(1),
		answerText(2),
		answerText(3),
		timeLimitSeconds,
		strings.Join(correct, ","),
	}
}

// FileName имя файла: первые 30 символов названия (или темы) и количество вопросов
func FileName(nameOrTopic string, count int) string {
	name := strings.TrimSpace(nameOrTopic)
	if r := []rune(name); len(r) > fileNameChars {
		name = string(r[:fileNameChars])
	}
	if name == "" {
		name = "quiz"
	}
	return fmt.Sprintf("%s_%d-questions.xlsx", name, count)
}
