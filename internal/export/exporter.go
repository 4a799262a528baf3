package export

import "github.com/leetosc/quiz-aide/internal/service/quizgen"

// File готовый файл экспорта
type File struct {
	Name string
	Data []byte
	// LimitWarning хотя бы один вопрос превышает лимиты Kahoot; файл все равно записан
	LimitWarning bool
}

// Exporter экспорт набора вопросов в шаблон
type Exporter struct {
	templates *TemplateStore
}

// NewExporter создает экспортер
func NewExporter(templates *TemplateStore) *Exporter {
	return &Exporter{templates: templates}
}

// Export загружает шаблон целиком, затем пишет вопросы. nameOrTopic идет в имя файла.
func (e *Exporter) Export(questions []quizgen.Question, timeLimitSeconds int, nameOrTopic string) (*File, error) {
	tmpl, err := e.templates.Bytes()
	if err != nil {
		return nil, err
	}

	data, err := ExportToTemplate(questions, timeLimitSeconds, tmpl)
	if err != nil {
		return nil, err
	}

	return &File{
		Name:         FileName(nameOrTopic, len(questions)),
		Data:         data,
		LimitWarning: quizgen.AnyExceedsLimit(questions),
	}, nil
}
