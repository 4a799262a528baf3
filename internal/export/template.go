package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

// headerTexts заголовки колонок B..H строки 8 (раскладка импорта Kahoot)
var headerTexts = []interface{}{
	"Question - max 120 characters",
	"Answer 1 - max 75 characters",
	"Answer 2 - max 75 characters",
	"Answer 3 - max 75 characters",
	"Answer 4 - max 75 characters",
	"Time limit (sec) - 5, 10, 20, 30, 60, 90, 120, or 240 secs",
	"Correct answer(s) - choose at least one",
}

// BuildDefaultTemplate собирает встроенный шаблон: строки описания, заголовки в строке 8,
// данные пишутся начиная со строки 9.
func BuildDefaultTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	intro := []struct {
		cell  string
		value string
	}{
		{"B2", "Quiz template"},
		{"B3", "Add questions, at least two answer alternatives, time limit and choose correct answers (at least one)."},
		{"B4", "Have fun creating your awesome quiz!"},
		{"B6", "Remember: questions have a limit of 120 characters and answers can have 75 characters max."},
	}
	for _, c := range intro {
		if err := f.SetCellValue(sheet, c.cell, c.value); err != nil {
			return nil, fmt.Errorf("write %s: %w", c.cell, err)
		}
	}

	headerCell, err := excelize.CoordinatesToCellName(2, HeaderRow)
	if err != nil {
		return nil, err
	}
	header := headerTexts
	if err := f.SetSheetRow(sheet, headerCell, &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}
	if err := f.SetCellValue(sheet, "A8", "#"); err != nil {
		return nil, fmt.Errorf("write A8: %w", err)
	}

	if err := f.SetColWidth(sheet, "B", "B", 60); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "C", "F", 30); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "G", "H", 20); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write default template: %w", err)
	}
	return buf.Bytes(), nil
}

// TemplateStore отдает байты шаблона. Файл читается один раз целиком;
// если файла нет, используется встроенный шаблон.
type TemplateStore struct {
	path string

	once sync.Once
	data []byte
	err  error
}

// NewTemplateStore создает хранилище шаблона. Пустой path означает встроенный шаблон.
func NewTemplateStore(path string) *TemplateStore {
	return &TemplateStore{path: path}
}

// Bytes возвращает копию байтов шаблона
func (s *TemplateStore) Bytes() ([]byte, error) {
	s.once.Do(func() {
		s.data, s.err = s.load()
	})
	if s.err != nil {
		return nil, &ExportError{Op: "load template", Err: s.err}
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

func (s *TemplateStore) load() ([]byte, error) {
	if s.path != "" {
		data, err := os.ReadFile(s.path)
		if err == nil {
			log.Printf("[Export] Шаблон загружен из %s (%d байт)", s.path, len(data))
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read template %s: %w", s.path, err)
		}
		log.Printf("[Export] Шаблон %s не найден, используется встроенный", s.path)
	}
	return BuildDefaultTemplate()
}
