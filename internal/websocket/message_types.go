package websocket

// Типы событий потока генерации
const (
	// GENERATION_STARTED генерация началась, прогресс 0
	GENERATION_STARTED = "GENERATION_STARTED"

	// QUESTION_GENERATED очередной вопрос сгенерирован
	QUESTION_GENERATED = "QUESTION_GENERATED"

	// QUESTION_FAILED попытка не удалась и пропущена, генерация продолжается
	QUESTION_FAILED = "QUESTION_FAILED"

	// GENERATION_COMPLETED генерация завершена, в данных id черновика
	GENERATION_COMPLETED = "GENERATION_COMPLETED"

	// GENERATION_ERROR генерация не может быть запущена или сохранена
	GENERATION_ERROR = "GENERATION_ERROR"
)

// Event сообщение, отправляемое клиенту
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
