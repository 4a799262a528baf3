package quizgen

const (
	ModelGPT4o    = "gpt-4o"
	ModelGPT5     = "gpt-5"
	ModelGPT5Mini = "gpt-5-mini"
	ModelGPT52    = "gpt-5.2"
)

// DefaultModels известные идентификаторы моделей
var DefaultModels = []string{ModelGPT4o, ModelGPT5, ModelGPT5Mini, ModelGPT52}

// ModelPolicy решает, какой моделью обслуживать запрос.
// Разрешается один раз при старте сессии и дальше передается явно.
type ModelPolicy struct {
	Allowed []string
	// Economy используется для анонимных вызовов и неизвестных моделей
	Economy string
	// AuthenticatedDefault модель по умолчанию для авторизованных
	AuthenticatedDefault string
}

// DefaultModelPolicy политика по умолчанию
func DefaultModelPolicy() ModelPolicy {
	return ModelPolicy{
		Allowed:              DefaultModels,
		Economy:              ModelGPT5Mini,
		AuthenticatedDefault: ModelGPT5Mini,
	}
}

// Resolve возвращает модель для запроса. Никогда не возвращает ошибку:
// аноним или неизвестная модель молча получают economy.
func (p ModelPolicy) Resolve(requested string, authenticated bool) string {
	economy := p.Economy
	if economy == "" {
		economy = ModelGPT5Mini
	}

	if !authenticated {
		return economy
	}
	if requested == "" {
		if p.AuthenticatedDefault != "" {
			return p.AuthenticatedDefault
		}
		return economy
	}
	if p.IsAllowed(requested) {
		return requested
	}
	return economy
}

// IsAllowed true, если модель в списке разрешенных
func (p ModelPolicy) IsAllowed(model string) bool {
	for _, m := range p.Allowed {
		if m == model {
			return true
		}
	}
	return false
}
