package quizgen

import (
	"fmt"
	"strings"
)

const fallbackAudience = "a general audience"

// audiencePhrase переводит уровень сложности в описание аудитории для промпта
func audiencePhrase(d DifficultyLevel) string {
	switch d {
	case DifficultyHighSchool:
		return "high school students"
	case DifficultyCollege:
		return "college students"
	case DifficultyPostGrad:
		return "post-graduate students or experts in the field"
	default:
		return fallbackAudience
	}
}

// buildQuestionPrompt собирает инструкцию для генерации одного вопроса
func buildQuestionPrompt(topic string, previousQuestions []string, difficulty DifficultyLevel) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate 1 multiple choice quiz question about %q for %s.\n", topic, audiencePhrase(difficulty))
	fmt.Fprintf(&b, "The question must be at most %d characters long.\n", MaxQuestionChars)
	fmt.Fprintf(&b, "Provide exactly %d answers, each at most %d characters long, and mark exactly 1 of them as correct.\n",
		MaxAnswers, MaxAnswerChars)

	if len(previousQuestions) > 0 {
		b.WriteString("Do not repeat or closely paraphrase any of these previously generated questions:\n")
		for _, q := range previousQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	return b.String()
}

// buildTitlePrompt промпт для короткого названия квиза
func buildTitlePrompt(topic string, samples []string) string {
	sampleContext := ""
	if len(samples) > 0 {
		if len(samples) > maxTitleSamples {
			samples = samples[:maxTitleSamples]
		}
		sampleContext = " Some sample questions: " + strings.Join(samples, "; ")
	}
	return fmt.Sprintf("Generate a short, catchy title (max %d characters) for a quiz about %q.%s Return only the title, nothing else.",
		MaxTitleChars, topic, sampleContext)
}
