package quizgen

import "math/rand/v2"

// ShuffleAnswers возвращает новую перестановку ответов (Фишер–Йетс).
// Исходный срез не изменяется, флаги IsCorrect переезжают вместе с ответом.
func ShuffleAnswers(answers []Answer) []Answer {
	return shuffleWith(answers, rand.IntN)
}

// shuffleWith Фишер–Йетс с внешним источником случайности: intn(n) -> [0, n)
func shuffleWith(answers []Answer, intn func(int) int) []Answer {
	out := make([]Answer, len(answers))
	copy(out, answers)
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
