package app

import "timed-quiz-service/internal/domain"

// hintPenalty is the flat deduction per question where a hint was used.
const hintPenalty = 0.5

// Summarize scores a session: exact-match correct count, hint penalty,
// adjusted score floored at zero, per-category percentages and the overall
// percentage. It is a pure function of the session; calling it twice on the
// same session yields identical results.
func Summarize(session *domain.QuizSession) domain.Summary {
	raw := 0
	categories := make(map[string]domain.CategoryResult)

	for i := 0; i < session.NumQuestions; i++ {
		q := session.Questions[i]
		correct := session.Answers[i] != nil && *session.Answers[i] == q.Correct
		if correct {
			raw++
		}

		result := categories[q.Category]
		result.Total++
		if correct {
			result.Correct++
		}
		categories[q.Category] = result
	}

	for category, result := range categories {
		result.Percentage = 100 * float64(result.Correct) / float64(result.Total)
		categories[category] = result
	}

	penalty := 0.0
	for _, used := range session.HintsUsed {
		if used {
			penalty += hintPenalty
		}
	}

	score := float64(raw) - penalty
	if score < 0 {
		score = 0
	}

	return domain.Summary{
		RawCorrect: raw,
		Penalty:    penalty,
		Score:      score,
		Total:      session.NumQuestions,
		Percentage: 100 * score / float64(session.NumQuestions),
		Categories: categories,
	}
}

// runningScore recomputes the in-progress score from the answer arrays, so
// resubmitting a question never double-counts.
func runningScore(session *domain.QuizSession) float64 {
	score := 0.0
	for i := 0; i < session.NumQuestions; i++ {
		if session.Answers[i] != nil && *session.Answers[i] == session.Questions[i].Correct {
			score++
		}
	}
	return score
}
