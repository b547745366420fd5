package response

import (
	"slices"
	"strconv"
	"strings"

	"NYCU-SDC/questionnaire-backend/internal/questionnaire"
)

// Score is the result of marking one response against the answer keys of
// its questionnaire.
type Score struct {
	Earned   float64 `json:"earned"`
	Possible float64 `json:"possible"`
}

// ScoreOf marks answers against every scored question of def. Unanswered
// scored questions count towards Possible only. It returns nil when def has
// no scored questions.
func ScoreOf(def questionnaire.Definition, answers []Answer) *Score {
	var score *Score
	for _, question := range def.Questions {
		if !question.IsScored() {
			continue
		}
		if score == nil {
			score = &Score{}
		}
		score.Possible += question.Worth()

		for _, answer := range answers {
			if answer.QuestionID == question.ID && IsCorrect(question, answer.Content) {
				score.Earned += question.Worth()
				break
			}
		}
	}
	return score
}

// IsCorrect compares content with the question's answer key. Multi-select
// answers must select exactly the keyed values, in any order. Numeric
// answers compare by value, everything else by exact text.
func IsCorrect(question questionnaire.Question, content Content) bool {
	if !question.IsScored() {
		return false
	}

	if question.Type.IsMulti() || content.Kind == KindMulti {
		values := content.Values
		if content.Kind == KindScalar {
			values = []string{content.Value}
		}
		return sameValues(values, question.Answer)
	}

	if len(question.Answer) != 1 {
		return false
	}
	want := question.Answer[0]

	if question.Type == questionnaire.QuestionTypeNumber {
		got, errGot := strconv.ParseFloat(strings.TrimSpace(content.Value), 64)
		expected, errWant := strconv.ParseFloat(strings.TrimSpace(want), 64)
		if errGot == nil && errWant == nil {
			return got == expected
		}
	}

	return content.Value == want
}

func sameValues(got, want []string) bool {
	a := slices.Compact(slices.Sorted(slices.Values(got)))
	b := slices.Compact(slices.Sorted(slices.Values(want)))
	return slices.Equal(a, b)
}
