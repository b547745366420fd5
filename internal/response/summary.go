package response

import (
	"slices"

	"NYCU-SDC/questionnaire-backend/internal/ordering"
	"NYCU-SDC/questionnaire-backend/internal/questionnaire"
)

type OptionCount struct {
	Option string `json:"option"`
	Count  int    `json:"count"`
}

// QuestionSummary aggregates the answers to one question. Select questions
// carry option counts; other questions carry the collected values. Scored
// questions also count how many answers matched the key.
type QuestionSummary struct {
	QuestionID string                     `json:"questionId"`
	Text       string                     `json:"text"`
	Type       questionnaire.QuestionType `json:"type"`
	Answered   int                        `json:"answered"`
	Options    []OptionCount              `json:"options,omitempty"`
	Values     []string                   `json:"values,omitempty"`
	Correct    *int                       `json:"correct,omitempty"`
}

type Summary struct {
	QuestionnaireID string            `json:"questionnaireId"`
	Name            string            `json:"name"`
	Total           int               `json:"total"`
	Questions       []QuestionSummary `json:"questions"`
}

// Summarize tallies a response set. Questions that no longer exist in the
// definition but still have answers are listed after the authored ones.
func Summarize(set ResponseSet, def questionnaire.Definition) Summary {
	tallies := make(map[string]*tally, len(def.Questions))
	var seen []string

	get := func(questionID string) *tally {
		t, ok := tallies[questionID]
		if !ok {
			question, _ := def.QuestionByID(questionID)
			if question.ID == "" {
				question.ID = questionID
			}
			t = newTally(question)
			tallies[questionID] = t
			seen = append(seen, questionID)
		}
		return t
	}

	for _, question := range def.Questions {
		get(question.ID)
	}

	for _, response := range set.Responses {
		for _, answer := range response.Answers {
			get(answer.QuestionID).add(answer.Content)
		}
	}

	summaries := make([]QuestionSummary, 0, len(seen))
	for _, questionID := range seen {
		summaries = append(summaries, tallies[questionID].summary())
	}

	return Summary{
		QuestionnaireID: set.QuestionnaireID,
		Name:            set.Name,
		Total:           len(set.Responses),
		Questions: ordering.ByQuestionOrder(def.QuestionIDs(), summaries, func(q QuestionSummary) string {
			return q.QuestionID
		}),
	}
}

type tally struct {
	question questionnaire.Question
	answered int
	counts   map[string]int
	options  []string
	values   []string
	correct  *int
}

func newTally(question questionnaire.Question) *tally {
	t := &tally{question: question}
	if question.Type.HasOptions() {
		t.counts = make(map[string]int, len(question.Options))
		t.options = append(t.options, question.Options...)
	}
	if question.IsScored() {
		t.correct = new(int)
	}
	return t
}

func (t *tally) add(content Content) {
	if t.correct != nil && IsCorrect(t.question, content) {
		*t.correct++
	}

	values := content.Values
	if content.Kind == KindScalar {
		values = []string{content.Value}
	}
	if len(values) == 0 {
		return
	}
	t.answered++

	if t.counts == nil {
		t.values = append(t.values, values...)
		return
	}

	for _, v := range values {
		if _, known := t.counts[v]; !known && !slices.Contains(t.options, v) {
			t.options = append(t.options, v)
		}
		t.counts[v]++
	}
}

func (t *tally) summary() QuestionSummary {
	s := QuestionSummary{
		QuestionID: t.question.ID,
		Text:       t.question.Text,
		Type:       t.question.Type,
		Answered:   t.answered,
		Values:     t.values,
		Correct:    t.correct,
	}
	if t.counts != nil {
		s.Options = make([]OptionCount, len(t.options))
		for i, o := range t.options {
			s.Options[i] = OptionCount{Option: o, Count: t.counts[o]}
		}
	}
	return s
}
