package response

import (
	"context"
	"testing"

	"NYCU-SDC/questionnaire-backend/internal/questionnaire"

	"github.com/stretchr/testify/require"
)

func quizDefinition() questionnaire.Definition {
	three := 3.0
	return questionnaire.Definition{
		Name: "Quiz",
		Questions: []questionnaire.Question{
			{ID: "name", Text: "Your name?", Type: questionnaire.QuestionTypeText},
			{ID: "capital", Text: "Capital of France?", Type: questionnaire.QuestionTypeSingleSelect, Options: []string{"Paris", "Lyon"}, Answer: questionnaire.AnswerKey{"Paris"}},
			{ID: "primes", Text: "Pick the primes", Type: questionnaire.QuestionTypeMultiSelect, Options: []string{"2", "3", "4"}, Answer: questionnaire.AnswerKey{"2", "3"}, Points: &three},
			{ID: "sum", Text: "1 + 1?", Type: questionnaire.QuestionTypeNumber, Answer: questionnaire.AnswerKey{"2"}},
		},
	}
}

func TestIsCorrect(t *testing.T) {
	def := quizDefinition()
	question := func(id string) questionnaire.Question {
		q, ok := def.QuestionByID(id)
		require.True(t, ok)
		return q
	}

	tests := []struct {
		name     string
		question questionnaire.Question
		content  Content
		expected bool
	}{
		{name: "Should match the keyed option", question: question("capital"), content: Scalar("Paris"), expected: true},
		{name: "Should compare text exactly", question: question("capital"), content: Scalar("paris")},
		{name: "Should match selections in any order", question: question("primes"), content: Multi("3", "2"), expected: true},
		{name: "Should reject a partial selection", question: question("primes"), content: Multi("2")},
		{name: "Should reject an extra selection", question: question("primes"), content: Multi("2", "3", "4")},
		{name: "Should reject an empty selection", question: question("primes"), content: Multi()},
		{name: "Should compare numbers by value", question: question("sum"), content: Scalar("2.0"), expected: true},
		{name: "Should reject a wrong number", question: question("sum"), content: Scalar("3")},
		{name: "Should never mark unscored questions", question: question("name"), content: Scalar("Ada")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, IsCorrect(tt.question, tt.content))
		})
	}
}

func TestScoreOf(t *testing.T) {
	tests := []struct {
		name     string
		def      questionnaire.Definition
		answers  []Answer
		expected *Score
	}{
		{
			name:    "Should return nothing without scored questions",
			def:     lunchDefinition(),
			answers: []Answer{{QuestionID: "name", Content: Scalar("Ada")}},
		},
		{
			name: "Should award the question's points or one by default",
			def:  quizDefinition(),
			answers: []Answer{
				{QuestionID: "capital", Content: Scalar("Paris")},
				{QuestionID: "primes", Content: Multi("2", "3")},
				{QuestionID: "sum", Content: Scalar("5")},
			},
			expected: &Score{Earned: 4, Possible: 5},
		},
		{
			name:     "Should count unanswered questions as possible only",
			def:      quizDefinition(),
			answers:  []Answer{{QuestionID: "sum", Content: Scalar("2")}},
			expected: &Score{Earned: 1, Possible: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ScoreOf(tt.def, tt.answers))
		})
	}
}

func TestService_ScoresResponses(t *testing.T) {
	db := newMemoryDB()
	service := newTestService(t, db, map[string]questionnaire.Definition{"quiz": quizDefinition()})

	created, err := service.Add(context.Background(), "quiz", answersOf(t, `{"capital": "Paris", "primes": ["3", "2"], "sum": 2}`))
	require.NoError(t, err)
	require.Equal(t, &Score{Earned: 5, Possible: 5}, created.Score)

	_, err = service.Add(context.Background(), "quiz", answersOf(t, `{"capital": "Lyon", "primes": ["2"]}`))
	require.NoError(t, err)

	set, err := service.Select(context.Background(), "quiz")
	require.NoError(t, err)
	require.Equal(t, &Score{Earned: 5, Possible: 5}, set.Responses[0].Score)
	require.Equal(t, &Score{Earned: 0, Possible: 5}, set.Responses[1].Score)

	summary, err := service.Summarize(context.Background(), "quiz")
	require.NoError(t, err)

	correct := make(map[string]*int, len(summary.Questions))
	for _, q := range summary.Questions {
		correct[q.QuestionID] = q.Correct
	}
	require.Nil(t, correct["name"])
	require.Equal(t, 1, *correct["capital"])
	require.Equal(t, 1, *correct["primes"])
	require.Equal(t, 1, *correct["sum"])
}
