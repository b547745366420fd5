package ordering

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	QuestionID string
	Content    string
}

func questionID(r record) string {
	return r.QuestionID
}

func TestByQuestionOrder(t *testing.T) {
	tests := []struct {
		name     string
		order    []string
		items    []record
		expected []string
	}{
		{
			name:     "Should follow authored order instead of alphabetical order",
			order:    []string{"q3", "q1", "q2"},
			items:    []record{{QuestionID: "q1"}, {QuestionID: "q2"}, {QuestionID: "q3"}},
			expected: []string{"q3", "q1", "q2"},
		},
		{
			name:     "Should follow authored order regardless of insertion order",
			order:    []string{"q3", "q1", "q2"},
			items:    []record{{QuestionID: "q2"}, {QuestionID: "q3"}, {QuestionID: "q1"}},
			expected: []string{"q3", "q1", "q2"},
		},
		{
			name:     "Should put unknown questions last in their original order",
			order:    []string{"a", "b"},
			items:    []record{{QuestionID: "z"}, {QuestionID: "b"}, {QuestionID: "y"}, {QuestionID: "a"}},
			expected: []string{"a", "b", "z", "y"},
		},
		{
			name:     "Should return an empty slice for no items",
			order:    []string{"a"},
			items:    []record{},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ByQuestionOrder(tt.order, tt.items, questionID)

			ids := make([]string, len(result))
			for i, r := range result {
				ids[i] = r.QuestionID
			}
			require.Equal(t, tt.expected, ids)
		})
	}
}

func TestByQuestionOrder_DoesNotMutateInput(t *testing.T) {
	items := []record{{QuestionID: "b", Content: "2"}, {QuestionID: "a", Content: "1"}}

	result := ByQuestionOrder([]string{"a", "b"}, items, questionID)

	require.Equal(t, "b", items[0].QuestionID)
	require.Equal(t, "a", result[0].QuestionID)
	require.Equal(t, "1", result[0].Content)
}

func TestIndex_FirstPositionWins(t *testing.T) {
	index := Index([]string{"a", "b", "a"})

	require.Equal(t, map[string]int{"a": 0, "b": 1}, index)
}
