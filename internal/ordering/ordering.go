// Package ordering puts question-keyed records back into the order in which
// the questions were authored.
package ordering

import "slices"

// ByQuestionOrder returns a new slice holding items sorted by the position of
// their question ID in order. Items whose ID is not part of order go last and
// keep their relative order. The input slice is left untouched.
func ByQuestionOrder[T any](order []string, items []T, key func(T) string) []T {
	position := Index(order)

	type tagged struct {
		pos  int
		item T
	}

	sortable := make([]tagged, len(items))
	for i, item := range items {
		pos, ok := position[key(item)]
		if !ok {
			pos = len(order)
		}
		sortable[i] = tagged{pos: pos, item: item}
	}

	slices.SortStableFunc(sortable, func(a, b tagged) int {
		return a.pos - b.pos
	})

	result := make([]T, len(sortable))
	for i, s := range sortable {
		result[i] = s.item
	}

	return result
}

// Index maps each question ID to its position in order. When an ID repeats,
// the first position wins.
func Index(order []string) map[string]int {
	position := make(map[string]int, len(order))
	for i, id := range order {
		if _, exists := position[id]; !exists {
			position[id] = i
		}
	}
	return position
}
