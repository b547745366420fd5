package questionnaire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultPoints is awarded for a correct answer when the question sets none.
const DefaultPoints = 1.0

// AnswerKey is the correct answer of a scored question. Authors write it as
// a string, number or boolean, or as a list for multi-select questions.
type AnswerKey []string

func (k *AnswerKey) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*k = nil
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		key := make(AnswerKey, 0, len(items))
		for _, item := range items {
			text, err := keyText(item)
			if err != nil {
				return err
			}
			key = append(key, text)
		}
		*k = key
		return nil
	}

	text, err := keyText(trimmed)
	if err != nil {
		return err
	}
	*k = AnswerKey{text}
	return nil
}

func (k AnswerKey) MarshalJSON() ([]byte, error) {
	if len(k) == 1 {
		return json.Marshal(k[0])
	}
	return json.Marshal([]string(k))
}

func keyText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&n); err == nil {
		return n.String(), nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), nil
	}

	return "", fmt.Errorf("answer key must be a scalar, got %s", raw)
}

// IsScored reports whether the question carries a correct answer.
func (q Question) IsScored() bool {
	return q.Answer != nil
}

// Worth returns the points a correct answer earns.
func (q Question) Worth() float64 {
	if q.Points == nil {
		return DefaultPoints
	}
	return *q.Points
}
