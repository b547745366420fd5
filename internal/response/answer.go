package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"

	"NYCU-SDC/questionnaire-backend/internal"
	"NYCU-SDC/questionnaire-backend/internal/ordering"
	"NYCU-SDC/questionnaire-backend/internal/questionnaire"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/microcosm-cc/bluemonday"
)

// MultiSeparator joins multi-select values into a single export cell.
const MultiSeparator = "; "

type Kind int

const (
	KindScalar Kind = iota
	KindMulti
)

// Content is the value of one answer: a single scalar, or the ordered
// selections of a multi-select question.
type Content struct {
	Kind   Kind
	Value  string
	Values []string
}

func Scalar(value string) Content {
	return Content{Kind: KindScalar, Value: value}
}

func Multi(values ...string) Content {
	if values == nil {
		values = []string{}
	}
	return Content{Kind: KindMulti, Values: values}
}

// String renders the content as a single cell.
func (c Content) String() string {
	if c.Kind == KindMulti {
		return strings.Join(c.Values, MultiSeparator)
	}
	return c.Value
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Kind == KindMulti {
		values := c.Values
		if values == nil {
			values = []string{}
		}
		return json.Marshal(values)
	}
	return json.Marshal(c.Value)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*c = Multi(values...)
		return nil
	}

	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*c = Scalar(value)
	return nil
}

type Answer struct {
	QuestionID string  `json:"questionId"`
	Content    Content `json:"content"`
}

// Decoder turns submitted raw answers into typed content, checking each one
// against the question it answers.
type Decoder struct {
	policy *bluemonday.Policy
}

func NewDecoder() *Decoder {
	return &Decoder{policy: bluemonday.StrictPolicy()}
}

// Decode resolves every submitted answer by the declared type of its
// question. Null answers are dropped; the result follows question order.
func (d *Decoder) Decode(def questionnaire.Definition, raw map[string]json.RawMessage) ([]Answer, error) {
	answers := make([]Answer, 0, len(raw))
	for questionID, value := range raw {
		question, ok := def.QuestionByID(questionID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", internal.ErrQuestionNotFound, questionID)
		}

		content, present, err := d.decodeOne(question, value)
		if err != nil {
			return nil, fmt.Errorf("%w: question %s: %v", internal.ErrQuestionTypeMismatch, questionID, err)
		}
		if !present {
			continue
		}

		answers = append(answers, Answer{QuestionID: questionID, Content: content})
	}

	if len(answers) == 0 {
		return nil, internal.ErrResponseNoAnswers
	}

	return sortAnswers(def, answers), nil
}

func (d *Decoder) decodeOne(question questionnaire.Question, raw json.RawMessage) (Content, bool, error) {
	raw = bytes.TrimSpace(raw)
	isNull := len(raw) == 0 || bytes.Equal(raw, []byte("null"))

	if question.Type.IsMulti() {
		if isNull {
			return Multi(), true, nil
		}

		var values []string
		if raw[0] == '[' {
			if err := json.Unmarshal(raw, &values); err != nil {
				return Content{}, false, err
			}
		} else {
			value, err := scalarText(raw)
			if err != nil {
				return Content{}, false, err
			}
			values = []string{value}
		}

		for _, v := range values {
			if !question.AllowsOption(v) {
				return Content{}, false, fmt.Errorf("%q is not an option", v)
			}
		}
		return Multi(values...), true, nil
	}

	if isNull {
		return Content{}, false, nil
	}

	value, err := scalarText(raw)
	if err != nil {
		return Content{}, false, err
	}

	switch question.Type {
	case questionnaire.QuestionTypeNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return Content{}, false, fmt.Errorf("%q is not a number", value)
		}
		value = strings.TrimSpace(value)
	case questionnaire.QuestionTypeSingleSelect:
		if !question.AllowsOption(value) {
			return Content{}, false, fmt.Errorf("%q is not an option", value)
		}
	default:
		value = html.UnescapeString(d.policy.Sanitize(value))
	}

	return Scalar(value), true, nil
}

// scalarText accepts a JSON string, number or boolean and returns its text.
func scalarText(raw json.RawMessage) (string, error) {
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

	return "", fmt.Errorf("expected a scalar, got %s", raw)
}

// rowsOf expands an answer into the stored one-value-per-row form. An empty
// multi-select is kept as a single null row so it reads back as answered.
func rowsOf(a Answer) []pgtype.Text {
	if a.Content.Kind != KindMulti {
		return []pgtype.Text{{String: a.Content.Value, Valid: true}}
	}
	if len(a.Content.Values) == 0 {
		return []pgtype.Text{{}}
	}
	out := make([]pgtype.Text, len(a.Content.Values))
	for i, v := range a.Content.Values {
		out[i] = pgtype.Text{String: v, Valid: true}
	}
	return out
}

// rebuild folds the stored rows of one response back into one answer per
// question. Rows must be in insertion order.
func rebuild(def questionnaire.Definition, stored []AnswerRow) []Answer {
	var order []string
	grouped := make(map[string][]pgtype.Text)
	for _, row := range stored {
		if _, ok := grouped[row.QuestionID]; !ok {
			order = append(order, row.QuestionID)
		}
		grouped[row.QuestionID] = append(grouped[row.QuestionID], row.Content)
	}

	answers := make([]Answer, 0, len(order))
	for _, questionID := range order {
		values := grouped[questionID]
		question, known := def.QuestionByID(questionID)

		if known && question.Type.IsMulti() || len(values) > 1 {
			answers = append(answers, Answer{QuestionID: questionID, Content: Multi(validValues(values)...)})
			continue
		}
		if !values[0].Valid {
			continue
		}
		answers = append(answers, Answer{QuestionID: questionID, Content: Scalar(values[0].String)})
	}

	for _, question := range def.Questions {
		if !question.Type.IsMulti() {
			continue
		}
		if _, answered := grouped[question.ID]; answered {
			continue
		}
		answers = append(answers, Answer{QuestionID: question.ID, Content: Multi()})
	}

	return sortAnswers(def, answers)
}

func validValues(values []pgtype.Text) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v.Valid {
			out = append(out, v.String)
		}
	}
	return out
}

func sortAnswers(def questionnaire.Definition, answers []Answer) []Answer {
	// Map iteration order is random; give unknown IDs a stable tail first.
	slices.SortStableFunc(answers, func(a, b Answer) int {
		return strings.Compare(a.QuestionID, b.QuestionID)
	})
	return ordering.ByQuestionOrder(def.QuestionIDs(), answers, func(a Answer) string {
		return a.QuestionID
	})
}
