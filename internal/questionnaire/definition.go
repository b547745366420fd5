package questionnaire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"NYCU-SDC/questionnaire-backend/internal"
)

type QuestionType string

const (
	QuestionTypeText         QuestionType = "text"
	QuestionTypeNumber       QuestionType = "number"
	QuestionTypeSingleSelect QuestionType = "single-select"
	QuestionTypeMultiSelect  QuestionType = "multi-select"
)

// IsMulti reports whether answers to this type hold several values.
func (t QuestionType) IsMulti() bool {
	return t == QuestionTypeMultiSelect
}

// HasOptions reports whether answers must be picked from the question's options.
func (t QuestionType) HasOptions() bool {
	return t == QuestionTypeSingleSelect || t == QuestionTypeMultiSelect
}

type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Answer   AnswerKey    `json:"answer,omitempty"`
	Points   *float64     `json:"points,omitempty"`
	Required bool         `json:"required,omitempty"`
}

// Definition is the content of a questionnaire file as authored.
type Definition struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Entry is a questionnaire as exposed to callers: the definition read from
// disk merged with its public ID. The file path never leaves this package.
type Entry struct {
	ID string `json:"id"`
	Definition
}

// ParseDefinition decodes raw file content. A definition without a
// questions list gets an empty one so callers can tell "no questions"
// apart from "no questionnaire".
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition

	if err := json.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", internal.ErrMalformedDefinition, err)
	}

	if def.Questions == nil {
		def.Questions = []Question{}
	}

	return def, nil
}

// QuestionIDs returns the question IDs in authored order.
func (d Definition) QuestionIDs() []string {
	ids := make([]string, len(d.Questions))
	for i, q := range d.Questions {
		ids[i] = q.ID
	}
	return ids
}

// QuestionByID looks up a question by its author-chosen ID.
func (d Definition) QuestionByID(id string) (Question, bool) {
	for _, q := range d.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AllowsOption reports whether value is an acceptable choice. A select
// question authored without options accepts any value.
func (q Question) AllowsOption(value string) bool {
	if !q.Type.HasOptions() || len(q.Options) == 0 {
		return true
	}
	return slices.Contains(q.Options, value)
}

// HasQuestions reports whether at least one question was authored.
func (d Definition) HasQuestions() bool {
	return len(d.Questions) > 0
}

// Equal compares two entries field by field, including every question.
func (e Entry) Equal(other Entry) bool {
	return reflect.DeepEqual(e, other)
}
