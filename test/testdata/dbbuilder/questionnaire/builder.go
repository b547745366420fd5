package questionnairebuilder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"NYCU-SDC/questionnaire-backend/internal/questionnaire"
	"NYCU-SDC/questionnaire-backend/test/testdata"
	"NYCU-SDC/questionnaire-backend/test/testdata/dbbuilder"

	"github.com/stretchr/testify/require"
)

// Builder writes questionnaire files into dir and registers them in the database.
type Builder struct {
	t   *testing.T
	db  dbbuilder.DBTX
	dir string
}

func New(t *testing.T, db dbbuilder.DBTX, dir string) *Builder {
	return &Builder{t: t, db: db, dir: filepath.Clean(dir)}
}

func (b Builder) Queries() *questionnaire.Queries {
	return questionnaire.New(b.db)
}

// Create writes the definition file and inserts its record. The stored path
// matches what a directory scan would produce, so a later scan adopts it.
func (b Builder) Create(opts ...Option) (questionnaire.Questionnaire, questionnaire.Definition) {
	p := &FactoryParams{
		ShortID:    testdata.RandomShortID(),
		FileName:   "questionnaire-" + testdata.RandomShortID() + ".json",
		Definition: RandomDefinition(),
	}
	for _, opt := range opts {
		opt(p)
	}

	data, err := json.Marshal(p.Definition)
	require.NoError(b.t, err)

	path := filepath.Join(b.dir, p.FileName)
	require.NoError(b.t, os.WriteFile(path, data, 0o644))

	record, err := b.Queries().Create(context.Background(), questionnaire.CreateParams{
		ShortID:  p.ShortID,
		FilePath: path,
	})
	require.NoError(b.t, err)

	return record, p.Definition
}

// RandomDefinition returns a questionnaire with one question of every type.
func RandomDefinition() questionnaire.Definition {
	return questionnaire.Definition{
		Name: testdata.RandomDescription(),
		Questions: []questionnaire.Question{
			{ID: "name", Text: testdata.RandomDescription(), Type: questionnaire.QuestionTypeText},
			{ID: "age", Text: testdata.RandomDescription(), Type: questionnaire.QuestionTypeNumber},
			{ID: "colour", Text: testdata.RandomDescription(), Type: questionnaire.QuestionTypeSingleSelect, Options: testdata.RandomOptions(3)},
			{ID: "hobbies", Text: testdata.RandomDescription(), Type: questionnaire.QuestionTypeMultiSelect, Options: testdata.RandomOptions(4)},
		},
	}
}
