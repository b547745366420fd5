package questionnaire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"NYCU-SDC/questionnaire-backend/internal"
	"NYCU-SDC/questionnaire-backend/internal/file"
	"NYCU-SDC/questionnaire-backend/internal/shortid"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// memoryQuerier keeps questionnaire records in memory, enforcing the same
// uniqueness rules as the database.
type memoryQuerier struct {
	mu      sync.Mutex
	records []Questionnaire
	creates int
}

func (m *memoryQuerier) Create(_ context.Context, arg CreateParams) (Questionnaire, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.ShortID == arg.ShortID || r.FilePath == arg.FilePath {
			return Questionnaire{}, errors.New("duplicate key value violates unique constraint")
		}
	}

	record := Questionnaire{ID: uuid.New(), ShortID: arg.ShortID, FilePath: arg.FilePath}
	m.records = append(m.records, record)
	m.creates++
	return record, nil
}

func (m *memoryQuerier) GetByShortID(_ context.Context, shortID string) (Questionnaire, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.ShortID == shortID {
			return r, nil
		}
	}
	return Questionnaire{}, pgx.ErrNoRows
}

func (m *memoryQuerier) ListRecords(_ context.Context) ([]Questionnaire, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Questionnaire(nil), m.records...), nil
}

func (m *memoryQuerier) DeleteByID(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	for _, r := range m.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

// mockQuerier is used where a call must fail.
type mockQuerier struct {
	mock.Mock
}

func (m *mockQuerier) Create(ctx context.Context, arg CreateParams) (Questionnaire, error) {
	args := m.Called(ctx, arg)
	row, _ := args.Get(0).(Questionnaire)
	return row, args.Error(1)
}

func (m *mockQuerier) GetByShortID(ctx context.Context, shortID string) (Questionnaire, error) {
	args := m.Called(ctx, shortID)
	row, _ := args.Get(0).(Questionnaire)
	return row, args.Error(1)
}

func (m *mockQuerier) ListRecords(ctx context.Context) ([]Questionnaire, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]Questionnaire)
	return rows, args.Error(1)
}

func (m *mockQuerier) DeleteByID(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestService(t *testing.T, queries Querier) (*Service, string) {
	t.Helper()

	dir := t.TempDir()
	logger := zap.NewNop()
	tracer := noop.NewTracerProvider().Tracer("test")

	return NewServiceForTesting(logger, tracer, queries, file.NewStore(logger, dir), shortid.NewGenerator(), dir), dir
}

func idsOf(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestService_List_IsIdempotent(t *testing.T) {
	queries := &memoryQuerier{}
	service, dir := newTestService(t, queries)
	writeFile(t, filepath.Join(dir, "one.json"), `{"name":"One","questions":[{"id":"q1","type":"text"}]}`)
	writeFile(t, filepath.Join(dir, "sub", "two.json"), `{"name":"Two","questions":[]}`)

	first, err := service.List(context.Background())
	require.NoError(t, err)
	second, err := service.List(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Equal(t, first, second)
	require.Equal(t, 2, queries.creates, "a second scan must not register files again")
}

func TestService_List_StableIDsAcrossUnrelatedAdditions(t *testing.T) {
	queries := &memoryQuerier{}
	service, dir := newTestService(t, queries)
	writeFile(t, filepath.Join(dir, "one.json"), `{"name":"One","questions":[]}`)

	first, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	writeFile(t, filepath.Join(dir, "elsewhere", "two.json"), `{"name":"Two","questions":[]}`)

	second, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Contains(t, idsOf(second), first[0].ID)
}

func TestService_List_SkipsMalformedFiles(t *testing.T) {
	queries := &memoryQuerier{}
	service, dir := newTestService(t, queries)
	writeFile(t, filepath.Join(dir, "good.json"), `{"name":"Good","questions":[]}`)
	writeFile(t, filepath.Join(dir, "bad.json"), `{"name": nope}`)
	writeFile(t, filepath.Join(dir, "notes.txt"), `plain text`)

	entries, err := service.List(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Good", entries[0].Name)
}

func TestService_List_PrunesRecordsWithoutFiles(t *testing.T) {
	queries := &memoryQuerier{}
	service, dir := newTestService(t, queries)
	stale := Questionnaire{ID: uuid.New(), ShortID: "stale1", FilePath: filepath.Join(dir, "gone.json")}
	queries.records = append(queries.records, stale)
	service.Cache().Reset(entry("stale1", "Gone"))
	writeFile(t, filepath.Join(dir, "kept.json"), `{"name":"Kept","questions":[]}`)

	entries, err := service.List(context.Background())
	require.NoError(t, err)

	require.NotContains(t, idsOf(entries), "stale1")
	_, err = service.Get(context.Background(), "stale1")
	require.ErrorIs(t, err, internal.ErrQuestionnaireNotFound)
}

func TestService_List_ReflectsLiveEdits(t *testing.T) {
	queries := &memoryQuerier{}
	service, dir := newTestService(t, queries)
	path := filepath.Join(dir, "survey.json")
	writeFile(t, path, `{"name":"Draft","questions":[]}`)

	first, err := service.List(context.Background())
	require.NoError(t, err)

	writeFile(t, path, `{"name":"Final version","questions":[{"id":"q1","type":"text"}]}`)

	second, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, "Final version", second[0].Name)
	require.Len(t, second[0].Questions, 1)
}

func TestService_List_DatabaseErrorFailsTheScan(t *testing.T) {
	queries := new(mockQuerier)
	service, dir := newTestService(t, queries)
	writeFile(t, filepath.Join(dir, "one.json"), `{"name":"One","questions":[]}`)

	dbErr := errors.New("connection reset")
	queries.On("ListRecords", mock.Anything).Return([]Questionnaire{}, nil).Once()
	queries.On("Create", mock.Anything, mock.Anything).Return(Questionnaire{}, dbErr).Once()

	_, err := service.List(context.Background())

	require.Error(t, err)
	queries.AssertExpectations(t)
}

func TestService_Get(t *testing.T) {
	queries := &memoryQuerier{}
	service, dir := newTestService(t, queries)
	writeFile(t, filepath.Join(dir, "full.json"), `{"name":"Full","questions":[{"id":"q1","type":"number"}]}`)
	writeFile(t, filepath.Join(dir, "empty.json"), `{"name":"Empty","questions":[]}`)

	entries, err := service.List(context.Background())
	require.NoError(t, err)

	byName := make(map[string]string)
	for _, e := range entries {
		byName[e.Name] = e.ID
	}

	tests := []struct {
		name      string
		id        string
		expectErr error
		validate  func(t *testing.T, e Entry)
	}{
		{
			name:      "Should report a missing questionnaire",
			id:        "missing",
			expectErr: internal.ErrQuestionnaireNotFound,
		},
		{
			name: "Should return an empty question list for a questionnaire without questions",
			id:   byName["Empty"],
			validate: func(t *testing.T, e Entry) {
				require.Equal(t, "Empty", e.Name)
				require.NotNil(t, e.Questions)
				require.Empty(t, e.Questions)
			},
		},
		{
			name: "Should return the full content",
			id:   byName["Full"],
			validate: func(t *testing.T, e Entry) {
				require.Equal(t, byName["Full"], e.ID)
				require.Equal(t, []string{"q1"}, e.QuestionIDs())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := service.Get(context.Background(), tt.id)
			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			tt.validate(t, e)
		})
	}
}

func TestService_Delete(t *testing.T) {
	queries := &memoryQuerier{}
	service, dir := newTestService(t, queries)
	path := filepath.Join(dir, "doomed.json")
	writeFile(t, path, `{"name":"Doomed","questions":[]}`)

	entries, err := service.List(context.Background())
	require.NoError(t, err)
	id := entries[0].ID

	require.NoError(t, service.Delete(context.Background(), id))

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	require.Empty(t, service.Cache().Snapshot())
	_, err = service.Get(context.Background(), id)
	require.ErrorIs(t, err, internal.ErrQuestionnaireNotFound)

	require.NoError(t, service.Delete(context.Background(), id), "deleting twice is a no-op")
}

func TestService_Get_MalformedFileIsUnavailable(t *testing.T) {
	queries := &memoryQuerier{}
	service, dir := newTestService(t, queries)
	path := filepath.Join(dir, "survey.json")
	writeFile(t, path, `{"name":"Survey","questions":[]}`)

	entries, err := service.List(context.Background())
	require.NoError(t, err)
	id := entries[0].ID

	writeFile(t, path, `{"name":`)

	_, err = service.Get(context.Background(), id)
	require.ErrorIs(t, err, internal.ErrQuestionnaireUnavailable)
	require.NotErrorIs(t, err, internal.ErrMalformedDefinition, "upload wording must not reach respondents")
}

// pausingReader blocks after its nth read until released.
type pausingReader struct {
	inner   DefinitionReader
	pauseOn int
	calls   int
	paused  chan struct{}
	release chan struct{}
}

func (p *pausingReader) Read(path string) (*Definition, error) {
	def, err := p.inner.Read(path)
	p.calls++
	if p.calls == p.pauseOn {
		close(p.paused)
		<-p.release
	}
	return def, err
}

func TestService_Delete_DuringScan(t *testing.T) {
	queries := &memoryQuerier{}
	service, dir := newTestService(t, queries)
	writeFile(t, filepath.Join(dir, "doomed.json"), `{"name":"Doomed","questions":[]}`)

	entries, err := service.List(context.Background())
	require.NoError(t, err)
	id := entries[0].ID

	// The first read prunes, the second reconciles into the cache.
	reader := &pausingReader{inner: service.reader, pauseOn: 2, paused: make(chan struct{}), release: make(chan struct{})}
	service.reader = reader

	scanDone := make(chan error, 1)
	go func() {
		_, err := service.List(context.Background())
		scanDone <- err
	}()
	<-reader.paused

	deleteDone := make(chan error, 1)
	go func() {
		deleteDone <- service.Delete(context.Background(), id)
	}()

	select {
	case <-deleteDone:
		t.Fatal("delete finished while a scan was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(reader.release)
	require.NoError(t, <-scanDone)
	require.NoError(t, <-deleteDone)

	require.Empty(t, service.Cache().Snapshot())
	_, err = service.Get(context.Background(), id)
	require.ErrorIs(t, err, internal.ErrQuestionnaireNotFound)
}

func TestService_Upload(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		body        string
		expectErr   error
	}{
		{
			name:        "Should store a valid definition",
			filename:    "survey.json",
			contentType: "application/json",
			body:        `{"name":"Uploaded","questions":[]}`,
		},
		{
			name:        "Should reject other content types",
			filename:    "survey.csv",
			contentType: "text/csv",
			body:        `a,b`,
			expectErr:   internal.ErrInvalidFileType,
		},
		{
			name:        "Should reject invalid JSON",
			filename:    "survey.json",
			contentType: "application/json",
			body:        `{"name":`,
			expectErr:   internal.ErrInvalidFileType,
		},
		{
			name:        "Should reject JSON that is not a definition",
			filename:    "survey.json",
			contentType: "application/json",
			body:        `[1, 2, 3]`,
			expectErr:   internal.ErrMalformedDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queries := &memoryQuerier{}
			service, dir := newTestService(t, queries)

			result, err := service.Upload(context.Background(), tt.filename, tt.contentType, strings.NewReader(tt.body))

			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.filename, result.Name)

			entries, err := service.List(context.Background())
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, "Uploaded", entries[0].Name)

			files, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, files, 1)
			require.True(t, strings.HasPrefix(files[0].Name(), "survey-"))
		})
	}
}

func TestService_Upload_TooLarge(t *testing.T) {
	queries := &memoryQuerier{}
	service, _ := newTestService(t, queries)
	service.maxUpload = 16

	_, err := service.Upload(context.Background(), "big.json", "application/json", strings.NewReader(`{"name":"far too long for the limit","questions":[]}`))

	require.ErrorIs(t, err, internal.ErrFileTooLarge)
}
