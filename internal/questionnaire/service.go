package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"NYCU-SDC/questionnaire-backend/internal"
	"NYCU-SDC/questionnaire-backend/internal/file"
	"NYCU-SDC/questionnaire-backend/internal/shortid"

	databaseutil "github.com/NYCU-SDC/summer/pkg/database"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Querier interface {
	Create(ctx context.Context, arg CreateParams) (Questionnaire, error)
	GetByShortID(ctx context.Context, shortID string) (Questionnaire, error)
	ListRecords(ctx context.Context) ([]Questionnaire, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type DefinitionReader interface {
	Read(path string) (*Definition, error)
}

type DirectoryWalker interface {
	Walk(dir string) ([]string, error)
}

type FileStore interface {
	Save(ctx context.Context, originalFilename string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
}

// Resolved pairs the internal key of a questionnaire with its current content.
type Resolved struct {
	RecordID uuid.UUID
	Entry    Entry
}

type UploadResult struct {
	Name string `json:"name"`
}

type Service struct {
	logger    *zap.Logger
	queries   Querier
	tracer    trace.Tracer
	reader    DefinitionReader
	walker    DirectoryWalker
	files     FileStore
	validator *file.Validator
	ids       shortid.Issuer
	cache     *Cache
	dir       string
	maxUpload int64

	// scanMu serializes scans and deletes; both rewrite the cache.
	scanMu sync.Mutex
}

func NewService(logger *zap.Logger, db DBTX, dir string, files FileStore, maxUpload int64) *Service {
	if maxUpload <= 0 {
		maxUpload = file.DefaultMaxSize
	}

	return &Service{
		logger:    logger,
		queries:   New(db),
		tracer:    otel.Tracer("questionnaire/service"),
		reader:    NewReader(),
		walker:    NewScanner(),
		files:     files,
		validator: file.NewValidator(),
		ids:       shortid.NewGenerator(),
		cache:     NewCache(),
		dir:       filepath.Clean(dir),
		maxUpload: maxUpload,
	}
}

// NewServiceForTesting builds a Service around injected collaborators.
func NewServiceForTesting(logger *zap.Logger, tracer trace.Tracer, queries Querier, files FileStore, ids shortid.Issuer, dir string) *Service {
	return &Service{
		logger:    logger,
		queries:   queries,
		tracer:    tracer,
		reader:    NewReader(),
		walker:    NewScanner(),
		files:     files,
		validator: file.NewValidator(),
		ids:       ids,
		cache:     NewCache(),
		dir:       filepath.Clean(dir),
		maxUpload: file.DefaultMaxSize,
	}
}

// Cache exposes the canonical list so callers can reset it.
func (s *Service) Cache() *Cache {
	return s.cache
}

// List reconciles the questionnaire directory with the database and returns
// the canonical list. Stale records are pruned before new files are
// registered so that a record is never matched against a file that replaced
// a deleted one during the same scan.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	traceCtx, span := s.tracer.Start(ctx, "List")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	tracker := logutil.StartDBOperation(traceCtx, logger, "ListRecords", nil)

	records, err := s.queries.ListRecords(traceCtx)
	if err != nil {
		err = databaseutil.WrapDBErrorWithTracker(err, tracker, "list questionnaire records")
		span.RecordError(err)
		return nil, err
	}

	tracker.SuccessRead(len(records), "")

	records, err = s.PruneStaleRecords(traceCtx, records)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	err = s.ReconcileDiscoveredFiles(traceCtx, records)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	entries := s.cache.Snapshot()
	logger.Debug("Listed questionnaires", zap.Int("count", len(entries)))

	return entries, nil
}

// PruneStaleRecords deletes every record whose file no longer exists, along
// with its responses and its cache entry. It returns the surviving records.
func (s *Service) PruneStaleRecords(ctx context.Context, records []Questionnaire) ([]Questionnaire, error) {
	traceCtx, span := s.tracer.Start(ctx, "PruneStaleRecords")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	kept := make([]Questionnaire, 0, len(records))
	for _, record := range records {
		def, err := s.reader.Read(record.FilePath)
		if err != nil {
			// Unreadable is not the same as deleted; keep the record.
			logger.Warn("Failed to read questionnaire file while pruning", zap.String("short_id", record.ShortID), zap.Error(err))
			kept = append(kept, record)
			continue
		}
		if def != nil {
			kept = append(kept, record)
			continue
		}

		s.cache.Remove(record.ShortID)

		err = s.deleteRecord(traceCtx, logger, record)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		logger.Info("Pruned questionnaire whose file was removed", zap.String("short_id", record.ShortID))
	}

	return kept, nil
}

// ReconcileDiscoveredFiles walks the questionnaire directory, registers files
// that have no record yet and merges every readable file into the cache.
// Records are matched by path against the given set, not queried one by one.
func (s *Service) ReconcileDiscoveredFiles(ctx context.Context, records []Questionnaire) error {
	traceCtx, span := s.tracer.Start(ctx, "ReconcileDiscoveredFiles")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	byPath := make(map[string]Questionnaire, len(records))
	for _, record := range records {
		byPath[record.FilePath] = record
	}

	paths, err := s.walker.Walk(s.dir)
	if err != nil {
		logger.Error("Failed to walk questionnaire directory", zap.String("dir", s.dir), zap.Error(err))
		span.RecordError(err)
		return err
	}

	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		def, err := s.reader.Read(path)
		if err != nil {
			logger.Warn("Skipping unreadable questionnaire file", zap.String("path", path), zap.Error(err))
			continue
		}
		if def == nil {
			continue
		}

		record, ok := byPath[path]
		if !ok {
			record, err = s.register(traceCtx, logger, path)
			if err != nil {
				span.RecordError(err)
				return err
			}
			byPath[path] = record
		}

		seen[record.ShortID] = true
		if s.cache.Upsert(Entry{ID: record.ShortID, Definition: *def}) {
			logger.Debug("Questionnaire content refreshed", zap.String("short_id", record.ShortID))
		}
	}

	for _, entry := range s.cache.Snapshot() {
		if !seen[entry.ID] {
			s.cache.Remove(entry.ID)
		}
	}

	return nil
}

// register inserts a record for a newly discovered file under a fresh short ID.
func (s *Service) register(ctx context.Context, logger *zap.Logger, path string) (Questionnaire, error) {
	dbParams := map[string]interface{}{
		"file_path": path,
	}
	tracker := logutil.StartDBOperation(ctx, logger, "Create", dbParams)

	record, err := shortid.Retry(ctx, s.ids, shortid.DefaultAttempts, func(ctx context.Context, id string) (Questionnaire, error) {
		return s.queries.Create(ctx, CreateParams{
			ShortID:  id,
			FilePath: path,
		})
	})
	if err != nil {
		return Questionnaire{}, databaseutil.WrapDBErrorWithTracker(err, tracker, "create questionnaire record")
	}

	tracker.SuccessWrite(record.ShortID)

	return record, nil
}

// Resolve returns the record key and fresh file content of a questionnaire.
// It fails with ErrQuestionnaireNotFound when either the record or its file is gone.
func (s *Service) Resolve(ctx context.Context, shortID string) (Resolved, error) {
	traceCtx, span := s.tracer.Start(ctx, "Resolve")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	record, err := s.getRecord(traceCtx, logger, shortID)
	if err != nil {
		span.RecordError(err)
		return Resolved{}, err
	}

	def, err := s.reader.Read(record.FilePath)
	if err != nil {
		// The file is on disk but unusable; this is not the caller's fault.
		logger.Error("Failed to read questionnaire file", zap.String("short_id", shortID), zap.Error(err))
		span.RecordError(err)
		return Resolved{}, fmt.Errorf("%w: %v", internal.ErrQuestionnaireUnavailable, err)
	}
	if def == nil {
		return Resolved{}, internal.ErrQuestionnaireNotFound
	}

	return Resolved{
		RecordID: record.ID,
		Entry:    Entry{ID: record.ShortID, Definition: *def},
	}, nil
}

// Get returns a questionnaire with its content read fresh from disk.
func (s *Service) Get(ctx context.Context, shortID string) (Entry, error) {
	resolved, err := s.Resolve(ctx, shortID)
	if err != nil {
		return Entry{}, err
	}
	return resolved.Entry, nil
}

// Delete removes a questionnaire from the cache, then its record (and with
// it every response), then its file. Unknown IDs are ignored.
func (s *Service) Delete(ctx context.Context, shortID string) error {
	traceCtx, span := s.tracer.Start(ctx, "Delete")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	// A scan in flight could otherwise put the entry back after it is removed.
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	record, err := s.getRecord(traceCtx, logger, shortID)
	if err != nil {
		if errors.Is(err, internal.ErrQuestionnaireNotFound) {
			return nil
		}
		span.RecordError(err)
		return err
	}

	s.cache.Remove(record.ShortID)

	err = s.deleteRecord(traceCtx, logger, record)
	if err != nil {
		span.RecordError(err)
		return err
	}

	err = s.files.Remove(traceCtx, record.FilePath)
	if err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// Upload validates an uploaded definition and stores it in the questionnaire
// directory. The next scan registers it.
func (s *Service) Upload(ctx context.Context, filename, contentType string, content io.Reader) (UploadResult, error) {
	traceCtx, span := s.tracer.Start(ctx, "Upload")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	data, err := s.validator.ValidateStream(content, contentType,
		file.WithMaxSize(s.maxUpload),
		file.WithJSON(),
	)
	if err != nil {
		logger.Warn("Questionnaire upload rejected", zap.String("filename", filename), zap.Error(err))
		span.RecordError(err)
		return UploadResult{}, err
	}

	_, err = ParseDefinition(data)
	if err != nil {
		logger.Warn("Questionnaire upload is not a definition", zap.String("filename", filename), zap.Error(err))
		span.RecordError(err)
		return UploadResult{}, err
	}

	_, err = s.files.Save(traceCtx, filename, data)
	if err != nil {
		span.RecordError(err)
		return UploadResult{}, err
	}

	return UploadResult{Name: filename}, nil
}

func (s *Service) getRecord(ctx context.Context, logger *zap.Logger, shortID string) (Questionnaire, error) {
	if shortID == "" {
		return Questionnaire{}, internal.ErrQuestionnaireNotSelected
	}

	record, err := s.queries.GetByShortID(ctx, shortID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Questionnaire{}, internal.ErrQuestionnaireNotFound
		}
		return Questionnaire{}, databaseutil.WrapDBErrorWithKeyValue(err, "questionnaire", "short_id", shortID, logger, "get questionnaire by short id")
	}

	return record, nil
}

func (s *Service) deleteRecord(ctx context.Context, logger *zap.Logger, record Questionnaire) error {
	dbParams := map[string]interface{}{
		"id":       record.ID.String(),
		"short_id": record.ShortID,
	}
	tracker := logutil.StartDBOperation(ctx, logger, "DeleteByID", dbParams)

	err := s.queries.DeleteByID(ctx, record.ID)
	if err != nil {
		return databaseutil.WrapDBErrorWithTracker(err, tracker, fmt.Sprintf("delete questionnaire %s", record.ShortID))
	}

	tracker.SuccessWrite(record.ShortID)

	return nil
}
