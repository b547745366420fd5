package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"NYCU-SDC/questionnaire-backend/internal"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Store keeps questionnaire files inside a root directory on local disk.
type Store struct {
	logger *zap.Logger
	root   string
	tracer trace.Tracer
	now    func() time.Time
}

func NewStore(logger *zap.Logger, root string) *Store {
	return &Store{
		logger: logger,
		root:   filepath.Clean(root),
		tracer: otel.Tracer("file/store"),
		now:    time.Now,
	}
}

// Root returns the directory files are written into.
func (s *Store) Root() string {
	return s.root
}

// Save writes data under the root using the original file name with a
// millisecond timestamp appended, e.g. "survey.json" becomes
// "survey-1700000000000.json". It returns the path written.
func (s *Store) Save(ctx context.Context, originalFilename string, data []byte) (string, error) {
	traceCtx, span := s.tracer.Start(ctx, "Save")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	name := UniqueName(originalFilename, s.now())
	path := filepath.Join(s.root, name)

	// O_EXCL keeps an existing questionnaire from being overwritten
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		logger.Error("Failed to create questionnaire file", zap.String("path", path), zap.Error(err))
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", internal.ErrFailedToSaveFile, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		logger.Error("Failed to write questionnaire file", zap.String("path", path), zap.Error(err))
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", internal.ErrFailedToSaveFile, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", internal.ErrFailedToSaveFile, err)
	}

	logger.Info("Questionnaire file saved successfully",
		zap.String("path", path),
		zap.String("original_filename", originalFilename),
		zap.Int("size", len(data)),
	)

	return path, nil
}

// Remove deletes the file at path. A file that is already gone is not an error.
func (s *Store) Remove(ctx context.Context, path string) error {
	traceCtx, span := s.tracer.Start(ctx, "Remove")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("Failed to delete questionnaire file", zap.String("path", path), zap.Error(err))
		span.RecordError(err)
		return fmt.Errorf("%w: %v", internal.ErrFailedToDeleteFile, err)
	}

	logger.Info("Questionnaire file deleted", zap.String("path", path))

	return nil
}

// UniqueName derives the stored file name from an uploaded one.
func UniqueName(originalFilename string, at time.Time) string {
	base := filepath.Base(originalFilename)
	if base == "." || base == string(filepath.Separator) {
		base = "questionnaire.json"
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "questionnaire"
	}
	if ext == "" {
		ext = ".json"
	}

	return stem + "-" + strconv.FormatInt(at.UnixMilli(), 10) + ext
}
