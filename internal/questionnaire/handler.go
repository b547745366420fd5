package questionnaire

import (
	"context"
	"errors"
	"io"
	"net/http"

	"NYCU-SDC/questionnaire-backend/internal"

	handlerutil "github.com/NYCU-SDC/summer/pkg/handler"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// uploadField is the multipart field carrying the questionnaire file.
const uploadField = "questionnaire"

type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, shortID string) (Entry, error)
	Delete(ctx context.Context, shortID string) error
	Upload(ctx context.Context, filename, contentType string, content io.Reader) (UploadResult, error)
}

type NoQuestionsResponse struct {
	Entry
	Error string `json:"error"`
}

type UploadResponse struct {
	Success string `json:"success"`
	Name    string `json:"name"`
}

type Handler struct {
	logger        *zap.Logger
	validator     *validator.Validate
	problemWriter *problem.HttpWriter
	store         Store
	maxUpload     int64
	tracer        trace.Tracer
}

func NewHandler(logger *zap.Logger, validator *validator.Validate, problemWriter *problem.HttpWriter, store Store, maxUpload int64) *Handler {
	return &Handler{
		logger:        logger,
		validator:     validator,
		problemWriter: problemWriter,
		store:         store,
		maxUpload:     maxUpload,
		tracer:        otel.Tracer("questionnaire/handler"),
	}
}

// ListHandler handles GET /api/questionnaires
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "ListHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	entries, err := h.store.List(traceCtx)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	if len(entries) == 0 {
		h.problemWriter.WriteError(traceCtx, w, internal.ErrQuestionnairesNotFound, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, entries)
}

// GetHandler handles GET /api/questionnaires/{id}
func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "GetHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	id := r.PathValue("id")
	if !internal.IsShortID(id) {
		h.problemWriter.WriteError(traceCtx, w, internal.ErrQuestionnaireNotSelected, logger)
		return
	}

	entry, err := h.store.Get(traceCtx, id)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	if !entry.HasQuestions() {
		// Respondents still get the name so the page can say which questionnaire is empty
		handlerutil.WriteJSONResponse(w, http.StatusNotFound, NoQuestionsResponse{
			Entry: entry,
			Error: "Sorry, no questions have been added to this questionnaire yet. Please check back later.",
		})
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, entry)
}

// UploadHandler handles POST /api/questionnaires with a multipart body
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "UploadHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	// Leave headroom for multipart framing on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)

	err := r.ParseMultipartForm(h.maxUpload)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.problemWriter.WriteError(traceCtx, w, internal.ErrFileTooLarge, logger)
			return
		}
		logger.Warn("Failed to parse multipart form", zap.Error(err))
		h.problemWriter.WriteError(traceCtx, w, internal.ErrInvalidMultipart, logger)
		return
	}

	uploaded, header, err := r.FormFile(uploadField)
	if err != nil {
		logger.Warn("Missing questionnaire file in upload", zap.Error(err))
		h.problemWriter.WriteError(traceCtx, w, internal.ErrInvalidMultipart, logger)
		return
	}
	defer func() {
		if err := uploaded.Close(); err != nil {
			logger.Warn("Failed to close uploaded file", zap.Error(err))
		}
	}()

	result, err := h.store.Upload(traceCtx, header.Filename, header.Header.Get("Content-Type"), uploaded)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusCreated, UploadResponse{
		Success: "Thank you, your questionnaire has been uploaded.",
		Name:    result.Name,
	})
}

// DeleteHandler handles DELETE /api/questionnaires/{id}
func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "DeleteHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	id := r.PathValue("id")
	if !internal.IsShortID(id) {
		h.problemWriter.WriteError(traceCtx, w, internal.ErrQuestionnaireNotSelected, logger)
		return
	}

	err := h.store.Delete(traceCtx, id)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
