package response

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"NYCU-SDC/questionnaire-backend/internal"

	handlerutil "github.com/NYCU-SDC/summer/pkg/handler"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const noQuestionsWarning = "No questions have been added to this questionnaire yet. Please add at least one question for your participants to answer."

type Store interface {
	Add(ctx context.Context, questionnaireID string, raw map[string]json.RawMessage) (Response, error)
	Select(ctx context.Context, questionnaireID string) (ResponseSet, error)
	Summarize(ctx context.Context, questionnaireID string) (Summary, error)
	DeleteAll(ctx context.Context, questionnaireID string) error
	Delete(ctx context.Context, questionnaireID, responseID string) error
}

type CreateRequest struct {
	Answers map[string]json.RawMessage `json:"answers" validate:"required,min=1"`
}

type CreateResponse struct {
	Success string   `json:"success"`
	Result  Response `json:"result"`
}

type ListResponse struct {
	ResponseSet
	Warning string `json:"warning,omitempty"`
}

type Handler struct {
	logger        *zap.Logger
	validator     *validator.Validate
	problemWriter *problem.HttpWriter
	store         Store
	tracer        trace.Tracer
}

func NewHandler(logger *zap.Logger, validator *validator.Validate, problemWriter *problem.HttpWriter, store Store) *Handler {
	return &Handler{
		logger:        logger,
		validator:     validator,
		problemWriter: problemWriter,
		store:         store,
		tracer:        otel.Tracer("response/handler"),
	}
}

// ListHandler handles GET /api/questionnaires/{id}/responses
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "ListHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	id, ok := h.questionnaireID(traceCtx, w, r, logger)
	if !ok {
		return
	}

	set, err := h.store.Select(traceCtx, id)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	body := ListResponse{ResponseSet: set}
	switch {
	case !set.HasQuestions:
		body.Warning = noQuestionsWarning
	case len(set.Responses) == 0:
		body.Warning = fmt.Sprintf("Sorry, no responses for questionnaire of ID '%s' have been given yet. Please check back later.", id)
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, body)
}

// CreateHandler handles POST /api/questionnaires/{id}/responses
func (h *Handler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "CreateHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	id, ok := h.questionnaireID(traceCtx, w, r, logger)
	if !ok {
		return
	}

	var req CreateRequest
	if err := handlerutil.ParseAndValidateRequestBody(traceCtx, h.validator, r, &req); err != nil {
		if len(req.Answers) == 0 {
			err = internal.ErrResponseNoAnswers
		}
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	created, err := h.store.Add(traceCtx, id, req.Answers)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusCreated, CreateResponse{
		Success: "Thank you, your response has been saved.",
		Result:  created,
	})
}

// SummaryHandler handles GET /api/questionnaires/{id}/responses/summary
func (h *Handler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "SummaryHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	id, ok := h.questionnaireID(traceCtx, w, r, logger)
	if !ok {
		return
	}

	summary, err := h.store.Summarize(traceCtx, id)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, summary)
}

// ExportHandler handles GET /api/questionnaires/{id}/responses/export?format=
func (h *Handler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "ExportHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	id, ok := h.questionnaireID(traceCtx, w, r, logger)
	if !ok {
		return
	}

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	set, err := h.store.Select(traceCtx, id)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	// Render fully before writing headers so a failure can still become a problem response
	var buf bytes.Buffer
	err = Export(&buf, set, format)
	if err != nil {
		logger.Error("Failed to export responses", zap.String("questionnaire_id", id), zap.String("format", string(format)), zap.Error(err))
		h.problemWriter.WriteError(traceCtx, w, internal.ErrInternalServerError, logger)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(id)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Warn("Failed to write export body", zap.Error(err))
	}
}

// DeleteAllHandler handles DELETE /api/questionnaires/{id}/responses
func (h *Handler) DeleteAllHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "DeleteAllHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	id, ok := h.questionnaireID(traceCtx, w, r, logger)
	if !ok {
		return
	}

	err := h.store.DeleteAll(traceCtx, id)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteHandler handles DELETE /api/questionnaires/{id}/responses/{responseId}
func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "DeleteHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	id, ok := h.questionnaireID(traceCtx, w, r, logger)
	if !ok {
		return
	}

	responseID := r.PathValue("responseId")
	if !internal.IsShortID(responseID) {
		h.problemWriter.WriteError(traceCtx, w, internal.ErrResponseNotSelected, logger)
		return
	}

	err := h.store.Delete(traceCtx, id, responseID)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) questionnaireID(ctx context.Context, w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	id := r.PathValue("id")
	if !internal.IsShortID(id) {
		h.problemWriter.WriteError(ctx, w, internal.ErrQuestionnaireNotSelected, logger)
		return "", false
	}
	return id, true
}
