package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"NYCU-SDC/questionnaire-backend/internal"
	"NYCU-SDC/questionnaire-backend/internal/questionnaire"
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
	Create(ctx context.Context, arg CreateParams) (ResponseRow, error)
	CreateAnswer(ctx context.Context, arg CreateAnswerParams) (AnswerRow, error)
	ListByQuestionnaireID(ctx context.Context, questionnaireID uuid.UUID) ([]ResponseRow, error)
	ListAnswersByQuestionnaireID(ctx context.Context, questionnaireID uuid.UUID) ([]AnswerRow, error)
	DeleteByQuestionnaireID(ctx context.Context, questionnaireID uuid.UUID) (int64, error)
	DeleteByShortID(ctx context.Context, arg DeleteByShortIDParams) (int64, error)
}

// Transactor runs fn inside a single database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(q Querier) error) error
}

type QuestionnaireStore interface {
	Resolve(ctx context.Context, shortID string) (questionnaire.Resolved, error)
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Response struct {
	ID        string    `json:"id"`
	Submitted time.Time `json:"submitted"`
	Answers   []Answer  `json:"answers"`

	// Score is set only when the questionnaire has scored questions.
	Score *Score `json:"score,omitempty"`
}

// ResponseSet is every response of one questionnaire, oldest first.
type ResponseSet struct {
	QuestionnaireID string     `json:"questionnaireId"`
	Name            string     `json:"name"`
	HasQuestions    bool       `json:"hasQuestions"`
	Responses       []Response `json:"responses"`

	// QuestionIDs is the authored question order used for exports.
	QuestionIDs []string `json:"-"`
}

type Service struct {
	logger         *zap.Logger
	queries        Querier
	tx             Transactor
	questionnaires QuestionnaireStore
	decoder        *Decoder
	ids            shortid.Issuer
	tracer         trace.Tracer
}

func NewService(logger *zap.Logger, db DB, questionnaires QuestionnaireStore) *Service {
	queries := New(db)
	return &Service{
		logger:         logger,
		queries:        queries,
		tx:             pgxTransactor{db: db, queries: queries},
		questionnaires: questionnaires,
		decoder:        NewDecoder(),
		ids:            shortid.NewGenerator(),
		tracer:         otel.Tracer("response/service"),
	}
}

// NewServiceForTesting builds a Service around injected collaborators.
func NewServiceForTesting(logger *zap.Logger, tracer trace.Tracer, queries Querier, tx Transactor, questionnaires QuestionnaireStore, ids shortid.Issuer) *Service {
	return &Service{
		logger:         logger,
		queries:        queries,
		tx:             tx,
		questionnaires: questionnaires,
		decoder:        NewDecoder(),
		ids:            ids,
		tracer:         tracer,
	}
}

// Add stores a response and all of its answers atomically. Multi-select
// answers fan out to one row per selected value, inserted in order.
func (s *Service) Add(ctx context.Context, questionnaireID string, raw map[string]json.RawMessage) (Response, error) {
	traceCtx, span := s.tracer.Start(ctx, "Add")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	if len(raw) == 0 {
		return Response{}, internal.ErrResponseNoAnswers
	}

	resolved, err := s.questionnaires.Resolve(traceCtx, questionnaireID)
	if err != nil {
		span.RecordError(err)
		return Response{}, err
	}

	answers, err := s.decoder.Decode(resolved.Entry.Definition, raw)
	if err != nil {
		logger.Warn("Rejected response answers", zap.String("questionnaire_id", questionnaireID), zap.Error(err))
		span.RecordError(err)
		return Response{}, err
	}

	dbParams := map[string]interface{}{
		"questionnaire_id": questionnaireID,
		"answers":          len(answers),
	}
	tracker := logutil.StartDBOperation(traceCtx, logger, "AddResponse", dbParams)

	// A unique violation aborts the transaction, so each attempt gets its own.
	created, err := shortid.Retry(traceCtx, s.ids, shortid.DefaultAttempts, func(ctx context.Context, id string) (Response, error) {
		return s.insert(ctx, resolved, id, answers)
	})
	if err != nil {
		if errors.Is(err, internal.ErrShortIDExhausted) {
			logger.Error("Exhausted short id attempts for response", zap.String("questionnaire_id", questionnaireID), zap.Error(err))
			span.RecordError(err)
			return Response{}, err
		}
		err = databaseutil.WrapDBErrorWithTracker(err, tracker, "add response")
		span.RecordError(err)
		return Response{}, fmt.Errorf("%w: %w", internal.ErrResponseNotSaved, err)
	}

	tracker.SuccessWrite(created.ID)

	return created, nil
}

func (s *Service) insert(ctx context.Context, resolved questionnaire.Resolved, id string, answers []Answer) (Response, error) {
	var created Response

	err := s.tx.InTx(ctx, func(q Querier) error {
		row, err := q.Create(ctx, CreateParams{
			ShortID:         id,
			QuestionnaireID: resolved.RecordID,
		})
		if err != nil {
			return err
		}

		stored := make([]AnswerRow, 0, len(answers))
		for _, answer := range answers {
			for _, content := range rowsOf(answer) {
				answerRow, err := q.CreateAnswer(ctx, CreateAnswerParams{
					QuestionID: answer.QuestionID,
					Content:    content,
					ResponseID: row.ID,
				})
				if err != nil {
					return err
				}
				stored = append(stored, answerRow)
			}
		}

		answers := rebuild(resolved.Entry.Definition, stored)
		created = Response{
			ID:        row.ShortID,
			Submitted: row.TimeSubmitted.Time,
			Answers:   answers,
			Score:     ScoreOf(resolved.Entry.Definition, answers),
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	return created, nil
}

// Select returns every response of a questionnaire with answers regrouped
// per question and ordered as the questions are authored.
func (s *Service) Select(ctx context.Context, questionnaireID string) (ResponseSet, error) {
	traceCtx, span := s.tracer.Start(ctx, "Select")
	defer span.End()

	set, _, err := s.selectResolved(traceCtx, questionnaireID)
	if err != nil {
		span.RecordError(err)
		return ResponseSet{}, err
	}

	return set, nil
}

func (s *Service) selectResolved(ctx context.Context, questionnaireID string) (ResponseSet, questionnaire.Definition, error) {
	logger := logutil.WithContext(ctx, s.logger)

	resolved, err := s.questionnaires.Resolve(ctx, questionnaireID)
	if err != nil {
		return ResponseSet{}, questionnaire.Definition{}, err
	}
	def := resolved.Entry.Definition

	tracker := logutil.StartDBOperation(ctx, logger, "ListByQuestionnaireID", map[string]interface{}{
		"questionnaire_id": questionnaireID,
	})

	rows, err := s.queries.ListByQuestionnaireID(ctx, resolved.RecordID)
	if err != nil {
		return ResponseSet{}, questionnaire.Definition{}, databaseutil.WrapDBErrorWithTracker(err, tracker, "list responses")
	}

	answerRows, err := s.queries.ListAnswersByQuestionnaireID(ctx, resolved.RecordID)
	if err != nil {
		return ResponseSet{}, questionnaire.Definition{}, databaseutil.WrapDBErrorWithTracker(err, tracker, "list answers")
	}

	tracker.SuccessRead(len(rows), questionnaireID)

	byResponse := make(map[uuid.UUID][]AnswerRow, len(rows))
	for _, answerRow := range answerRows {
		byResponse[answerRow.ResponseID] = append(byResponse[answerRow.ResponseID], answerRow)
	}

	responses := make([]Response, 0, len(rows))
	for _, row := range rows {
		answers := rebuild(def, byResponse[row.ID])
		responses = append(responses, Response{
			ID:        row.ShortID,
			Submitted: row.TimeSubmitted.Time,
			Answers:   answers,
			Score:     ScoreOf(def, answers),
		})
	}

	return ResponseSet{
		QuestionnaireID: resolved.Entry.ID,
		Name:            def.Name,
		HasQuestions:    def.HasQuestions(),
		Responses:       responses,
		QuestionIDs:     def.QuestionIDs(),
	}, def, nil
}

// Summarize tallies the answers of every response per question.
func (s *Service) Summarize(ctx context.Context, questionnaireID string) (Summary, error) {
	traceCtx, span := s.tracer.Start(ctx, "Summarize")
	defer span.End()

	set, def, err := s.selectResolved(traceCtx, questionnaireID)
	if err != nil {
		span.RecordError(err)
		return Summary{}, err
	}

	return Summarize(set, def), nil
}

// DeleteAll removes every response of a questionnaire. A questionnaire that
// cannot be resolved has nothing to delete.
func (s *Service) DeleteAll(ctx context.Context, questionnaireID string) error {
	traceCtx, span := s.tracer.Start(ctx, "DeleteAll")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	resolved, ok, err := s.resolveForDelete(traceCtx, logger, questionnaireID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		return nil
	}

	tracker := logutil.StartDBOperation(traceCtx, logger, "DeleteByQuestionnaireID", map[string]interface{}{
		"questionnaire_id": questionnaireID,
	})

	deleted, err := s.queries.DeleteByQuestionnaireID(traceCtx, resolved.RecordID)
	if err != nil {
		err = databaseutil.WrapDBErrorWithTracker(err, tracker, "delete responses")
		span.RecordError(err)
		return err
	}

	tracker.SuccessWrite(questionnaireID)
	logger.Info("Deleted responses", zap.String("questionnaire_id", questionnaireID), zap.Int64("count", deleted))

	return nil
}

// Delete removes one response of a questionnaire. Unknown IDs are ignored.
func (s *Service) Delete(ctx context.Context, questionnaireID, responseID string) error {
	traceCtx, span := s.tracer.Start(ctx, "Delete")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	if responseID == "" {
		return internal.ErrResponseNotSelected
	}

	resolved, ok, err := s.resolveForDelete(traceCtx, logger, questionnaireID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		return nil
	}

	tracker := logutil.StartDBOperation(traceCtx, logger, "DeleteByShortID", map[string]interface{}{
		"questionnaire_id": questionnaireID,
		"response_id":      responseID,
	})

	deleted, err := s.queries.DeleteByShortID(traceCtx, DeleteByShortIDParams{
		QuestionnaireID: resolved.RecordID,
		ShortID:         responseID,
	})
	if err != nil {
		err = databaseutil.WrapDBErrorWithTracker(err, tracker, "delete response")
		span.RecordError(err)
		return err
	}

	if deleted == 0 {
		logger.Debug("No response to delete", zap.String("questionnaire_id", questionnaireID), zap.String("response_id", responseID))
		return nil
	}

	tracker.SuccessWrite(responseID)

	return nil
}

func (s *Service) resolveForDelete(ctx context.Context, logger *zap.Logger, questionnaireID string) (questionnaire.Resolved, bool, error) {
	resolved, err := s.questionnaires.Resolve(ctx, questionnaireID)
	if err != nil {
		if errors.Is(err, internal.ErrQuestionnaireNotFound) {
			logger.Debug("Questionnaire not resolvable, nothing to delete", zap.String("questionnaire_id", questionnaireID))
			return questionnaire.Resolved{}, false, nil
		}
		return questionnaire.Resolved{}, false, err
	}
	return resolved, true, nil
}

type pgxTransactor struct {
	db      DB
	queries *Queries
}

func (t pgxTransactor) InTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit(ctx)
	}()

	return fn(t.queries.WithTx(tx))
}
