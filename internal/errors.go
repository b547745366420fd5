package internal

import (
	"errors"

	"github.com/NYCU-SDC/summer/pkg/problem"
)

var (
	ErrInternalServerError = errors.New("internal server error")

	// Questionnaire Errors
	ErrQuestionnaireNotFound    = errors.New("questionnaire not found")
	ErrQuestionnaireNotSelected = errors.New("questionnaire not selected")
	ErrQuestionnairesNotFound   = errors.New("no questionnaires found")
	ErrMalformedDefinition      = errors.New("malformed questionnaire definition")
	ErrQuestionnaireUnavailable = errors.New("questionnaire file could not be read")

	// Question Errors
	ErrQuestionNotFound     = errors.New("question not found")
	ErrQuestionTypeMismatch = errors.New("answer does not match the question type")

	// Response Errors
	ErrResponseNoAnswers   = errors.New("response has no answers")
	ErrResponseNotSaved    = errors.New("response could not be saved")
	ErrResponseNotSelected = errors.New("response not selected")
	ErrShortIDExhausted    = errors.New("could not allocate a unique short id")

	// Export Errors
	ErrUnsupportedExportFormat = errors.New("unsupported export format")

	// File Errors
	ErrFileTooLarge       = errors.New("file exceeds maximum size")
	ErrInvalidFileType    = errors.New("file type is not allowed")
	ErrInvalidMultipart   = errors.New("failed to parse multipart form")
	ErrFailedToSaveFile   = errors.New("failed to save file")
	ErrFailedToDeleteFile = errors.New("failed to delete file")
)

func NewProblemWriter() *problem.HttpWriter {
	return problem.NewWithMapping(ErrorHandler)
}

func ErrorHandler(err error) problem.Problem {
	switch {
	case errors.Is(err, ErrInternalServerError):
		return problem.NewInternalServerProblem("internal server error")

	// Questionnaire Errors
	case errors.Is(err, ErrQuestionnaireNotFound):
		return problem.NewNotFoundProblem("Sorry, no questionnaire with this ID could be found. Please check the ID and try again.")
	case errors.Is(err, ErrQuestionnaireNotSelected):
		return problem.NewBadRequestProblem("Sorry, no questionnaire was selected. Please try again using the ID of the questionnaire.")
	case errors.Is(err, ErrQuestionnairesNotFound):
		return problem.NewNotFoundProblem("Sorry, no questionnaires were found. Please add them to the questionnaires folder.")
	case errors.Is(err, ErrQuestionnaireUnavailable):
		return problem.NewInternalServerProblem("Sorry, this questionnaire is currently unavailable. Please try again later.")
	case errors.Is(err, ErrMalformedDefinition):
		return problem.NewValidateProblem("Sorry, your questionnaire file was not in the correct format. Please try uploading it again as a valid JSON file.")

	// Question Errors
	case errors.Is(err, ErrQuestionNotFound):
		return problem.NewValidateProblem("answer references a question that does not exist")
	case errors.Is(err, ErrQuestionTypeMismatch):
		return problem.NewValidateProblem("answer does not match the question type")

	// Response Errors
	case errors.Is(err, ErrResponseNoAnswers):
		return problem.NewBadRequestProblem("Sorry, no answers have been provided. Please re-attempt the questionnaire and try submitting again.")
	case errors.Is(err, ErrResponseNotSaved), errors.Is(err, ErrShortIDExhausted):
		return problem.NewInternalServerProblem("Sorry, your response could not be saved at this time. Please try submitting again.")
	case errors.Is(err, ErrResponseNotSelected):
		return problem.NewBadRequestProblem("Sorry, no response was selected. Please try again using the ID of the response.")

	// Export Errors
	case errors.Is(err, ErrUnsupportedExportFormat):
		return problem.NewBadRequestProblem("unsupported export format, use one of csv, tsv, json, xlsx")

	// File Errors
	case errors.Is(err, ErrFileTooLarge):
		return problem.NewValidateProblem("Sorry, your questionnaire file was too large. Please ensure the file does not exceed 5MB.")
	case errors.Is(err, ErrInvalidFileType):
		return problem.NewValidateProblem("Sorry, your questionnaire file was not in the correct format. Please try uploading it again as a valid JSON file.")
	case errors.Is(err, ErrInvalidMultipart):
		return problem.NewBadRequestProblem("failed to parse multipart form")
	case errors.Is(err, ErrFailedToSaveFile):
		return problem.NewInternalServerProblem("Sorry, your questionnaire file could not be uploaded. Please try uploading it again.")
	case errors.Is(err, ErrFailedToDeleteFile):
		return problem.NewInternalServerProblem("failed to delete questionnaire file")
	}
	return problem.Problem{}
}
