package response

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"NYCU-SDC/questionnaire-backend/internal"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const xlsxSheet = "Responses"

// ParseFormat accepts a format name case-insensitively; empty means csv.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatTSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", internal.ErrUnsupportedExportFormat, name)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatTSV:
		return "text/tab-separated-values; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename names the download after the questionnaire.
func (f Format) Filename(questionnaireID string) string {
	return fmt.Sprintf("responses-%s.%s", questionnaireID, f)
}

// Export writes a response set in the given format. Separated-value and
// spreadsheet layouts have one row per response and one column per question.
func Export(w io.Writer, set ResponseSet, format Format) error {
	switch format {
	case FormatCSV, FormatTSV:
		writer := csv.NewWriter(w)
		if format == FormatTSV {
			writer.Comma = '\t'
		}
		err := writer.WriteAll(Table(set))
		if err != nil {
			return err
		}
		return writer.Error()

	case FormatJSON:
		responses := set.Responses
		if responses == nil {
			responses = []Response{}
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(responses)

	case FormatXLSX:
		return exportXLSX(w, set)

	default:
		return fmt.Errorf("%w: %s", internal.ErrUnsupportedExportFormat, format)
	}
}

// Table lays a response set out as rows: a header of id, submitted and the
// question IDs in authored order, then one row per response. Question IDs
// answered but no longer authored get trailing columns. Unanswered cells
// are empty; multi-select values are joined with MultiSeparator.
func Table(set ResponseSet) [][]string {
	columns := append([]string(nil), set.QuestionIDs...)
	index := make(map[string]int, len(columns))
	for i, id := range columns {
		if _, ok := index[id]; !ok {
			index[id] = i
		}
	}
	for _, response := range set.Responses {
		for _, answer := range response.Answers {
			if _, ok := index[answer.QuestionID]; !ok {
				index[answer.QuestionID] = len(columns)
				columns = append(columns, answer.QuestionID)
			}
		}
	}

	table := make([][]string, 0, len(set.Responses)+1)
	table = append(table, append([]string{"id", "submitted"}, columns...))

	for _, response := range set.Responses {
		row := make([]string, 2+len(columns))
		row[0] = response.ID
		row[1] = response.Submitted.UTC().Format(time.RFC3339)
		for _, answer := range response.Answers {
			row[2+index[answer.QuestionID]] = answer.Content.String()
		}
		table = append(table, row)
	}

	return table
}

func exportXLSX(w io.Writer, set ResponseSet) (err error) {
	f := excelize.NewFile()
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	err = f.SetSheetName(f.GetSheetName(0), xlsxSheet)
	if err != nil {
		return err
	}

	for i, row := range Table(set) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		err = f.SetSheetRow(xlsxSheet, cell, &row)
		if err != nil {
			return err
		}
	}

	return f.Write(w)
}
