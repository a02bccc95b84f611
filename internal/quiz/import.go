package quiz

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
)

// ParseYAML decodes a YAML quiz document. The decoded tree is checked by the
// same schema as JSON documents, so a YAML file can never carry a shape the
// JSON path would reject.
func ParseYAML(data []byte) (Document, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return Document{}, apierr.Validation(apierr.Field("json", "malformed YAML: "+err.Error()))
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return Document{}, apierr.Validation(apierr.Field("json", "unsupported YAML document: "+err.Error()))
	}
	return ParseJSON(raw)
}

// ParseXLSX reads a quiz document from the first sheet of a workbook.
//
// Each row is one question: column A holds the question text, column B the
// 1-based number of the correct option and columns C onward the options.
// A first row whose column A reads "question" is treated as a header.
// Blank rows are skipped.
func ParseXLSX(r io.Reader) (Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Document{}, apierr.Validation(apierr.Field("file", "unreadable spreadsheet: "+err.Error()))
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return Document{}, apierr.Validation(apierr.Field("file", "spreadsheet has no sheets"))
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return Document{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var doc Document
	var problems []apierr.Problem
	for n, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if n == 0 && strings.EqualFold(strings.TrimSpace(cell(row, 0)), "question") {
			continue
		}

		idx := len(doc.Questions)
		q := Question{Question: cell(row, 0), CorrectAnswer: -1}
		if raw := strings.TrimSpace(cell(row, 1)); raw != "" {
			num, err := strconv.Atoi(raw)
			if err != nil {
				problems = append(problems, apierr.QuestionField(idx, "correctAnswer",
					fmt.Sprintf("row %d: correct option %q is not a number", n+1, raw)))
			} else {
				q.CorrectAnswer = num - 1
			}
		}
		for _, opt := range row[min(2, len(row)):] {
			if strings.TrimSpace(opt) == "" {
				continue
			}
			q.Options = append(q.Options, opt)
		}
		doc.Questions = append(doc.Questions, q)
	}
	if len(problems) > 0 {
		return Document{}, apierr.Validation(problems...)
	}
	return Validate(doc)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
