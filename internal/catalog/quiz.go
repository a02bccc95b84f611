package catalog

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/quiz"
	"github.com/p-n-ai/pai-content/internal/schema"
)

// maxImportBytes bounds YAML and JSON quiz files read into memory.
const maxImportBytes = 4 << 20

// GradeQuiz scores answers against a stored quiz. Nothing about the attempt
// is kept.
func (s *Service) GradeQuiz(ctx context.Context, id string, answers quiz.Answers) (quiz.Result, error) {
	q, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return quiz.Result{}, err
	}
	return quiz.Grade(q.Document, answers), nil
}

// ImportQuiz creates a quiz whose document is read from a file. The format
// follows the file extension: .xlsx, .yaml, .yml or .json. Metadata and
// document problems are reported together.
func (s *Service) ImportQuiz(ctx context.Context, meta schema.QuizInput, filename string, r io.Reader) (content.Quiz, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var doc quiz.Document
	var docErr error
	switch ext {
	case ".xlsx":
		doc, docErr = quiz.ParseXLSX(r)
	case ".yaml", ".yml", ".json":
		data, err := io.ReadAll(io.LimitReader(r, maxImportBytes+1))
		if err != nil {
			return content.Quiz{}, fmt.Errorf("read quiz file: %w", err)
		}
		if len(data) > maxImportBytes {
			docErr = apierr.Validation(apierr.Field("file", fmt.Sprintf("quiz file exceeds %d bytes", maxImportBytes)))
		} else if ext == ".json" {
			doc, docErr = quiz.ParseJSON(data)
		} else {
			doc, docErr = quiz.ParseYAML(data)
		}
	default:
		docErr = apierr.Validation(apierr.Field("file", fmt.Sprintf("unsupported quiz file type %q (want .xlsx, .yaml, .yml or .json)", ext)))
	}
	if docErr != nil && !apierr.IsValidation(docErr) {
		return content.Quiz{}, docErr
	}

	if docErr != nil {
		problems := apierr.Problems(schema.QuizMeta(meta))
		problems = append(problems, apierr.Problems(docErr)...)
		return content.Quiz{}, apierr.Validation(problems...)
	}

	nq, err := schema.QuizDocument(meta, doc)
	if err != nil {
		return content.Quiz{}, err
	}
	return s.storeQuiz(ctx, nq, strings.TrimPrefix(ext, "."))
}
