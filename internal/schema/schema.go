// Package schema validates and normalizes creation payloads for courses,
// sections, assets and quizzes. It performs no I/O: every function is a pure
// function of its input, and every violated rule is reported together.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/quiz"
	"github.com/p-n-ai/pai-content/internal/textnorm"
)

type CourseInput struct {
	Title       string  `json:"title" yaml:"title" validate:"required"`
	Description *string `json:"description" yaml:"description"`
}

type SectionInput struct {
	CourseID   string `json:"courseId" yaml:"courseId" validate:"required"`
	Title      string `json:"title" yaml:"title" validate:"required"`
	OrderIndex *int   `json:"orderIndex" yaml:"orderIndex"`
}

type AssetInput struct {
	SectionID string         `json:"sectionId" yaml:"sectionId" validate:"required"`
	Type      string         `json:"type" yaml:"type" validate:"required,oneof=video_file video_link audio_file link"`
	Title     string         `json:"title" yaml:"title" validate:"required"`
	URL       string         `json:"url" yaml:"url" validate:"required"`
	Metadata  map[string]any `json:"metadata" yaml:"metadata"`
}

// QuizInput carries the quiz document as raw JSON so that structural errors
// in it are reported per question instead of failing the whole decode.
type QuizInput struct {
	SectionID   string          `json:"sectionId" validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	JSON        json.RawMessage `json:"json"`
}

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
})

// Course validates a course payload.
func Course(in CourseInput) (content.NewCourse, error) {
	in.Title = textnorm.Clean(in.Title)
	in.Description = textnorm.CleanPtr(in.Description)

	if err := apierr.Validation(check(in)...); err != nil {
		return content.NewCourse{}, err
	}
	return content.NewCourse{Title: in.Title, Description: in.Description}, nil
}

// Section validates a section payload. A missing orderIndex defaults to 0.
func Section(in SectionInput) (content.NewSection, error) {
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.Title = textnorm.Clean(in.Title)

	if err := apierr.Validation(check(in)...); err != nil {
		return content.NewSection{}, err
	}
	out := content.NewSection{CourseID: in.CourseID, Title: in.Title}
	if in.OrderIndex != nil {
		out.OrderIndex = *in.OrderIndex
	}
	return out, nil
}

// Asset validates an asset payload. Metadata is opaque and passed through.
func Asset(in AssetInput) (content.NewAsset, error) {
	in.SectionID = strings.TrimSpace(in.SectionID)
	in.Type = strings.TrimSpace(in.Type)
	in.Title = textnorm.Clean(in.Title)
	in.URL = strings.TrimSpace(in.URL)

	if err := apierr.Validation(check(in)...); err != nil {
		return content.NewAsset{}, err
	}
	return content.NewAsset{
		SectionID: in.SectionID,
		Type:      content.AssetType(in.Type),
		Title:     in.Title,
		URL:       in.URL,
		Metadata:  in.Metadata,
	}, nil
}

// Quiz validates quiz metadata and its document in one pass. Metadata
// problems and document problems are returned together.
func Quiz(in QuizInput) (content.NewQuiz, error) {
	in.SectionID = strings.TrimSpace(in.SectionID)
	in.Title = textnorm.Clean(in.Title)
	in.Description = textnorm.Clean(in.Description)

	problems := check(in)
	doc, err := quiz.ParseJSON(in.JSON)
	if err != nil {
		if !apierr.IsValidation(err) {
			return content.NewQuiz{}, err
		}
		problems = append(problems, documentProblems(err)...)
	}
	if err := apierr.Validation(problems...); err != nil {
		return content.NewQuiz{}, err
	}
	return content.NewQuiz{
		SectionID:   in.SectionID,
		Title:       in.Title,
		Description: in.Description,
		Document:    doc,
	}, nil
}

// QuizMeta validates quiz metadata alone, for callers that parse the
// document from another source.
func QuizMeta(in QuizInput) error {
	in.SectionID = strings.TrimSpace(in.SectionID)
	in.Title = textnorm.Clean(in.Title)
	in.Description = textnorm.Clean(in.Description)
	return apierr.Validation(check(in)...)
}

// QuizDocument validates metadata for a quiz whose document was already
// parsed, e.g. from an imported file.
func QuizDocument(in QuizInput, doc quiz.Document) (content.NewQuiz, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return content.NewQuiz{}, fmt.Errorf("marshal quiz document: %w", err)
	}
	in.JSON = raw
	return Quiz(in)
}

func check(v any) []apierr.Problem {
	err := validate().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apierr.Problem{apierr.Field("payload", err.Error())}
	}
	problems := make([]apierr.Problem, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, apierr.Field(fe.Field(), messageFor(fe)))
	}
	return problems
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}

// documentProblems scopes root-level document problems under "json" so they
// cannot be confused with quiz metadata fields.
func documentProblems(err error) []apierr.Problem {
	src := apierr.Problems(err)
	out := make([]apierr.Problem, len(src))
	for i, p := range src {
		if p.Question == nil && p.Field != "json" {
			p.Field = "json." + p.Field
		}
		out[i] = p
	}
	return out
}
