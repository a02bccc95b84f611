package quiz

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/textnorm"
)

//go:embed document.schema.json
var documentSchemaJSON []byte

var documentSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchemaJSON))
})

// ParseJSON validates raw as a quiz document and returns the normalized
// document. Every violated rule is reported in a single *apierr.ValidationError,
// with the offending question index where one applies.
func ParseJSON(raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Document{}, apierr.Validation(apierr.Field("json", "quiz document is required"))
	}

	schema, err := documentSchema()
	if err != nil {
		return Document{}, fmt.Errorf("compile quiz document schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Document{}, apierr.Validation(apierr.Field("json", "malformed JSON: "+err.Error()))
	}

	var problems []apierr.Problem
	structural := map[int]map[string]bool{}
	for _, re := range result.Errors() {
		p := problemFor(re)
		problems = append(problems, p)
		if p.Question != nil {
			if structural[*p.Question] == nil {
				structural[*p.Question] = map[string]bool{}
			}
			structural[*p.Question][rootField(p.Field)] = true
		}
	}

	var envelope struct {
		Questions []json.RawMessage `json:"questions"`
	}
	var doc Document
	if err := json.Unmarshal(raw, &envelope); err != nil && len(problems) == 0 {
		problems = append(problems, apierr.Field("questions", "malformed quiz document: "+err.Error()))
	}
	for i, rq := range envelope.Questions {
		bad := structural[i]
		q, err := decodeQuestion(rq)
		if err != nil {
			// Every question must either decode or carry a problem.
			if len(bad) == 0 {
				problems = append(problems, apierr.QuestionField(i, "question", "malformed question: "+err.Error()))
			}
			continue
		}
		if !bad["question"] && q.Question == "" {
			problems = append(problems, apierr.QuestionField(i, "question", "question text is required"))
		}
		if !bad["correctAnswer"] {
			idx, ok := answerIndex(q.CorrectAnswer)
			switch {
			case !ok:
				problems = append(problems, apierr.QuestionField(i, "correctAnswer",
					fmt.Sprintf("correct answer %s is not a valid option index", q.CorrectAnswer)))
			case !bad["options"] && idx >= len(q.Options):
				problems = append(problems, apierr.QuestionField(i, "correctAnswer",
					fmt.Sprintf("correct answer index %d must be within options range (0-%d)", idx, len(q.Options)-1)))
			default:
				doc.Questions = append(doc.Questions, Question{
					Question:      q.Question,
					Options:       q.Options,
					CorrectAnswer: idx,
				})
			}
		}
	}
	if len(problems) == 0 && len(doc.Questions) != len(envelope.Questions) {
		return Document{}, fmt.Errorf("quiz document decoded %d of %d questions", len(doc.Questions), len(envelope.Questions))
	}

	if len(problems) > 0 {
		sortProblems(problems)
		return Document{}, apierr.Validation(problems...)
	}
	return doc, nil
}

// Validate runs an in-memory document through the same rules as ParseJSON.
func Validate(doc Document) (Document, error) {
	if doc.Questions == nil {
		doc.Questions = []Question{}
	}
	for i := range doc.Questions {
		if doc.Questions[i].Options == nil {
			doc.Questions[i].Options = []string{}
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return Document{}, fmt.Errorf("marshal quiz document: %w", err)
	}
	return ParseJSON(raw)
}

// wireQuestion keeps correctAnswer as written so that integral floats such
// as 1.0 or 1e0, which the schema accepts as integers, are converted
// explicitly instead of failing the decode.
type wireQuestion struct {
	Question      string      `json:"question"`
	Options       []string    `json:"options"`
	CorrectAnswer json.Number `json:"correctAnswer"`
}

func decodeQuestion(raw json.RawMessage) (wireQuestion, error) {
	var q wireQuestion
	if err := json.Unmarshal(raw, &q); err != nil {
		return wireQuestion{}, err
	}
	q.Question = textnorm.Clean(q.Question)
	for i, o := range q.Options {
		q.Options[i] = textnorm.Clean(o)
	}
	if q.Options == nil {
		q.Options = []string{}
	}
	return q, nil
}

// maxAnswerIndex bounds correctAnswer well below any platform int limit.
const maxAnswerIndex = math.MaxInt32

// answerIndex converts a correctAnswer literal to an option index. Only
// non-negative integral values up to maxAnswerIndex are accepted.
func answerIndex(n json.Number) (int, bool) {
	if i, err := n.Int64(); err == nil {
		return int(i), i >= 0 && i <= maxAnswerIndex
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < 0 || f > maxAnswerIndex {
		return 0, false
	}
	return int(f), true
}

func problemFor(re gojsonschema.ResultError) apierr.Problem {
	segments := splitField(re.Field())
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			if len(segments) == 0 || segments[len(segments)-1] != prop {
				segments = append(segments, prop)
			}
		}
	}

	if len(segments) >= 2 && segments[0] == "questions" {
		if idx, err := strconv.Atoi(segments[1]); err == nil {
			field := strings.Join(segments[2:], ".")
			if field == "" {
				field = "questions"
			}
			return apierr.QuestionField(idx, field, messageFor(re, field))
		}
	}

	field := strings.Join(segments, ".")
	if field == "" {
		field = "json"
	}
	return apierr.Field(field, messageFor(re, field))
}

func splitField(field string) []string {
	field = strings.TrimPrefix(field, "(root)")
	field = strings.TrimPrefix(field, ".")
	if field == "" {
		return nil
	}
	return strings.Split(field, ".")
}

func messageFor(re gojsonschema.ResultError, field string) string {
	switch re.Type() {
	case "required":
		return "is required"
	case "array_min_items":
		switch field {
		case "questions":
			return "at least 1 question required"
		case "options":
			return "at least 2 options required"
		}
	case "string_gte":
		if field == "question" {
			return "question text is required"
		}
	case "number_gte":
		if field == "correctAnswer" {
			return "correct answer index must not be negative"
		}
	}
	return re.Description()
}

func rootField(field string) string {
	if i := strings.IndexByte(field, '.'); i >= 0 {
		return field[:i]
	}
	return field
}

func sortProblems(problems []apierr.Problem) {
	sort.SliceStable(problems, func(i, j int) bool {
		a, b := problems[i], problems[j]
		switch {
		case a.Question == nil && b.Question != nil:
			return true
		case a.Question != nil && b.Question == nil:
			return false
		case a.Question != nil && b.Question != nil && *a.Question != *b.Question:
			return *a.Question < *b.Question
		}
		return a.Field < b.Field
	})
}
