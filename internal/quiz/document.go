// Package quiz holds the quiz document model: its validation, its import
// formats and the stateless grading engine.
package quiz

// Question is a single multiple-choice question. CorrectAnswer indexes Options.
type Question struct {
	Question      string   `json:"question" yaml:"question"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer int      `json:"correctAnswer" yaml:"correctAnswer"`
}

// Document is the question set embedded in a quiz. A Document obtained from
// ParseJSON, ParseYAML, ParseXLSX or Validate always satisfies its invariants:
// at least one question, at least two options per question and an in-range
// correct answer.
type Document struct {
	Questions []Question `json:"questions" yaml:"questions"`
}

// Len returns the number of questions.
func (d Document) Len() int { return len(d.Questions) }
