package seed

import "github.com/p-n-ai/pai-content/internal/quiz"

// Catalog is one course described in a seed YAML file.
type Catalog struct {
	Course   CourseSpec    `yaml:"course"`
	Sections []SectionSpec `yaml:"sections"`

	// path is the file the catalog was read from.
	path string
}

// Path returns the file the catalog was loaded from.
func (c Catalog) Path() string {
	return c.path
}

type CourseSpec struct {
	Title       string  `yaml:"title"`
	Description *string `yaml:"description"`
}

// SectionSpec is a section with its content. A missing order_index falls
// back to the section's position in the file.
type SectionSpec struct {
	Title      string      `yaml:"title"`
	OrderIndex *int        `yaml:"order_index"`
	Assets     []AssetSpec `yaml:"assets"`
	Quizzes    []QuizSpec  `yaml:"quizzes"`
}

type AssetSpec struct {
	Type     string         `yaml:"type"`
	Title    string         `yaml:"title"`
	URL      string         `yaml:"url"`
	Metadata map[string]any `yaml:"metadata"`
}

// QuizSpec carries its questions inline or points at a quiz file (.xlsx,
// .yaml, .yml or .json) relative to the catalog file.
type QuizSpec struct {
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Questions   []quiz.Question `yaml:"questions"`
	File        string          `yaml:"file"`
}
