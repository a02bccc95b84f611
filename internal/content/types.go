// Package content holds the course hierarchy (course → section → asset/quiz)
// and the persistence gateway over it.
package content

import (
	"time"

	"github.com/p-n-ai/pai-content/internal/quiz"
)

// AssetType is the closed set of asset variants.
type AssetType string

const (
	AssetVideoFile AssetType = "video_file"
	AssetVideoLink AssetType = "video_link"
	AssetAudioFile AssetType = "audio_file"
	AssetLink      AssetType = "link"
)

// AssetTypes lists every valid AssetType.
var AssetTypes = []AssetType{AssetVideoFile, AssetVideoLink, AssetAudioFile, AssetLink}

// Valid reports whether t is one of the known variants.
func (t AssetType) Valid() bool {
	switch t {
	case AssetVideoFile, AssetVideoLink, AssetAudioFile, AssetLink:
		return true
	default:
		return false
	}
}

// IsUploaded reports whether assets of this type point at an object
// transferred through an upload grant rather than an external link.
func (t AssetType) IsUploaded() bool {
	return t == AssetVideoFile || t == AssetAudioFile
}

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Section struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"courseId"`
	Title      string    `json:"title"`
	OrderIndex int       `json:"orderIndex"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Asset struct {
	ID        string         `json:"id"`
	SectionID string         `json:"sectionId"`
	Type      AssetType      `json:"type"`
	Title     string         `json:"title"`
	URL       string         `json:"url"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Quiz struct {
	ID          string        `json:"id"`
	SectionID   string        `json:"sectionId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Document    quiz.Document `json:"json"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// The New* types carry payloads that have already been validated and
// normalized. Stores trust them and only check parent existence.

type NewCourse struct {
	Title       string
	Description *string
}

type NewSection struct {
	CourseID   string
	Title      string
	OrderIndex int
}

type NewAsset struct {
	SectionID string
	Type      AssetType
	Title     string
	URL       string
	Metadata  map[string]any
}

type NewQuiz struct {
	SectionID   string
	Title       string
	Description string
	Document    quiz.Document
}
