// Package apierr defines the error taxonomy shared by the content service:
// validation, referential integrity, not found and upstream storage failures.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Codes used in error envelopes.
const (
	CodeValidation           = "validation_error"
	CodeReferentialIntegrity = "referential_integrity"
	CodeNotFound             = "not_found"
	CodeUpstream             = "upstream_storage"
	CodeInternal             = "internal"
)

// Problem is a single violated field rule.
type Problem struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Question *int   `json:"question,omitempty"`
}

func (p Problem) String() string {
	if p.Question != nil {
		return fmt.Sprintf("question %d: %s: %s", *p.Question, p.Field, p.Message)
	}
	return fmt.Sprintf("%s: %s", p.Field, p.Message)
}

// ValidationError lists every rule a payload violated.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validation builds a ValidationError from problems. It returns nil when
// there are none so callers can return it directly.
func Validation(problems ...Problem) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// Field is shorthand for a problem that is not tied to a quiz question.
func Field(field, message string) Problem {
	return Problem{Field: field, Message: message}
}

// QuestionField is shorthand for a problem on question index i.
func QuestionField(i int, field, message string) Problem {
	idx := i
	return Problem{Field: field, Message: message, Question: &idx}
}

// ReferentialIntegrityError reports a write against a parent that does not exist.
type ReferentialIntegrityError struct {
	Entity   string
	Parent   string
	ParentID string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s references missing %s %q", e.Entity, e.Parent, e.ParentID)
}

// NotFoundError reports a read by id with no matching row.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// NotFound returns a NotFoundError for entity/id.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// UpstreamError wraps a failure of the relational store or object store.
// It is never retried by this service.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return e.Op + ": upstream storage error"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError. A nil err stays nil, and errors that
// are already classified pass through untouched.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsValidation(err) || IsReferentialIntegrity(err) || IsUpstream(err) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsReferentialIntegrity(err error) bool {
	var target *ReferentialIntegrityError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// Status maps err to an HTTP status and envelope code.
func Status(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case IsValidation(err):
		return http.StatusBadRequest, CodeValidation
	case IsReferentialIntegrity(err):
		return http.StatusUnprocessableEntity, CodeReferentialIntegrity
	case IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case IsUpstream(err):
		return http.StatusBadGateway, CodeUpstream
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Problems returns the field problems carried by err, if any.
func Problems(err error) []Problem {
	var target *ValidationError
	if errors.As(err, &target) {
		return target.Problems
	}
	return nil
}
