package content

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/quiz"
)

// Entity names used in errors and events.
const (
	EntityCourse  = "course"
	EntitySection = "section"
	EntityAsset   = "asset"
	EntityQuiz    = "quiz"
)

// Store is the persistence gateway over the content hierarchy.
//
// Create operations accept validated payloads and fail with
// *apierr.ReferentialIntegrityError when the parent does not exist. Get
// operations fail with *apierr.NotFoundError. Deletes are idempotent and
// remove every descendant of the deleted row. Lists without a parent filter
// are newest first; sections of a course are ordered by OrderIndex.
type Store interface {
	ListCourses(ctx context.Context) ([]Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	CreateCourse(ctx context.Context, in NewCourse) (Course, error)
	DeleteCourse(ctx context.Context, id string) error

	ListSections(ctx context.Context, courseID string) ([]Section, error)
	GetSection(ctx context.Context, id string) (Section, error)
	CreateSection(ctx context.Context, in NewSection) (Section, error)
	DeleteSection(ctx context.Context, id string) error

	ListAssets(ctx context.Context) ([]Asset, error)
	ListAssetsBySection(ctx context.Context, sectionID string) ([]Asset, error)
	GetAsset(ctx context.Context, id string) (Asset, error)
	CreateAsset(ctx context.Context, in NewAsset) (Asset, error)
	DeleteAsset(ctx context.Context, id string) error

	ListQuizzes(ctx context.Context) ([]Quiz, error)
	ListQuizzesBySection(ctx context.Context, sectionID string) ([]Quiz, error)
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	CreateQuiz(ctx context.Context, in NewQuiz) (Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
}

// MemoryStore is an in-memory Store. It has no foreign keys, so cascades are
// orchestrated explicitly: a section's assets and quizzes go first, then the
// section, then the course. Everything happens under one lock, so a create
// racing a delete either sees the parent or fails with a referential
// integrity error.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      uint64
	courses  map[string]*row[Course]
	sections map[string]*row[Section]
	assets   map[string]*row[Asset]
	quizzes  map[string]*row[Quiz]
	now      func() time.Time
}

// row pairs a value with its insertion sequence so that rows created within
// the same clock tick still sort deterministically.
type row[T any] struct {
	seq uint64
	val T
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses:  make(map[string]*row[Course]),
		sections: make(map[string]*row[Section]),
		assets:   make(map[string]*row[Asset]),
		quizzes:  make(map[string]*row[Quiz]),
		now:      time.Now,
	}
}

func (s *MemoryStore) next() uint64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) ListCourses(ctx context.Context) ([]Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.courses, func(Course) bool { return true }, func(c Course) time.Time { return c.CreatedAt }), nil
}

func (s *MemoryStore) GetCourse(ctx context.Context, id string) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.courses[id]
	if !ok {
		return Course{}, apierr.NotFound(EntityCourse, id)
	}
	return r.val, nil
}

func (s *MemoryStore) CreateCourse(ctx context.Context, in NewCourse) (Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Course{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		CreatedAt:   s.now(),
	}
	s.courses[c.ID] = &row[Course]{seq: s.next(), val: c}
	return c, nil
}

func (s *MemoryStore) DeleteCourse(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sid, r := range s.sections {
		if r.val.CourseID == id {
			s.deleteSectionLocked(sid)
		}
	}
	delete(s.courses, id)
	return nil
}

func (s *MemoryStore) ListSections(ctx context.Context, courseID string) ([]Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*row[Section], 0)
	for _, r := range s.sections {
		if r.val.CourseID == courseID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].val.OrderIndex != rows[j].val.OrderIndex {
			return rows[i].val.OrderIndex < rows[j].val.OrderIndex
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]Section, len(rows))
	for i, r := range rows {
		out[i] = r.val
	}
	return out, nil
}

func (s *MemoryStore) GetSection(ctx context.Context, id string) (Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.sections[id]
	if !ok {
		return Section{}, apierr.NotFound(EntitySection, id)
	}
	return r.val, nil
}

func (s *MemoryStore) CreateSection(ctx context.Context, in NewSection) (Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[in.CourseID]; !ok {
		return Section{}, &apierr.ReferentialIntegrityError{Entity: EntitySection, Parent: EntityCourse, ParentID: in.CourseID}
	}
	sec := Section{
		ID:         uuid.NewString(),
		CourseID:   in.CourseID,
		Title:      in.Title,
		OrderIndex: in.OrderIndex,
		CreatedAt:  s.now(),
	}
	s.sections[sec.ID] = &row[Section]{seq: s.next(), val: sec}
	return sec, nil
}

func (s *MemoryStore) DeleteSection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteSectionLocked(id)
	return nil
}

func (s *MemoryStore) deleteSectionLocked(id string) {
	for aid, r := range s.assets {
		if r.val.SectionID == id {
			delete(s.assets, aid)
		}
	}
	for qid, r := range s.quizzes {
		if r.val.SectionID == id {
			delete(s.quizzes, qid)
		}
	}
	delete(s.sections, id)
}

func (s *MemoryStore) ListAssets(ctx context.Context) ([]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(newestFirst(s.assets, func(Asset) bool { return true }, func(a Asset) time.Time { return a.CreatedAt }), cloneAsset), nil
}

func (s *MemoryStore) ListAssetsBySection(ctx context.Context, sectionID string) ([]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(newestFirst(s.assets, func(a Asset) bool { return a.SectionID == sectionID }, func(a Asset) time.Time { return a.CreatedAt }), cloneAsset), nil
}

func (s *MemoryStore) GetAsset(ctx context.Context, id string) (Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.assets[id]
	if !ok {
		return Asset{}, apierr.NotFound(EntityAsset, id)
	}
	return cloneAsset(r.val), nil
}

func (s *MemoryStore) CreateAsset(ctx context.Context, in NewAsset) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sections[in.SectionID]; !ok {
		return Asset{}, &apierr.ReferentialIntegrityError{Entity: EntityAsset, Parent: EntitySection, ParentID: in.SectionID}
	}
	a := Asset{
		ID:        uuid.NewString(),
		SectionID: in.SectionID,
		Type:      in.Type,
		Title:     in.Title,
		URL:       in.URL,
		Metadata:  cloneMetadata(in.Metadata),
		CreatedAt: s.now(),
	}
	s.assets[a.ID] = &row[Asset]{seq: s.next(), val: a}
	return cloneAsset(a), nil
}

func (s *MemoryStore) DeleteAsset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, id)
	return nil
}

func (s *MemoryStore) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(newestFirst(s.quizzes, func(Quiz) bool { return true }, func(q Quiz) time.Time { return q.CreatedAt }), cloneQuiz), nil
}

func (s *MemoryStore) ListQuizzesBySection(ctx context.Context, sectionID string) ([]Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(newestFirst(s.quizzes, func(q Quiz) bool { return q.SectionID == sectionID }, func(q Quiz) time.Time { return q.CreatedAt }), cloneQuiz), nil
}

func (s *MemoryStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.quizzes[id]
	if !ok {
		return Quiz{}, apierr.NotFound(EntityQuiz, id)
	}
	return cloneQuiz(r.val), nil
}

func (s *MemoryStore) CreateQuiz(ctx context.Context, in NewQuiz) (Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sections[in.SectionID]; !ok {
		return Quiz{}, &apierr.ReferentialIntegrityError{Entity: EntityQuiz, Parent: EntitySection, ParentID: in.SectionID}
	}
	q := Quiz{
		ID:          uuid.NewString(),
		SectionID:   in.SectionID,
		Title:       in.Title,
		Description: in.Description,
		Document:    cloneDocument(in.Document),
		CreatedAt:   s.now(),
	}
	s.quizzes[q.ID] = &row[Quiz]{seq: s.next(), val: q}
	return cloneQuiz(q), nil
}

func (s *MemoryStore) DeleteQuiz(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quizzes, id)
	return nil
}

func newestFirst[T any](rows map[string]*row[T], keep func(T) bool, created func(T) time.Time) []T {
	matched := make([]*row[T], 0, len(rows))
	for _, r := range rows {
		if keep(r.val) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		ti, tj := created(matched[i].val), created(matched[j].val)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return matched[i].seq > matched[j].seq
	})
	out := make([]T, len(matched))
	for i, r := range matched {
		out[i] = r.val
	}
	return out
}

// Rows handed out by MemoryStore never share maps or slices with the stored
// row, so callers cannot change stored content in place.

func cloneAll[T any](vals []T, clone func(T) T) []T {
	for i := range vals {
		vals[i] = clone(vals[i])
	}
	return vals
}

func cloneAsset(a Asset) Asset {
	a.Metadata = cloneMetadata(a.Metadata)
	return a
}

func cloneQuiz(q Quiz) Quiz {
	q.Document = cloneDocument(q.Document)
	return q
}

func cloneDocument(d quiz.Document) quiz.Document {
	if d.Questions == nil {
		return d
	}
	qs := make([]quiz.Question, len(d.Questions))
	for i, q := range d.Questions {
		q.Options = append([]string(nil), q.Options...)
		qs[i] = q
	}
	return quiz.Document{Questions: qs}
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMetadata(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
