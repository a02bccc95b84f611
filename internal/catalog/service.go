// Package catalog is the application service over the content hierarchy.
// Every write is validated before it reaches the store, and every successful
// create or delete is recorded in the event log and invalidates the cached
// tree of the affected course.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/schema"
)

const defaultFanOut = 8

// URLNormalizer canonicalizes asset URLs before they are stored.
type URLNormalizer interface {
	Normalize(raw string) string
}

type passthrough struct{}

func (passthrough) Normalize(raw string) string { return raw }

// ServiceConfig holds dependencies for the catalog service.
type ServiceConfig struct {
	Store      content.Store
	Events     content.EventLog
	Cache      TreeCache
	Normalizer URLNormalizer
	FanOut     int // concurrent section fetches per tree (default 8)
}

type Service struct {
	store      content.Store
	events     content.EventLog
	cache      TreeCache
	normalizer URLNormalizer
	fanOut     int
}

// NewService creates a catalog service. A nil store falls back to an
// in-memory one; nil collaborators become no-ops.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = content.NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = content.NopEventLog{}
	}
	tc := cfg.Cache
	if tc == nil {
		tc = NopTreeCache{}
	}
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = passthrough{}
	}
	fanOut := cfg.FanOut
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	return &Service{
		store:      store,
		events:     events,
		cache:      tc,
		normalizer: normalizer,
		fanOut:     fanOut,
	}
}

func (s *Service) ListCourses(ctx context.Context) ([]content.Course, error) {
	return s.store.ListCourses(ctx)
}

func (s *Service) GetCourse(ctx context.Context, id string) (content.Course, error) {
	return s.store.GetCourse(ctx, id)
}

// CourseWithContent assembles a course, its sections by orderIndex and each
// section's assets and quizzes. Sections are fetched concurrently and the
// result is returned only once every fetch has finished.
func (s *Service) CourseWithContent(ctx context.Context, id string) (CourseContent, error) {
	if tree, ok, err := s.cache.Get(ctx, id); err != nil {
		slog.Warn("course tree cache read failed", "course_id", id, "error", err)
	} else if ok {
		return tree, nil
	}

	// Read the generation before the store so that a write committing during
	// assembly keeps this tree out of the cache.
	gen, genErr := s.cache.Generation(ctx, id)
	if genErr != nil {
		slog.Warn("course tree cache generation read failed", "course_id", id, "error", genErr)
	}

	course, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return CourseContent{}, err
	}
	sections, err := s.store.ListSections(ctx, id)
	if err != nil {
		return CourseContent{}, err
	}

	tree := CourseContent{
		Course:   course,
		Sections: make([]SectionContent, len(sections)),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for i, sec := range sections {
		g.Go(func() error {
			assets, err := s.store.ListAssetsBySection(gctx, sec.ID)
			if err != nil {
				return fmt.Errorf("assets of section %s: %w", sec.ID, err)
			}
			quizzes, err := s.store.ListQuizzesBySection(gctx, sec.ID)
			if err != nil {
				return fmt.Errorf("quizzes of section %s: %w", sec.ID, err)
			}
			tree.Sections[i] = SectionContent{Section: sec, Assets: assets, Quizzes: quizzes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CourseContent{}, apierr.Upstream("assemble course", err)
	}

	if genErr == nil {
		if err := s.cache.Set(ctx, tree, gen); err != nil {
			slog.Warn("course tree cache write failed", "course_id", id, "error", err)
		}
	}
	return tree, nil
}

func (s *Service) CreateCourse(ctx context.Context, in schema.CourseInput) (content.Course, error) {
	nc, err := schema.Course(in)
	if err != nil {
		return content.Course{}, err
	}
	c, err := s.store.CreateCourse(ctx, nc)
	if err != nil {
		return content.Course{}, err
	}
	s.record(ctx, content.EntityCourse, c.ID, content.EventCreated, map[string]any{"title": c.Title})
	return c, nil
}

// DeleteCourse removes a course and everything under it. Deleting a missing
// course succeeds.
func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	c, err := s.store.GetCourse(ctx, id)
	if apierr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.DeleteCourse(ctx, id); err != nil {
		return err
	}
	s.record(ctx, content.EntityCourse, id, content.EventDeleted, map[string]any{"title": c.Title})
	s.invalidate(ctx, id)
	return nil
}

// ListSections returns the sections of a course by orderIndex. The course id
// is required.
func (s *Service) ListSections(ctx context.Context, courseID string) ([]content.Section, error) {
	if courseID == "" {
		return nil, apierr.Validation(apierr.Field("courseId", "is required"))
	}
	return s.store.ListSections(ctx, courseID)
}

func (s *Service) GetSection(ctx context.Context, id string) (content.Section, error) {
	return s.store.GetSection(ctx, id)
}

func (s *Service) CreateSection(ctx context.Context, in schema.SectionInput) (content.Section, error) {
	ns, err := schema.Section(in)
	if err != nil {
		return content.Section{}, err
	}
	sec, err := s.store.CreateSection(ctx, ns)
	if err != nil {
		return content.Section{}, err
	}
	s.record(ctx, content.EntitySection, sec.ID, content.EventCreated, map[string]any{"course_id": sec.CourseID})
	s.invalidate(ctx, sec.CourseID)
	return sec, nil
}

func (s *Service) DeleteSection(ctx context.Context, id string) error {
	sec, err := s.store.GetSection(ctx, id)
	if apierr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.DeleteSection(ctx, id); err != nil {
		return err
	}
	s.record(ctx, content.EntitySection, id, content.EventDeleted, map[string]any{"course_id": sec.CourseID})
	s.invalidate(ctx, sec.CourseID)
	return nil
}

// ListAssets lists assets newest first, optionally limited to one section.
func (s *Service) ListAssets(ctx context.Context, sectionID string) ([]content.Asset, error) {
	if sectionID == "" {
		return s.store.ListAssets(ctx)
	}
	return s.store.ListAssetsBySection(ctx, sectionID)
}

func (s *Service) GetAsset(ctx context.Context, id string) (content.Asset, error) {
	return s.store.GetAsset(ctx, id)
}

// CreateAsset validates the payload, canonicalizes its URL and stores it.
func (s *Service) CreateAsset(ctx context.Context, in schema.AssetInput) (content.Asset, error) {
	na, err := schema.Asset(in)
	if err != nil {
		return content.Asset{}, err
	}
	na.URL = s.normalizer.Normalize(na.URL)

	a, err := s.store.CreateAsset(ctx, na)
	if err != nil {
		return content.Asset{}, err
	}
	s.record(ctx, content.EntityAsset, a.ID, content.EventCreated, map[string]any{
		"section_id": a.SectionID,
		"type":       string(a.Type),
	})
	s.invalidateSection(ctx, a.SectionID)
	return a, nil
}

func (s *Service) DeleteAsset(ctx context.Context, id string) error {
	a, err := s.store.GetAsset(ctx, id)
	if apierr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.DeleteAsset(ctx, id); err != nil {
		return err
	}
	s.record(ctx, content.EntityAsset, id, content.EventDeleted, map[string]any{"section_id": a.SectionID})
	s.invalidateSection(ctx, a.SectionID)
	return nil
}

// ListQuizzes lists quizzes newest first, optionally limited to one section.
func (s *Service) ListQuizzes(ctx context.Context, sectionID string) ([]content.Quiz, error) {
	if sectionID == "" {
		return s.store.ListQuizzes(ctx)
	}
	return s.store.ListQuizzesBySection(ctx, sectionID)
}

func (s *Service) GetQuiz(ctx context.Context, id string) (content.Quiz, error) {
	return s.store.GetQuiz(ctx, id)
}

func (s *Service) CreateQuiz(ctx context.Context, in schema.QuizInput) (content.Quiz, error) {
	nq, err := schema.Quiz(in)
	if err != nil {
		return content.Quiz{}, err
	}
	return s.storeQuiz(ctx, nq, "json")
}

func (s *Service) storeQuiz(ctx context.Context, nq content.NewQuiz, source string) (content.Quiz, error) {
	q, err := s.store.CreateQuiz(ctx, nq)
	if err != nil {
		return content.Quiz{}, err
	}
	s.record(ctx, content.EntityQuiz, q.ID, content.EventCreated, map[string]any{
		"section_id": q.SectionID,
		"questions":  q.Document.Len(),
		"source":     source,
	})
	s.invalidateSection(ctx, q.SectionID)
	return q, nil
}

func (s *Service) DeleteQuiz(ctx context.Context, id string) error {
	q, err := s.store.GetQuiz(ctx, id)
	if apierr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.DeleteQuiz(ctx, id); err != nil {
		return err
	}
	s.record(ctx, content.EntityQuiz, id, content.EventDeleted, map[string]any{"section_id": q.SectionID})
	s.invalidateSection(ctx, q.SectionID)
	return nil
}

// record appends a lifecycle event. The write it describes has already
// committed, so a failing event log is logged and otherwise ignored.
func (s *Service) record(ctx context.Context, entity, id, action string, data map[string]any) {
	err := s.events.Record(ctx, content.Event{Entity: entity, EntityID: id, Action: action, Data: data})
	if err != nil {
		slog.Warn("failed to record content event",
			"entity", entity,
			"entity_id", id,
			"action", action,
			"error", err,
		)
	}
}

func (s *Service) invalidate(ctx context.Context, courseID string) {
	if err := s.cache.Invalidate(ctx, courseID); err != nil {
		slog.Warn("course tree cache invalidation failed", "course_id", courseID, "error", err)
	}
}

func (s *Service) invalidateSection(ctx context.Context, sectionID string) {
	sec, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		// The section is gone, and the course delete that removed it has
		// already invalidated the tree.
		return
	}
	s.invalidate(ctx, sec.CourseID)
}
