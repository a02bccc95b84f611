package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/platform/cache"
)

// CourseContent is the nested read model of one course.
type CourseContent struct {
	content.Course
	Sections []SectionContent `json:"sections"`
}

// SectionContent is a section with its assets and quizzes, newest first.
type SectionContent struct {
	content.Section
	Assets  []content.Asset `json:"assets"`
	Quizzes []content.Quiz  `json:"quizzes"`
}

// TreeCache holds assembled course trees. Every write under a course calls
// Invalidate, which moves the course generation on. Set stores a tree only
// while the generation read before it was assembled is still current, so a
// tree built from reads that raced a write is never stored.
type TreeCache interface {
	Get(ctx context.Context, courseID string) (CourseContent, bool, error)
	Generation(ctx context.Context, courseID string) (int64, error)
	Set(ctx context.Context, tree CourseContent, gen int64) error
	Invalidate(ctx context.Context, courseID string) error
}

// NopTreeCache never stores anything.
type NopTreeCache struct{}

func (NopTreeCache) Get(context.Context, string) (CourseContent, bool, error) {
	return CourseContent{}, false, nil
}

func (NopTreeCache) Generation(context.Context, string) (int64, error) {
	return 0, nil
}

func (NopTreeCache) Set(context.Context, CourseContent, int64) error {
	return nil
}

func (NopTreeCache) Invalidate(context.Context, string) error {
	return nil
}

// RedisTreeCache stores trees as JSON in Redis/Dragonfly, guarded by a
// per-course generation counter.
type RedisTreeCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewRedisTreeCache(c *cache.Cache, ttl time.Duration) *RedisTreeCache {
	return &RedisTreeCache{cache: c, ttl: ttl}
}

func treeKey(courseID string) string {
	return "course:tree:" + courseID
}

// The generation key has no TTL so that it cannot reset while a tree built
// at an older generation is still being assembled.
func generationKey(courseID string) string {
	return "course:tree:gen:" + courseID
}

func (r *RedisTreeCache) Get(ctx context.Context, courseID string) (CourseContent, bool, error) {
	var tree CourseContent
	found, err := r.cache.GetJSON(ctx, treeKey(courseID), &tree)
	if err != nil || !found {
		return CourseContent{}, false, err
	}
	return tree, true, nil
}

func (r *RedisTreeCache) Generation(ctx context.Context, courseID string) (int64, error) {
	return r.cache.Generation(ctx, generationKey(courseID))
}

func (r *RedisTreeCache) Set(ctx context.Context, tree CourseContent, gen int64) error {
	stored, err := r.cache.SetJSONAt(ctx, generationKey(tree.ID), gen, treeKey(tree.ID), tree, r.ttl)
	if err != nil {
		return err
	}
	if !stored {
		slog.Debug("course tree outdated before caching", "course_id", tree.ID, "generation", gen)
	}
	return nil
}

func (r *RedisTreeCache) Invalidate(ctx context.Context, courseID string) error {
	return r.cache.Bump(ctx, generationKey(courseID), treeKey(courseID))
}
