package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/p-n-ai/pai-content/internal/catalog"
	"github.com/p-n-ai/pai-content/internal/quiz"
	"github.com/p-n-ai/pai-content/internal/schema"
	"github.com/p-n-ai/pai-content/internal/textnorm"
)

// Result summarizes an import run.
type Result struct {
	Created int
	Skipped int
	Failed  int
}

// Import creates every catalog whose course title is not already present.
// A catalog that fails part way is rolled back by deleting its course, and
// the remaining catalogs are still imported. The returned error joins the
// failures of every catalog.
func Import(ctx context.Context, svc *catalog.Service, catalogs []Catalog) (Result, error) {
	var res Result

	existing, err := svc.ListCourses(ctx)
	if err != nil {
		return res, fmt.Errorf("list courses: %w", err)
	}
	titles := make(map[string]bool, len(existing))
	for _, c := range existing {
		titles[c.Title] = true
	}

	var errs []error
	for _, c := range catalogs {
		title := textnorm.Clean(c.Course.Title)
		if titles[title] {
			slog.Debug("seed catalog already imported", "path", c.path, "title", title)
			res.Skipped++
			continue
		}
		if err := importCatalog(ctx, svc, c); err != nil {
			slog.Error("seed catalog import failed", "path", c.path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.path, err))
			res.Failed++
			continue
		}
		titles[title] = true
		res.Created++
	}

	slog.Info("seed import finished",
		"created", res.Created,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, errors.Join(errs...)
}

func importCatalog(ctx context.Context, svc *catalog.Service, c Catalog) (err error) {
	course, err := svc.CreateCourse(ctx, schema.CourseInput{
		Title:       c.Course.Title,
		Description: c.Course.Description,
	})
	if err != nil {
		return fmt.Errorf("course: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if delErr := svc.DeleteCourse(ctx, course.ID); delErr != nil {
			err = errors.Join(err, fmt.Errorf("roll back course %s: %w", course.ID, delErr))
		}
	}()

	for i, s := range c.Sections {
		order := i
		if s.OrderIndex != nil {
			order = *s.OrderIndex
		}
		section, err := svc.CreateSection(ctx, schema.SectionInput{CourseID: course.ID, Title: s.Title, OrderIndex: &order})
		if err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}

		for j, a := range s.Assets {
			_, err := svc.CreateAsset(ctx, schema.AssetInput{
				SectionID: section.ID,
				Type:      a.Type,
				Title:     a.Title,
				URL:       a.URL,
				Metadata:  a.Metadata,
			})
			if err != nil {
				return fmt.Errorf("section %d asset %d: %w", i, j, err)
			}
		}

		for j, q := range s.Quizzes {
			if err := importQuiz(ctx, svc, c, section.ID, q); err != nil {
				return fmt.Errorf("section %d quiz %d: %w", i, j, err)
			}
		}
	}
	return nil
}

func importQuiz(ctx context.Context, svc *catalog.Service, c Catalog, sectionID string, q QuizSpec) error {
	meta := schema.QuizInput{SectionID: sectionID, Title: q.Title, Description: q.Description}

	if q.File != "" {
		path := q.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(c.path), path)
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open quiz file: %w", err)
		}
		defer f.Close()
		_, err = svc.ImportQuiz(ctx, meta, path, f)
		return err
	}

	raw, err := json.Marshal(quiz.Document{Questions: q.Questions})
	if err != nil {
		return fmt.Errorf("encode quiz document: %w", err)
	}
	meta.JSON = raw
	_, err = svc.CreateQuiz(ctx, meta)
	return err
}
