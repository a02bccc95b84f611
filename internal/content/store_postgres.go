package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
)

const (
	dbTimeout = 5 * time.Second

	pgForeignKeyViolation = "23503"
)

// PostgresStore is a PostgreSQL-backed Store. Cascading deletes are enforced
// by ON DELETE CASCADE foreign keys (see database.Migrate), and parent
// existence on create is enforced by the same constraints.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store over pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const (
	courseColumns  = `id, title, description, created_at`
	sectionColumns = `id, course_id, title, order_index, created_at`
	assetColumns   = `id, section_id, type, title, url, metadata, created_at`
	quizColumns    = `id, section_id, title, description, json, created_at`
)

func (s *PostgresStore) ListCourses(ctx context.Context) ([]Course, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, apierr.Upstream("list courses", err)
	}
	return collect(rows, scanCourse, "list courses")
}

func (s *PostgresStore) GetCourse(ctx context.Context, id string) (Course, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanCourse(s.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if err != nil {
		return Course{}, notFoundOr(err, EntityCourse, id, "get course")
	}
	return c, nil
}

func (s *PostgresStore) CreateCourse(ctx context.Context, in NewCourse) (Course, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanCourse(s.pool.QueryRow(ctx,
		`INSERT INTO courses (id, title, description)
		 VALUES ($1, $2, $3)
		 RETURNING `+courseColumns,
		uuid.NewString(),
		in.Title,
		in.Description,
	))
	if err != nil {
		return Course{}, apierr.Upstream("create course", err)
	}
	return c, nil
}

func (s *PostgresStore) DeleteCourse(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `DELETE FROM courses WHERE id = $1`, id, "delete course")
}

func (s *PostgresStore) ListSections(ctx context.Context, courseID string) ([]Section, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+sectionColumns+`
		 FROM sections
		 WHERE course_id = $1
		 ORDER BY order_index ASC, created_at ASC, id ASC`,
		courseID,
	)
	if err != nil {
		return nil, apierr.Upstream("list sections", err)
	}
	return collect(rows, scanSection, "list sections")
}

func (s *PostgresStore) GetSection(ctx context.Context, id string) (Section, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sec, err := scanSection(s.pool.QueryRow(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id = $1`, id))
	if err != nil {
		return Section{}, notFoundOr(err, EntitySection, id, "get section")
	}
	return sec, nil
}

func (s *PostgresStore) CreateSection(ctx context.Context, in NewSection) (Section, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sec, err := scanSection(s.pool.QueryRow(ctx,
		`INSERT INTO sections (id, course_id, title, order_index)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+sectionColumns,
		uuid.NewString(),
		in.CourseID,
		in.Title,
		in.OrderIndex,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return Section{}, &apierr.ReferentialIntegrityError{Entity: EntitySection, Parent: EntityCourse, ParentID: in.CourseID}
		}
		return Section{}, apierr.Upstream("create section", err)
	}
	return sec, nil
}

func (s *PostgresStore) DeleteSection(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `DELETE FROM sections WHERE id = $1`, id, "delete section")
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, apierr.Upstream("list assets", err)
	}
	return collect(rows, scanAsset, "list assets")
}

func (s *PostgresStore) ListAssetsBySection(ctx context.Context, sectionID string) ([]Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+assetColumns+`
		 FROM assets
		 WHERE section_id = $1
		 ORDER BY created_at DESC, id DESC`,
		sectionID,
	)
	if err != nil {
		return nil, apierr.Upstream("list section assets", err)
	}
	return collect(rows, scanAsset, "list section assets")
}

func (s *PostgresStore) GetAsset(ctx context.Context, id string) (Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	a, err := scanAsset(s.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if err != nil {
		return Asset{}, notFoundOr(err, EntityAsset, id, "get asset")
	}
	return a, nil
}

func (s *PostgresStore) CreateAsset(ctx context.Context, in NewAsset) (Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var metadata any
	if in.Metadata != nil {
		data, err := json.Marshal(in.Metadata)
		if err != nil {
			return Asset{}, fmt.Errorf("marshal asset metadata: %w", err)
		}
		metadata = string(data)
	}

	a, err := scanAsset(s.pool.QueryRow(ctx,
		`INSERT INTO assets (id, section_id, type, title, url, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		 RETURNING `+assetColumns,
		uuid.NewString(),
		in.SectionID,
		string(in.Type),
		in.Title,
		in.URL,
		metadata,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return Asset{}, &apierr.ReferentialIntegrityError{Entity: EntityAsset, Parent: EntitySection, ParentID: in.SectionID}
		}
		return Asset{}, apierr.Upstream("create asset", err)
	}
	return a, nil
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `DELETE FROM assets WHERE id = $1`, id, "delete asset")
}

func (s *PostgresStore) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, apierr.Upstream("list quizzes", err)
	}
	return collect(rows, scanQuiz, "list quizzes")
}

func (s *PostgresStore) ListQuizzesBySection(ctx context.Context, sectionID string) ([]Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+quizColumns+`
		 FROM quizzes
		 WHERE section_id = $1
		 ORDER BY created_at DESC, id DESC`,
		sectionID,
	)
	if err != nil {
		return nil, apierr.Upstream("list section quizzes", err)
	}
	return collect(rows, scanQuiz, "list section quizzes")
}

func (s *PostgresStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	q, err := scanQuiz(s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
	if err != nil {
		return Quiz{}, notFoundOr(err, EntityQuiz, id, "get quiz")
	}
	return q, nil
}

func (s *PostgresStore) CreateQuiz(ctx context.Context, in NewQuiz) (Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	doc, err := json.Marshal(in.Document)
	if err != nil {
		return Quiz{}, fmt.Errorf("marshal quiz document: %w", err)
	}

	q, err := scanQuiz(s.pool.QueryRow(ctx,
		`INSERT INTO quizzes (id, section_id, title, description, json)
		 VALUES ($1, $2, $3, $4, $5::jsonb)
		 RETURNING `+quizColumns,
		uuid.NewString(),
		in.SectionID,
		in.Title,
		in.Description,
		string(doc),
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return Quiz{}, &apierr.ReferentialIntegrityError{Entity: EntityQuiz, Parent: EntitySection, ParentID: in.SectionID}
		}
		return Quiz{}, apierr.Upstream("create quiz", err)
	}
	return q, nil
}

func (s *PostgresStore) DeleteQuiz(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `DELETE FROM quizzes WHERE id = $1`, id, "delete quiz")
}

// deleteByID runs a single-row delete. Zero affected rows is success.
func (s *PostgresStore) deleteByID(ctx context.Context, query, id, op string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return apierr.Upstream(op, err)
	}
	return nil
}

func scanCourse(row pgx.Row) (Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.CreatedAt)
	return c, err
}

func scanSection(row pgx.Row) (Section, error) {
	var sec Section
	err := row.Scan(&sec.ID, &sec.CourseID, &sec.Title, &sec.OrderIndex, &sec.CreatedAt)
	return sec, err
}

func scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	var assetType string
	var metadataBytes []byte
	if err := row.Scan(&a.ID, &a.SectionID, &assetType, &a.Title, &a.URL, &metadataBytes, &a.CreatedAt); err != nil {
		return Asset{}, err
	}
	a.Type = AssetType(assetType)
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &a.Metadata); err != nil {
			return Asset{}, fmt.Errorf("decode asset metadata: %w", err)
		}
	}
	return a, nil
}

func scanQuiz(row pgx.Row) (Quiz, error) {
	var q Quiz
	var docBytes []byte
	if err := row.Scan(&q.ID, &q.SectionID, &q.Title, &q.Description, &docBytes, &q.CreatedAt); err != nil {
		return Quiz{}, err
	}
	if err := json.Unmarshal(docBytes, &q.Document); err != nil {
		return Quiz{}, fmt.Errorf("decode quiz document: %w", err)
	}
	return q, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error), op string) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, apierr.Upstream(op, fmt.Errorf("scan: %w", err))
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Upstream(op, fmt.Errorf("iterate: %w", err))
	}
	return out, nil
}

func notFoundOr(err error, entity, id, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apierr.NotFound(entity, id)
	}
	return apierr.Upstream(op, err)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
