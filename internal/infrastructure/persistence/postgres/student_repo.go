package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/internal/domain/student"
)

// StudentRepository implements student.Repository on PostgreSQL.
type StudentRepository struct {
	db Querier
}

var _ student.Repository = (*StudentRepository)(nil)

// NewStudentRepository creates a repository over a connection or transaction.
func NewStudentRepository(db Querier) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, display_name, category, enrolled_at, updated_at`

// Create inserts a new enrollment.
func (r *StudentRepository) Create(ctx context.Context, e *student.Enrollment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID.String(), e.DisplayName, e.Category.String(), e.EnrolledAt, e.UpdatedAt)
	if err != nil {
		if mapped := domainError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// GetByID returns the enrollment with the given ID.
func (r *StudentRepository) GetByID(ctx context.Context, id student.StudentID) (*student.Enrollment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id.String())

	e, err := scanEnrollment(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("select student: %w", err)
	}
	return e, nil
}

// Update writes display name, category and updated_at.
func (r *StudentRepository) Update(ctx context.Context, e *student.Enrollment) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE students
		SET display_name = $2, category = $3, updated_at = $4
		WHERE id = $1
	`, e.ID.String(), e.DisplayName, e.Category.String(), e.UpdatedAt)
	if err != nil {
		if mapped := domainError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// List returns enrollments ordered by enrolled_at, id.
func (r *StudentRepository) List(ctx context.Context, opts student.ListOptions) ([]*student.Enrollment, error) {
	if opts.Limit <= 0 {
		opts.Limit = student.DefaultListOptions().Limit
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE ($1::text = '' OR category = $1::text)
		ORDER BY enrolled_at, id
		LIMIT $2 OFFSET $3
	`, opts.Category.String(), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	result := make([]*student.Enrollment, 0, opts.Limit)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// CountByCategory counts enrollments per category.
func (r *StudentRepository) CountByCategory(ctx context.Context) (map[student.Category]int, error) {
	rows, err := r.db.Query(ctx, `SELECT category, count(*) FROM students GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	defer rows.Close()

	counts := make(map[student.Category]int, len(student.Categories()))
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[student.Category(category)] = n
	}
	return counts, rows.Err()
}

func scanEnrollment(row pgx.Row) (*student.Enrollment, error) {
	var (
		e        student.Enrollment
		id       string
		category string
	)
	if err := row.Scan(&id, &e.DisplayName, &category, &e.EnrolledAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.ID = student.StudentID(id)
	e.Category = student.Category(category)
	return &e, nil
}
