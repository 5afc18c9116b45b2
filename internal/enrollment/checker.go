// Package enrollment reads enrollment and course-ownership facts from the
// catalog side of the platform. The live engine only consumes these checks;
// enrollment CRUD lives elsewhere.
package enrollment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Checker answers eligibility questions about a user and a course.
type Checker interface {
	IsEnrolled(ctx context.Context, courseID, userID uuid.UUID) (bool, error)
	IsInstructor(ctx context.Context, courseID, userID uuid.UUID) (bool, error)
}

// Repository implements Checker over the platform's courses/enrollments tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an enrollment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsEnrolled reports whether the user has an active enrollment in the course.
func (r *Repository) IsEnrolled(ctx context.Context, courseID, userID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM enrollments WHERE course_id = $1 AND user_id = $2 AND status = 'active')`
	var ok bool
	err := r.pool.QueryRow(ctx, query, courseID, userID).Scan(&ok)
	return ok, err
}

// IsInstructor reports whether the user owns the course.
func (r *Repository) IsInstructor(ctx context.Context, courseID, userID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM courses WHERE id = $1 AND instructor_id = $2)`
	var ok bool
	err := r.pool.QueryRow(ctx, query, courseID, userID).Scan(&ok)
	return ok, err
}
