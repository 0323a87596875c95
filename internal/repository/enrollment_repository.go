package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enroll-api/internal/models"
	appErrors "github.com/noah-isme/course-enroll-api/pkg/errors"
)

// EnrollmentRepository provides database access for the enrollment ledger.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new instance of EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

type lockedCourse struct {
	ID       string `db:"id"`
	Capacity int    `db:"capacity"`
	Active   bool   `db:"active"`
}

// Enroll inserts an enrollment while holding a row lock on the course, so the
// capacity check and the insert commit as one unit. Concurrent attempts on the
// same course serialize on the lock; a concurrent duplicate for the same
// (user, course) pair is rejected by the unique constraint.
func (r *EnrollmentRepository) Enroll(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enroll tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var course lockedCourse
	const lockQuery = `SELECT id, capacity, active FROM courses WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &course, lockQuery, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrCourseUnavailable
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}
	if !course.Active {
		return nil, appErrors.ErrCourseUnavailable
	}

	var enrolled int
	const countQuery = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
	if err := tx.GetContext(ctx, &enrolled, countQuery, courseID); err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	if enrolled >= course.Capacity {
		return nil, appErrors.ErrCourseFull
	}

	enrollment := &models.Enrollment{
		ID:         uuid.NewString(),
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	}
	const insertQuery = `INSERT INTO enrollments (id, user_id, course_id, enrolled_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insertQuery, enrollment.ID, enrollment.UserID, enrollment.CourseID, enrollment.EnrolledAt); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enroll tx: %w", err)
	}
	return enrollment, nil
}

// DeleteOwned removes an enrollment only when it belongs to the given user.
// A missing row and an ownership mismatch are indistinguishable: both return
// sql.ErrNoRows.
func (r *EnrollmentRepository) DeleteOwned(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM enrollments WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns ledger rows ordered by enrollment time with a total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf("SELECT id, user_id, course_id, enrolled_at FROM enrollments ORDER BY enrolled_at DESC LIMIT %d OFFSET %d", limit, skip)
	enrollments := []models.Enrollment{}
	if err := r.db.SelectContext(ctx, &enrollments, query); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments"); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	return enrollments, total, nil
}

// RosterByCourse returns enrolled students for a course.
func (r *EnrollmentRepository) RosterByCourse(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id AS enrollment_id, u.id AS user_id, u.email, u.full_name, e.enrolled_at FROM enrollments e JOIN users u ON u.id = e.user_id WHERE e.course_id = $1 ORDER BY e.enrolled_at ASC`
	entries := []models.RosterEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, courseID); err != nil {
		return nil, fmt.Errorf("course roster: %w", err)
	}
	return entries, nil
}
