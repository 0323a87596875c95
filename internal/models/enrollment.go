package models

import "time"

// Enrollment captures a user's registration to a course.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentFilter provides offset pagination for ledger listings.
type EnrollmentFilter struct {
	Skip  int
	Limit int
}

// RosterEntry joins an enrollment with the enrolled student for course rosters.
type RosterEntry struct {
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	EnrolledAt   time.Time `db:"enrolled_at" json:"enrolled_at"`
}
