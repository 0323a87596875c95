package models

import "time"

// Course represents a catalog entry stored in the courses table.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Capacity    int       `db:"capacity" json:"capacity"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CoursePatch captures a partial update; nil fields are left untouched.
type CoursePatch struct {
	Code        *string `json:"code" validate:"omitempty,min=1"`
	Title       *string `json:"title" validate:"omitempty,min=1"`
	Description *string `json:"description"`
	Capacity    *int    `json:"capacity" validate:"omitempty,min=1"`
	Active      *bool   `json:"active"`
}

// CourseFilter provides offset pagination for catalog listings.
type CourseFilter struct {
	Skip  int
	Limit int
}
