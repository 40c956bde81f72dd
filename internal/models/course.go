package models

import "time"

// CourseStatus is the stored lifecycle label of a course.
type CourseStatus string

const (
	CourseStatusActive   CourseStatus = "Active"
	CourseStatusArchived CourseStatus = "Archived"
	CourseStatusUpcoming CourseStatus = "Upcoming"
)

// Valid reports whether the status is one of the known labels.
func (s CourseStatus) Valid() bool {
	switch s {
	case CourseStatusActive, CourseStatusArchived, CourseStatusUpcoming:
		return true
	}
	return false
}

// Course groups tasks taught by faculty to a set of batches.
type Course struct {
	ID           string       `db:"id" json:"id"`
	CourseCode   string       `db:"course_code" json:"courseCode"`
	Title        string       `db:"title" json:"title"`
	Description  *string      `db:"description" json:"description,omitempty"`
	Photo        *string      `db:"photo" json:"photo,omitempty"`
	Department   string       `db:"department" json:"department"`
	AcademicYear string       `db:"academic_year" json:"academicYear"`
	Semester     *int         `db:"semester" json:"semester,omitempty"`
	Status       CourseStatus `db:"status" json:"status"`
	CreatorKind  UserRole     `db:"creator_kind" json:"creatorModel"`
	CreatorID    string       `db:"creator_id" json:"createdBy"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// CourseSummary is the compact course projection.
type CourseSummary struct {
	ID         string `db:"id" json:"id"`
	CourseCode string `db:"course_code" json:"courseCode"`
	Title      string `db:"title" json:"title"`
}

// CourseDetail expands a course with its people and tasks.
type CourseDetail struct {
	Course
	Faculty  []UserSummary  `json:"faculty"`
	Batches  []BatchSummary `json:"batches"`
	Students []UserSummary  `json:"students"`
	Tasks    []TaskView     `json:"tasks,omitempty"`
}

// CourseFilter scopes course listings. FacultyID limits to courses taught by that faculty,
// StudentID to courses the student is enrolled in.
type CourseFilter struct {
	Search    string
	FacultyID string
	StudentID string
	Page      int
	PageSize  int
}

// CourseRequest is the create/update payload. On update a nil Faculty or Batches keeps the current set.
type CourseRequest struct {
	CourseCode   string       `json:"courseCode" validate:"required"`
	Title        string       `json:"title" validate:"required"`
	Description  *string      `json:"description"`
	Photo        *string      `json:"photo"`
	Department   string       `json:"department" validate:"required"`
	AcademicYear string       `json:"academicYear" validate:"required"`
	Semester     *int         `json:"semester" validate:"omitempty,min=1,max=12"`
	Status       CourseStatus `json:"status" validate:"omitempty,oneof=Active Archived Upcoming"`
	Faculty      []string     `json:"faculty"`
	Batches      []string     `json:"batches"`
}

// AssignableResult is the payload of the course assignables search.
type AssignableResult struct {
	Faculty []UserSummary  `json:"faculty,omitempty"`
	Batches []BatchSummary `json:"batches,omitempty"`
}
