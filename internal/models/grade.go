package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// GradeStatus tracks whether a placeholder has been graded.
type GradeStatus string

const (
	GradeStatusPending GradeStatus = "Pending"
	GradeStatusGraded  GradeStatus = "Graded"
)

// Grade is the (task, student) join record created eagerly on enrollment.
type Grade struct {
	ID           string      `db:"id" json:"id"`
	TaskID       string      `db:"task_id" json:"task"`
	StudentID    string      `db:"student_id" json:"student"`
	SubmissionID *string     `db:"submission_id" json:"submission"`
	Grade        *float64    `db:"grade" json:"grade"`
	Status       GradeStatus `db:"status" json:"status"`
	Feedback     *string     `db:"feedback" json:"feedback,omitempty"`
	GradedBy     *string     `db:"graded_by" json:"gradedBy,omitempty"`
	GraderRole   *UserRole   `db:"grader_role" json:"graderModel,omitempty"`
	GradedAt     *time.Time  `db:"graded_at" json:"gradedAt"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}

// GradeKey identifies the placeholder slot for a student on a task.
type GradeKey struct {
	TaskID    string `db:"task_id"`
	StudentID string `db:"student_id"`
}

// Key returns the grade's slot.
func (g Grade) Key() GradeKey {
	return GradeKey{TaskID: g.TaskID, StudentID: g.StudentID}
}

// GradeDetail joins the grade with the student and submission.
type GradeDetail struct {
	Grade
	StudentFirstName  string     `db:"student_first_name" json:"studentFirstName"`
	StudentLastName   string     `db:"student_last_name" json:"studentLastName"`
	StudentRollNumber *string    `db:"student_roll_number" json:"studentRollNumber,omitempty"`
	SubmittedAt       *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	SubmissionStatus  *string    `db:"submission_status" json:"submissionStatus,omitempty"`
}

// StudentGrade is a student's own grade with task and course context.
type StudentGrade struct {
	Grade
	TaskTitle   string    `db:"task_title" json:"taskTitle"`
	MaxPoints   float64   `db:"max_points" json:"maxPoints"`
	DueDate     time.Time `db:"due_date" json:"dueDate"`
	CourseID    string    `db:"course_id" json:"courseId"`
	CourseCode  string    `db:"course_code" json:"courseCode"`
	CourseTitle string    `db:"course_title" json:"courseTitle"`
}

// GradeProgress summarises grading state for a task.
type GradeProgress struct {
	Total     int `db:"total" json:"total"`
	Submitted int `db:"submitted" json:"submitted"`
	Graded    int `db:"graded" json:"graded"`
}

// Score accepts a JSON number, a numeric string, an empty string or null.
// Blank and null decode to an unset score. Anything else keeps its raw text in
// Invalid so one bad row does not fail the whole request.
type Score struct {
	Value   *float64
	Invalid string
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	s.Value, s.Invalid = nil, ""
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		raw = strings.TrimSpace(str)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.Invalid = raw
		return nil
	}
	s.Value = &v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	if s.Invalid != "" {
		return json.Marshal(s.Invalid)
	}
	if s.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*s.Value)
}

// Valid reports whether the score decoded to a number or was left blank.
func (s Score) Valid() bool {
	return s.Invalid == ""
}

// GradeEntry is one row of a bulk grading request. A blank Grade resets the row to Pending.
type GradeEntry struct {
	GradeID  string `json:"gradeId" validate:"required"`
	Grade    Score  `json:"grade"`
	Feedback string `json:"feedback"`
}

// GradeRequest is the bulk grading payload.
type GradeRequest struct {
	Grades []GradeEntry `json:"grades" validate:"required,min=1,dive"`
}

// GradeFailure reports a grading entry that was skipped.
type GradeFailure struct {
	GradeID string `json:"gradeId"`
	Reason  string `json:"reason"`
}

// GradeResult summarises a bulk grading run.
type GradeResult struct {
	Updated int            `json:"updated"`
	Failed  []GradeFailure `json:"failed"`
}

// GradeUpdate is the resolved change applied to a single grade row.
type GradeUpdate struct {
	ID         string
	Grade      *float64
	Status     GradeStatus
	Feedback   *string
	GradedBy   string
	GraderRole UserRole
	GradedAt   *time.Time
}
