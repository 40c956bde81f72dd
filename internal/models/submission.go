package models

import "time"

// SubmissionStatus records punctuality at submission time.
type SubmissionStatus string

const (
	SubmissionOnTime SubmissionStatus = "On-Time"
	SubmissionLate   SubmissionStatus = "Late"
)

// Submission is a student's work for a task, unique per (task, student).
type Submission struct {
	ID          string           `db:"id" json:"id"`
	TaskID      string           `db:"task_id" json:"task"`
	StudentID   string           `db:"student_id" json:"student"`
	CourseID    string           `db:"course_id" json:"course"`
	Content     *string          `db:"content" json:"content,omitempty"`
	Attachments Attachments      `db:"attachments" json:"attachments"`
	Status      SubmissionStatus `db:"status" json:"status"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submittedAt"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updatedAt"`
}

// SubmissionDetail joins submission with the student.
type SubmissionDetail struct {
	Submission
	StudentFirstName  string  `db:"student_first_name" json:"studentFirstName"`
	StudentLastName   string  `db:"student_last_name" json:"studentLastName"`
	StudentRollNumber *string `db:"student_roll_number" json:"studentRollNumber,omitempty"`
}

// SubmitRequest is the student payload for a task submission.
type SubmitRequest struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments" validate:"dive"`
}

// SubmissionNotSubmitted labels roster rows without a submission.
const SubmissionNotSubmitted = "Not Submitted"

// SubmissionRosterEntry is one enrolled student's state on a task.
type SubmissionRosterEntry struct {
	Student      UserSummary `json:"student"`
	SubmissionID *string     `json:"submissionId"`
	Status       string      `json:"status"`
	SubmittedAt  *time.Time  `json:"submittedAt"`
	GradeStatus  GradeStatus `json:"gradeStatus,omitempty"`
	Grade        *float64    `json:"grade"`
	Feedback     *string     `json:"feedback,omitempty"`
	Content      *string     `json:"content,omitempty"`
	Attachments  Attachments `json:"attachments"`
}

// SubmitResult is returned after a successful submission.
type SubmitResult struct {
	Submission  Submission `json:"submission"`
	Grade       *Grade     `json:"grade"`
	Resubmitted bool       `json:"resubmitted"`
}
