package models

import "time"

// TaskType labels the kind of work requested.
type TaskType string

const (
	TaskTypeAssignment TaskType = "Assignment"
	TaskTypeQuiz       TaskType = "Quiz"
	TaskTypeProject    TaskType = "Project"
	TaskTypeLabReport  TaskType = "Lab Report"
)

// TaskStatus is derived from the publish/due window and never stored.
type TaskStatus string

const (
	TaskStatusUpcoming  TaskStatus = "Upcoming"
	TaskStatusActive    TaskStatus = "Active"
	TaskStatusCompleted TaskStatus = "Completed"
)

// Task is a unit of work published to every student enrolled in its course.
type Task struct {
	ID             string      `db:"id" json:"id"`
	Title          string      `db:"title" json:"title"`
	Description    string      `db:"description" json:"description"`
	Type           TaskType    `db:"type" json:"type"`
	Photo          *string     `db:"photo" json:"photo,omitempty"`
	CourseID       string      `db:"course_id" json:"course"`
	CreatedBy      string      `db:"created_by" json:"createdBy"`
	PublishDate    time.Time   `db:"publish_date" json:"publishDate"`
	DueDate        time.Time   `db:"due_date" json:"dueDate"`
	MaxPoints      float64     `db:"max_points" json:"maxPoints"`
	Attachments    Attachments `db:"attachments" json:"attachments"`
	ReminderSentAt *time.Time  `db:"reminder_sent_at" json:"-"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}

// StatusAt projects the task lifecycle at the given instant.
func (t Task) StatusAt(now time.Time) TaskStatus {
	switch {
	case now.Before(t.PublishDate):
		return TaskStatusUpcoming
	case now.After(t.DueDate):
		return TaskStatusCompleted
	default:
		return TaskStatusActive
	}
}

// TaskView is the read model returned to clients, with status computed at render time.
type TaskView struct {
	Task
	Status      TaskStatus     `json:"status"`
	CourseCode  string         `json:"courseCode,omitempty"`
	CourseTitle string         `json:"courseTitle,omitempty"`
	CreatorName string         `json:"creatorName,omitempty"`
	Grading     *GradeProgress `json:"grading,omitempty"`
	MyGrade     *Grade         `json:"myGrade,omitempty"`
}

// TaskRow is the joined listing row loaded by repositories.
type TaskRow struct {
	Task
	CourseCode  string `db:"course_code"`
	CourseTitle string `db:"course_title"`
	CreatorName string `db:"creator_name"`
}

// View renders the row with a freshly computed status.
func (r TaskRow) View(now time.Time) TaskView {
	return TaskView{
		Task:        r.Task,
		Status:      r.Task.StatusAt(now),
		CourseCode:  r.CourseCode,
		CourseTitle: r.CourseTitle,
		CreatorName: r.CreatorName,
	}
}

// TaskFilter scopes task listings.
type TaskFilter struct {
	Search    string
	CourseID  string
	CreatedBy string
	// FacultyID limits to tasks of courses taught by the faculty.
	FacultyID string
	// StudentID limits to tasks of courses the student is enrolled in.
	StudentID string
	Page      int
	PageSize  int
}

// DueTask is a task inside the reminder window with the students still owing work.
type DueTask struct {
	TaskID     string    `db:"task_id"`
	Title      string    `db:"title"`
	DueDate    time.Time `db:"due_date"`
	StudentIDs []string  `db:"-"`
}

// TaskRequest is the create/update payload. A zero PublishDate means now; MaxPoints is required on create.
type TaskRequest struct {
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description" validate:"required"`
	Type        TaskType     `json:"type" validate:"omitempty,oneof=Assignment Quiz Project 'Lab Report'"`
	Photo       *string      `json:"photo"`
	CourseID    string       `json:"course" validate:"required"`
	PublishDate time.Time    `json:"publishDate"`
	DueDate     time.Time    `json:"dueDate" validate:"required"`
	MaxPoints   *float64     `json:"maxPoints" validate:"omitempty,gte=0"`
	Attachments []Attachment `json:"attachments" validate:"dive"`
}
