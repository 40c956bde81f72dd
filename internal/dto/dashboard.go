package dto

import (
	"time"

	"github.com/noah-isme/lms-api/internal/models"
)

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	TotalStudents  int           `json:"totalStudents"`
	TotalFaculty   int           `json:"totalFaculty"`
	TotalCourses   int           `json:"totalCourses"`
	TotalBatches   int           `json:"totalBatches"`
	ActiveTasks    int           `json:"activeTasks"`
	CompletionRate float64       `json:"completionRate"`
	MonthlyStats   []MonthlyStat `json:"monthlyStats"`
	TopStudents    []TopStudent  `json:"topStudents"`
	Year           int           `json:"year"`
	GeneratedAt    time.Time     `json:"generatedAt"`
}

// AdminTotals holds the headline counters of the admin dashboard.
type AdminTotals struct {
	Students    int `db:"students"`
	Faculty     int `db:"faculty"`
	Courses     int `db:"courses"`
	Batches     int `db:"batches"`
	ActiveTasks int `db:"active_tasks"`
	Grades      int `db:"grades"`
	Graded      int `db:"graded"`
}

// MonthlyStat counts entities created in a month of the dashboard year.
type MonthlyStat struct {
	Month    int `db:"month" json:"month"`
	Tasks    int `db:"tasks" json:"tasks"`
	Students int `db:"students" json:"students"`
	Faculty  int `db:"faculty" json:"faculty"`
}

// TopStudent ranks students by accumulated score.
type TopStudent struct {
	StudentID      string  `db:"student_id" json:"studentId"`
	Name           string  `db:"name" json:"name"`
	RollNumber     *string `db:"roll_number" json:"rollNumber,omitempty"`
	TotalScore     float64 `db:"total_score" json:"totalScore"`
	TasksCompleted int     `db:"tasks_completed" json:"tasksCompleted"`
}

// FacultyDashboardResponse is the faculty landing payload.
type FacultyDashboardResponse struct {
	KPIs              FacultyKPIs         `json:"kpis"`
	SubmissionTrend   []models.DailyCount `json:"submissionTrend"`
	RecentSubmissions []RecentSubmission  `json:"recentActivity"`
}

// FacultyKPIs are the headline numbers for a faculty member.
type FacultyKPIs struct {
	MyCourses         int     `db:"my_courses" json:"myCourses"`
	TotalStudents     int     `db:"total_students" json:"totalStudents"`
	ActiveAssignments int     `db:"active_assignments" json:"activeAssignments"`
	PendingGrading    int     `db:"pending_grading" json:"pendingGrading"`
	AverageGrade      float64 `db:"average_grade" json:"averageGrade"`
}

// RecentSubmission is a submission on one of the faculty's tasks.
type RecentSubmission struct {
	SubmissionID string    `db:"submission_id" json:"submissionId"`
	TaskID       string    `db:"task_id" json:"taskId"`
	TaskTitle    string    `db:"task_title" json:"taskTitle"`
	StudentName  string    `db:"student_name" json:"studentName"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submittedAt"`
}

// StudentDashboardResponse is the student landing payload. Task statuses are computed at render time.
type StudentDashboardResponse struct {
	KPIs              StudentKPIs       `json:"kpis"`
	UpcomingDeadlines []models.TaskView `json:"upcomingDeadlines"`
}

// StudentKPIs are the headline numbers for a student.
type StudentKPIs struct {
	EnrolledCourses    int     `db:"enrolled_courses" json:"enrolledCourses"`
	PendingAssignments int     `db:"pending_assignments" json:"pendingAssignments"`
	CompletedTasks     int     `db:"completed_tasks" json:"completedTasks"`
	AverageScore       float64 `db:"average_score" json:"averageScore"`
}

// StudentDashboardSnapshot is the cacheable part of the student dashboard.
type StudentDashboardSnapshot struct {
	KPIs     StudentKPIs      `json:"kpis"`
	Upcoming []models.TaskRow `json:"upcoming"`
}
