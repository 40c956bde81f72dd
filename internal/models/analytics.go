package models

import "time"

// AnalyticsFilter scopes grade/submission analytics. FacultyID limits to courses taught by the faculty.
type AnalyticsFilter struct {
	From       *time.Time
	To         *time.Time
	Department string
	FacultyID  string
}

// AnalyticsKPIs summarises submissions and grading.
type AnalyticsKPIs struct {
	TotalSubmissions int     `db:"total_submissions" json:"totalSubmissions"`
	TotalGraded      int     `db:"total_graded" json:"totalGraded"`
	AverageScore     float64 `db:"average_score" json:"averageScore"`
}

// DailyCount is a count bucketed by calendar day (YYYY-MM-DD).
type DailyCount struct {
	Day   string `db:"day" json:"_id"`
	Count int    `db:"count" json:"count"`
}

// CoursePerformance aggregates grades for a course.
type CoursePerformance struct {
	CourseID        string  `db:"course_id" json:"courseId"`
	CourseName      string  `db:"course_name" json:"courseName"`
	AverageGrade    float64 `db:"average_grade" json:"averageGrade"`
	SubmissionCount int     `db:"submission_count" json:"submissionCount"`
}

// FacultyPerformance aggregates grades for tasks a faculty member created.
type FacultyPerformance struct {
	FacultyID    string  `db:"faculty_id" json:"facultyId"`
	FacultyName  string  `db:"faculty_name" json:"facultyName"`
	AverageGrade float64 `db:"average_grade" json:"averageGrade"`
	TaskCount    int     `db:"task_count" json:"taskCount"`
	GradedCount  int     `db:"graded_count" json:"gradedCount"`
}

// BatchPerformance aggregates grades for students of a batch.
type BatchPerformance struct {
	BatchID         string  `db:"batch_id" json:"batchId"`
	BatchName       string  `db:"batch_name" json:"batchName"`
	AverageGrade    float64 `db:"average_grade" json:"averageGrade"`
	SubmissionCount int     `db:"submission_count" json:"submissionCount"`
	StudentCount    int     `db:"student_count" json:"studentCount"`
}

// AnalyticsReport is the payload of the analytics endpoints.
type AnalyticsReport struct {
	KPIs               AnalyticsKPIs        `json:"kpis"`
	SubmissionTrend    []DailyCount         `json:"submissionTrend"`
	CoursePerformance  []CoursePerformance  `json:"coursePerformance"`
	FacultyPerformance []FacultyPerformance `json:"facultyPerformance"`
	BatchPerformance   []BatchPerformance   `json:"batchPerformance,omitempty"`
	DateRange          DateRange            `json:"dateRange"`
}

// DateRange echoes the requested window.
type DateRange struct {
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	SyncRuns                 uint64    `json:"syncRuns"`
	GradePlaceholdersCreated uint64    `json:"gradePlaceholdersCreated"`
	GradePlaceholdersDeleted uint64    `json:"gradePlaceholdersDeleted"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
