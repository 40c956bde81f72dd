package repository

import "strings"

const (
	userColumns   = "id, role, first_name, last_name, email, username, password_hash, department, roll_number, designation, photo, active, last_login, created_at, updated_at"
	batchColumns  = "id, name, academic_year, department, creator_kind, creator_id, created_at, updated_at"
	courseColumns = "id, course_code, title, description, photo, department, academic_year, semester, status, creator_kind, creator_id, created_at, updated_at"
	taskColumns   = "id, title, description, type, photo, course_id, created_by, publish_date, due_date, max_points, attachments, reminder_sent_at, created_at, updated_at"
	gradeColumns  = "id, task_id, student_id, submission_id, grade, status, feedback, graded_by, grader_role, graded_at, created_at, updated_at"
)

// prefixed qualifies every column of a list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i := range parts {
		parts[i] = alias + "." + parts[i]
	}
	return strings.Join(parts, ", ")
}

// likePattern lower-cases and wraps a search term for LIKE matching.
func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}
