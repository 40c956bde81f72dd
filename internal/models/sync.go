package models

// SyncReport counts the effect of one enrollment synchronization.
type SyncReport struct {
	Added              []string `json:"added"`
	Removed            []string `json:"removed"`
	GradesCreated      int      `json:"gradesCreated"`
	GradesDeleted      int      `json:"gradesDeleted"`
	SubmissionsDeleted int      `json:"submissionsDeleted"`
}

// Changed reports whether the sync touched anything.
func (r SyncReport) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || r.GradesCreated > 0 || r.GradesDeleted > 0 || r.SubmissionsDeleted > 0
}

// FacultyDeletionReport lists what was left behind when a faculty member was removed.
// Courses and tasks are never deleted with their faculty.
type FacultyDeletionReport struct {
	FacultyID             string          `json:"facultyId"`
	CoursesWithoutFaculty []CourseSummary `json:"coursesWithoutFaculty"`
	OrphanedTaskIDs       []string        `json:"orphanedTaskIds"`
	CourseLinksRemoved    int             `json:"courseLinksRemoved"`
}
