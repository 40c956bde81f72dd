package models

import "time"

// Batch is a cohort of students enrolled into courses as a unit.
type Batch struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	AcademicYear string    `db:"academic_year" json:"academicYear"`
	Department   string    `db:"department" json:"department"`
	CreatorKind  UserRole  `db:"creator_kind" json:"creatorModel"`
	CreatorID    string    `db:"creator_id" json:"createdBy"`
	StudentCount int       `db:"student_count" json:"studentCount"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Creator returns the tagged creator reference.
func (b Batch) Creator() ActorRef {
	return ActorRef{Kind: b.CreatorKind, ID: b.CreatorID}
}

// BatchSummary is the compact batch projection.
type BatchSummary struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	AcademicYear string `db:"academic_year" json:"academicYear"`
}

// BatchDetail includes the batch roster.
type BatchDetail struct {
	Batch
	Students []UserSummary `json:"students"`
}

// BatchFilter scopes batch listings.
type BatchFilter struct {
	Search   string
	Page     int
	PageSize int
}

// BatchRequest is the create/update payload. A nil Students keeps the roster on update.
type BatchRequest struct {
	Name         string   `json:"name" validate:"required"`
	AcademicYear string   `json:"academicYear" validate:"required"`
	Department   string   `json:"department" validate:"required"`
	Students     []string `json:"students"`
}
