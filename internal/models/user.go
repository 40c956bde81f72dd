package models

import (
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleFaculty UserRole = "FACULTY"
	RoleStudent UserRole = "STUDENT"
	// RoleSystem marks records authored by background jobs rather than a person.
	RoleSystem UserRole = "SYSTEM"
)

// ParseRole maps a path segment such as "faculty" onto a user role.
func ParseRole(raw string) (UserRole, bool) {
	switch UserRole(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleFaculty:
		return RoleFaculty, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// ActorRef is a tagged reference to a record owned by one of the user kinds.
type ActorRef struct {
	Kind UserRole `db:"kind" json:"kind"`
	ID   string   `db:"id" json:"id"`
}

// User represents an admin, faculty member or student stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Role         UserRole   `db:"role" json:"role"`
	FirstName    string     `db:"first_name" json:"firstName"`
	LastName     string     `db:"last_name" json:"lastName"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Department   *string    `db:"department" json:"department,omitempty"`
	RollNumber   *string    `db:"roll_number" json:"rollNumber,omitempty"`
	Designation  *string    `db:"designation" json:"designation,omitempty"`
	Photo        *string    `db:"photo" json:"photo,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// UserSummary is the compact projection embedded in other payloads.
type UserSummary struct {
	ID         string  `db:"id" json:"id"`
	FirstName  string  `db:"first_name" json:"firstName"`
	LastName   string  `db:"last_name" json:"lastName"`
	Email      string  `db:"email" json:"email,omitempty"`
	Username   string  `db:"username" json:"username,omitempty"`
	RollNumber *string `db:"roll_number" json:"rollNumber,omitempty"`
	Photo      *string `db:"photo" json:"photo,omitempty"`
}

// StudentDetail enriches a student with their batches and the courses they take.
type StudentDetail struct {
	User
	Batches []BatchSummary  `json:"batch"`
	Courses []CourseSummary `json:"courses,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes total pages for the given page window.
func NewPagination(page, limit, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return &Pagination{Total: total, Page: page, Limit: limit, TotalPages: pages}
}

// PageWindow normalises page/limit pairs and returns the SQL offset.
func PageWindow(page, limit, defaultLimit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	return page, limit, (page - 1) * limit
}

// StudentRequest is the admin/faculty payload for student management.
// Password is required on create and optional on update. A nil Batches keeps memberships on update.
type StudentRequest struct {
	FirstName  string   `json:"firstName" validate:"required"`
	LastName   string   `json:"lastName" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Username   string   `json:"username" validate:"required,min=3"`
	Password   string   `json:"password" validate:"omitempty,min=6"`
	Department string   `json:"department" validate:"required"`
	RollNumber string   `json:"rollNumber" validate:"required"`
	Photo      *string  `json:"photo"`
	Active     *bool    `json:"active"`
	Batches    []string `json:"batch"`
}

// FacultyRequest is the admin payload for faculty management. Password is required on create.
type FacultyRequest struct {
	FirstName   string  `json:"firstName" validate:"required"`
	LastName    string  `json:"lastName" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Username    string  `json:"username" validate:"required,min=3"`
	Password    string  `json:"password" validate:"omitempty,min=6"`
	Department  string  `json:"department" validate:"required"`
	Designation string  `json:"designation"`
	Photo       *string `json:"photo"`
	Active      *bool   `json:"active"`
}
