package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/models"
)

// UserRepository provides database access for admins, faculty and students.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = $1 LIMIT 1"
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByIdentifier looks up a user of role by username (case-insensitive) or email.
func (r *UserRepository) FindByIdentifier(ctx context.Context, role models.UserRole, identifier string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE role = $1 AND (username = UPPER($2) OR email = LOWER($2)) LIMIT 1"
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, role, strings.TrimSpace(identifier)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by identifier: %w", err)
	}
	return &user, nil
}

// CountByRole returns how many users hold role.
func (r *UserRepository) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE role = $1`, role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return total, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// List returns users of the filter's role with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(COALESCE(roll_number, '')) LIKE $%d)", n, n, n, n))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"first_name":  true,
		"last_name":   true,
		"email":       true,
		"roll_number": true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	_, limit, offset := models.PageWindow(filter.Page, filter.PageSize, 10)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder, limit, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Search matches users of role by name, email or roll number.
func (r *UserRepository) Search(ctx context.Context, role models.UserRole, q string, limit int) ([]models.UserSummary, error) {
	const query = `SELECT id, first_name, last_name, email, username, roll_number, photo FROM users
        WHERE role = $1 AND (LOWER(first_name) LIKE $2 OR LOWER(last_name) LIKE $2 OR LOWER(email) LIKE $2 OR LOWER(COALESCE(roll_number, '')) LIKE $2)
        ORDER BY first_name, last_name LIMIT $3`
	var users []models.UserSummary
	if err := r.db.SelectContext(ctx, &users, query, role, likePattern(q), limit); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// FindByIDs returns users of role matching ids. Missing ids are silently skipped.
func (r *UserRepository) FindByIDs(ctx context.Context, role models.UserRole, ids []string) ([]models.UserSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, first_name, last_name, email, username, roll_number, photo FROM users WHERE role = $1 AND id = ANY($2) ORDER BY first_name, last_name`
	var users []models.UserSummary
	if err := r.db.SelectContext(ctx, &users, query, role, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	return users, nil
}

// IDsByRole lists every user id of role, or of every role when role is empty.
func (r *UserRepository) IDsByRole(ctx context.Context, role models.UserRole) ([]models.ActorRef, error) {
	query := `SELECT role AS kind, id FROM users WHERE active = TRUE`
	var args []interface{}
	if role != "" {
		query += ` AND role = $1`
		args = append(args, role)
	}
	var refs []models.ActorRef
	if err := r.db.SelectContext(ctx, &refs, query+` ORDER BY id`, args...); err != nil {
		return nil, fmt.Errorf("list user ids by role: %w", err)
	}
	return refs, nil
}

// Create inserts a user outside of an enrollment unit of work (admins, faculty).
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return insertUser(ctx, r.db, user)
}

// Update persists profile fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return updateUser(ctx, r.db, user)
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func insertUser(ctx context.Context, db sqlx.ExtContext, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	normaliseUser(user)
	stampCreate(&user.CreatedAt, &user.UpdatedAt)
	const query = `INSERT INTO users (id, role, first_name, last_name, email, username, password_hash, department, roll_number, designation, photo, active, created_at, updated_at) VALUES (:id, :role, :first_name, :last_name, :email, :username, :password_hash, :department, :roll_number, :designation, :photo, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, db, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func updateUser(ctx context.Context, db sqlx.ExtContext, user *models.User) error {
	normaliseUser(user)
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET first_name = :first_name, last_name = :last_name, email = :email, username = :username, department = :department, roll_number = :roll_number, designation = :designation, photo = :photo, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, db, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// normaliseUser applies the storage casing rules: upper-case usernames and roll numbers, lower-case email.
func normaliseUser(user *models.User) {
	user.Username = strings.ToUpper(strings.TrimSpace(user.Username))
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.RollNumber != nil {
		roll := strings.ToUpper(strings.TrimSpace(*user.RollNumber))
		if roll == "" {
			user.RollNumber = nil
		} else {
			user.RollNumber = &roll
		}
	}
}
