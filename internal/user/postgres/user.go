package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/smiledesk/clinic-booking/internal/user"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type userRow struct {
	ID           int64        `db:"id"`
	Email        string       `db:"email"`
	Name         string       `db:"name"`
	PasswordHash string       `db:"password_hash"`
	Phone        string       `db:"phone"`
	Specialty    string       `db:"specialty"`
	IsActive     bool         `db:"is_active"`
	CreatedAt    sql.NullTime `db:"created_at"`
	UpdatedAt    sql.NullTime `db:"updated_at"`
}

func (row userRow) toDomain() *user.User {
	u := &user.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		Phone:        row.Phone,
		Specialty:    row.Specialty,
		IsActive:     row.IsActive,
	}
	if row.CreatedAt.Valid {
		u.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		u.UpdatedAt = row.UpdatedAt.Time
	}
	return u
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (*user.User, error) {
	var row userRow
	query := `SELECT id, email, name, password_hash,
	                 COALESCE(phone, '') AS phone,
	                 COALESCE(specialty, '') AS specialty,
	                 is_active, created_at, updated_at
	          FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain(), nil
}

func (r *Repository) GetPermissions(ctx context.Context, userID int64) ([]string, error) {
	var permissions []string
	query := `SELECT p.name
	          FROM permissions p
	          JOIN user_permissions up ON up.permission_id = p.id
	          WHERE up.user_id = $1
	          ORDER BY p.name`
	if err := r.db.SelectContext(ctx, &permissions, query, userID); err != nil {
		return nil, fmt.Errorf("get permissions: %w", err)
	}
	return permissions, nil
}

// ListDentists returns active users holding the approve_appointments
// permission, which is what makes an account a dentist.
func (r *Repository) ListDentists(ctx context.Context) ([]*user.User, error) {
	var rows []userRow
	query := `SELECT DISTINCT u.id, u.email, u.name, u.password_hash,
	                 COALESCE(u.phone, '') AS phone,
	                 COALESCE(u.specialty, '') AS specialty,
	                 u.is_active, u.created_at, u.updated_at
	          FROM users u
	          JOIN user_permissions up ON up.user_id = u.id
	          JOIN permissions p ON p.id = up.permission_id
	          WHERE p.name = 'approve_appointments' AND u.is_active = true
	          ORDER BY u.name`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list dentists: %w", err)
	}

	dentists := make([]*user.User, 0, len(rows))
	for _, row := range rows {
		d := row.toDomain()
		d.PasswordHash = ""
		dentists = append(dentists, d)
	}
	return dentists, nil
}
