package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"surety-registry-api/internal/models"
)

const userColumns = `id, full_name, mobile_no, dob, village, email_id, role, password_hash, created_at, updated_at`

// UserColumns maps the JSON names of editable account fields to columns.
var UserColumns = map[string]string{
	"fullName":     "full_name",
	"mobileNo":     "mobile_no",
	"dob":          "dob",
	"village":      "village",
	"emailId":      "email_id",
	"role":         "role",
	"passwordHash": "password_hash",
}

// InsertUser stores u and fills in its id and timestamps.
func InsertUser(ctx context.Context, q Querier, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	err := q.QueryRowContext(ctx, `
		INSERT INTO users (full_name, mobile_no, dob, village, email_id, role, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		u.FullName, u.MobileNo, nullTime(u.DOB), u.Village, u.EmailID, u.Role, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser loads one account.
func GetUser(ctx context.Context, q Querier, id int64) (*models.User, error) {
	return getUserWhere(ctx, q, "id = $1", id)
}

// GetUserByLogin finds an account by mobile number or, case-insensitively,
// by email address.
func GetUserByLogin(ctx context.Context, q Querier, login string) (*models.User, error) {
	login = strings.TrimSpace(login)
	return getUserWhere(ctx, q, "mobile_no = $1 OR (email_id <> '' AND lower(email_id) = lower($1))", login)
}

func getUserWhere(ctx context.Context, q Querier, where string, arg any) (*models.User, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" ORDER BY id LIMIT 1", arg)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

// UserExists reports whether an account with id exists.
func UserExists(ctx context.Context, q Querier, id int64) (bool, error) {
	var found int64
	err := q.QueryRowContext(ctx, "SELECT id FROM users WHERE id = $1", id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up user: %w", err)
	}
	return true, nil
}

// ListUsers returns every account, newest first.
func ListUsers(ctx context.Context, q Querier) ([]models.User, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return scanUsers(rows)
}

// UpdateUser applies set (JSON field name to value) to one account.
func UpdateUser(ctx context.Context, q Querier, id int64, set map[string]any) error {
	if len(set) == 0 {
		_, err := GetUser(ctx, q, id)
		return err
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		if _, ok := UserColumns[k]; !ok {
			return fmt.Errorf("unknown user field %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		args = append(args, set[k])
		clauses = append(clauses, fmt.Sprintf("%s = $%d", UserColumns[k], len(args)))
	}
	clauses = append(clauses, "updated_at = now()")
	args = append(args, id)

	res, err := q.ExecContext(ctx,
		fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(clauses, ", "), len(args)), args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res)
}

// CountAdmins returns the number of admin accounts.
func CountAdmins(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT count(*) FROM users WHERE role = 'admin'").Scan(&n); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

// DeleteUser removes one account.
func DeleteUser(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res)
}

func scanUsers(rows *sql.Rows) ([]models.User, error) {
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		var (
			u   models.User
			dob sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.FullName, &u.MobileNo, &dob, &u.Village, &u.EmailID,
			&u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.DOB = timePtr(dob)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}
