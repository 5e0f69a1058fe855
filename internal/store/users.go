// ABOUTME: User account persistence and daily quota state methods
// ABOUTME: Quota counters live on the user row; increment and reset are single statements

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = `id, email, password_hash, first_name, last_name, phone, birth_year,
	country, state, role, daily_message_count, last_message_date, privacy_accepted_at,
	created_at, updated_at`

// CreateUser creates a new user account.
// Returns ErrDuplicateEmail if the email is already registered.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, birth_year,
			country, state, role, daily_message_count, last_message_date, privacy_accepted_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	role := user.Role
	if role == "" {
		role = RoleUser
	}

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		nullString(user.LastName),
		nullString(user.Phone),
		nullString(user.BirthYear),
		nullString(user.Country),
		nullString(user.State),
		role,
		user.DailyMessageCount,
		formatNullableTime(user.LastMessageDate),
		formatNullableTime(user.PrivacyAcceptedAt),
		user.CreatedAt.UTC().Format(time.RFC3339),
		user.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "email", user.Email)
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email.
// Returns ErrNotFound if no user has that email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// ListUsers returns all user accounts ordered by creation time.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// UpdateUserName updates the first and last name of a user.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) UpdateUserName(ctx context.Context, id, firstName, lastName string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET first_name = ?, last_name = ?, updated_at = ? WHERE id = ?
	`, firstName, nullString(lastName), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating user name: %w", err)
	}
	return requireRowsAffected(result)
}

// UpdateUserPassword replaces the stored password hash.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?
	`, passwordHash, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return requireRowsAffected(result)
}

// DeleteUser removes a user account. Conversations, messages, and sessions
// cascade via foreign keys.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if err := requireRowsAffected(result); err != nil {
		return err
	}
	s.logger.Info("deleted user", "id", id)
	return nil
}

// SetQuotaState writes the daily counter and last-message date for a user.
// Used by the quota gate's lazy day rollover, which must persist the reset
// before the admit/reject decision.
func (s *SQLiteStore) SetQuotaState(ctx context.Context, userID string, count int, last time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET daily_message_count = ?, last_message_date = ?, updated_at = ? WHERE id = ?
	`, count, last.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), userID)
	if err != nil {
		return fmt.Errorf("setting quota state: %w", err)
	}
	return requireRowsAffected(result)
}

// IncrementDailyCount adds one to the user's daily counter and returns the new value.
func (s *SQLiteStore) IncrementDailyCount(ctx context.Context, userID string) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET daily_message_count = daily_message_count + 1, updated_at = ? WHERE id = ?
	`, now, userID)
	if err != nil {
		return 0, fmt.Errorf("incrementing daily count: %w", err)
	}
	if err := requireRowsAffected(result); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT daily_message_count FROM users WHERE id = ?`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("reading daily count: %w", err)
	}
	return count, nil
}

// ResetAllDailyCounts zeroes every user's daily counter. Run by the
// midnight maintenance job as a complement to the lazy per-request reset.
func (s *SQLiteStore) ResetAllDailyCounts(ctx context.Context, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET daily_message_count = 0, last_message_date = ?, updated_at = ?
	`, now.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("resetting daily counts: %w", err)
	}
	affected, _ := result.RowsAffected()
	s.logger.Info("reset daily message counts", "users", affected)
	return nil
}

// requireRowsAffected maps a zero-row UPDATE/DELETE to ErrNotFound.
func requireRowsAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var lastName, phone, birthYear, country, state sql.NullString
	var lastMessageDate, privacyAcceptedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&lastName,
		&phone,
		&birthYear,
		&country,
		&state,
		&user.Role,
		&user.DailyMessageCount,
		&lastMessageDate,
		&privacyAcceptedAt,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	user.LastName = lastName.String
	user.Phone = phone.String
	user.BirthYear = birthYear.String
	user.Country = country.String
	user.State = state.String

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	user.LastMessageDate, err = parseNullableTime(lastMessageDate)
	if err != nil {
		return nil, fmt.Errorf("parsing last_message_date: %w", err)
	}
	user.PrivacyAcceptedAt, err = parseNullableTime(privacyAcceptedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing privacy_accepted_at: %w", err)
	}

	return &user, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
