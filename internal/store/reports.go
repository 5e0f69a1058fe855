// ABOUTME: Report ticket persistence for user-submitted issues
// ABOUTME: Simple create/list/status-update operations, admin resolves tickets

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateReport creates a new report ticket.
func (s *SQLiteStore) CreateReport(ctx context.Context, report *Report) error {
	status := report.Status
	if status == "" {
		status = ReportStatusOpen
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, user_id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.UserID,
		report.Title,
		nullString(report.Description),
		status,
		report.CreatedAt.UTC().Format(time.RFC3339),
		report.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}

	s.logger.Debug("created report", "id", report.ID, "user_id", report.UserID)
	return nil
}

// GetReport retrieves a report by ID.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, status, created_at, updated_at
		FROM reports
		WHERE id = ?
	`, id)
	return scanReport(row)
}

// ListReports returns all reports, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context) ([]*Report, error) {
	return s.listReports(ctx, `
		SELECT id, user_id, title, description, status, created_at, updated_at
		FROM reports
		ORDER BY created_at DESC
	`)
}

// ListUserReports returns one user's reports, newest first.
func (s *SQLiteStore) ListUserReports(ctx context.Context, userID string) ([]*Report, error) {
	return s.listReports(ctx, `
		SELECT id, user_id, title, description, status, created_at, updated_at
		FROM reports
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
}

func (s *SQLiteStore) listReports(ctx context.Context, query string, args ...any) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating report rows: %w", err)
	}
	return reports, nil
}

// UpdateReportStatus sets a report's status.
// Returns ErrNotFound if the report doesn't exist.
func (s *SQLiteStore) UpdateReportStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reports SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating report status: %w", err)
	}
	return requireRowsAffected(result)
}

// DeleteReport removes a report ticket.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteReport(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	return requireRowsAffected(result)
}

func scanReport(row rowScanner) (*Report, error) {
	var report Report
	var description sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.Title,
		&description,
		&report.Status,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning report: %w", err)
	}

	report.Description = description.String
	report.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	report.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &report, nil
}
