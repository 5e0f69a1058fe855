// ABOUTME: EngineConfig persistence and the transactional activation protocol
// ABOUTME: ActivateEngineConfig deactivates all others in the same transaction

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateEngineConfig creates a new engine configuration.
// Returns ErrDuplicateEngine if the name or key already exists.
func (s *SQLiteStore) CreateEngineConfig(ctx context.Context, cfg *EngineConfig) error {
	query := `
		INSERT INTO engine_configs (id, name, key, description, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		cfg.ID,
		cfg.Name,
		cfg.Key,
		nullString(cfg.Description),
		cfg.Active,
		cfg.CreatedAt.UTC().Format(time.RFC3339),
		cfg.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEngine
		}
		return fmt.Errorf("inserting engine config: %w", err)
	}

	s.logger.Info("created engine config", "id", cfg.ID, "name", cfg.Name, "key", cfg.Key)
	return nil
}

// GetEngineConfig retrieves an engine config by ID.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetEngineConfig(ctx context.Context, id string) (*EngineConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, key, description, active, created_at, updated_at
		FROM engine_configs
		WHERE id = ?
	`, id)
	return scanEngineConfig(row)
}

// GetActiveEngineConfig returns the config with active = true.
// Ordered by updated_at DESC as a defensive tie-break should the
// at-most-one-active invariant ever be violated.
// Returns ErrNotFound if no config is active.
func (s *SQLiteStore) GetActiveEngineConfig(ctx context.Context) (*EngineConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, key, description, active, created_at, updated_at
		FROM engine_configs
		WHERE active = 1
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	return scanEngineConfig(row)
}

// ListEngineConfigs returns all engine configs ordered by creation time.
func (s *SQLiteStore) ListEngineConfigs(ctx context.Context) ([]*EngineConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, key, description, active, created_at, updated_at
		FROM engine_configs
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying engine configs: %w", err)
	}
	defer rows.Close()

	var configs []*EngineConfig
	for rows.Next() {
		cfg, err := scanEngineConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating engine config rows: %w", err)
	}
	return configs, nil
}

// UpdateEngineConfig updates the name, key, and description of a config.
// The active flag is only mutated via ActivateEngineConfig.
func (s *SQLiteStore) UpdateEngineConfig(ctx context.Context, id, name, key, description string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE engine_configs SET name = ?, key = ?, description = ?, updated_at = ? WHERE id = ?
	`, name, key, nullString(description), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEngine
		}
		return fmt.Errorf("updating engine config: %w", err)
	}
	return requireRowsAffected(result)
}

// ActivateEngineConfig marks one config active and all others inactive as a
// single transaction, preserving the at-most-one-active invariant under
// concurrent activations. A nonexistent id leaves state untouched and
// returns ErrNotFound. Activating the already-active config is idempotent.
func (s *SQLiteStore) ActivateEngineConfig(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM engine_configs WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking engine config: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		UPDATE engine_configs SET active = 0, updated_at = ? WHERE active = 1 AND id <> ?
	`, now, id); err != nil {
		return fmt.Errorf("deactivating engine configs: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE engine_configs SET active = 1, updated_at = ? WHERE id = ?
	`, now, id); err != nil {
		return fmt.Errorf("activating engine config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing activation: %w", err)
	}

	s.logger.Info("activated engine config", "id", id)
	return nil
}

// DeleteEngineConfig removes an engine config.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteEngineConfig(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM engine_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting engine config: %w", err)
	}
	return requireRowsAffected(result)
}

func scanEngineConfig(row rowScanner) (*EngineConfig, error) {
	var cfg EngineConfig
	var description sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&cfg.ID,
		&cfg.Name,
		&cfg.Key,
		&description,
		&cfg.Active,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning engine config: %w", err)
	}

	cfg.Description = description.String
	cfg.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	cfg.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &cfg, nil
}
