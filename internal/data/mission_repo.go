// Package data provides the Postgres-backed mission store repositories.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/driftline/driftline/internal/errors"

	"github.com/driftline/driftline/internal/core"
	"github.com/driftline/driftline/internal/domain/model"
)

// RepoConfig holds configuration options for the mission repositories.
type RepoConfig struct {
	Logger *slog.Logger
}

// MissionRepo drives the mission status state machine in the mission store.
// All transitions are guarded UPDATEs, so they are idempotent and never
// overwrite a terminal status: queued → processing → {completed, failed}.
type MissionRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

var _ core.MissionRepository = (*MissionRepo)(nil)

// NewMissionRepo creates a MissionRepo with the given database connection.
func NewMissionRepo(db *sql.DB, cfg RepoConfig) *MissionRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MissionRepo{DB: db, logger: logger}
}

// Create inserts a new mission row in queued status. Used by the admin
// submit command and tests; production missions are created by the API layer.
func (r *MissionRepo) Create(ctx context.Context, missionID string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO missions (id, status) VALUES ($1, 'queued')`, missionID)
	if err != nil {
		return fmt.Errorf("create mission: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Get returns the full mission row.
func (r *MissionRepo) Get(ctx context.Context, missionID string) (*model.Mission, error) {
	var m model.Mission
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, status, error_message, created_at, updated_at, completed_at
		FROM missions WHERE id = $1`, missionID,
	).Scan(&m.ID, &m.Status, &m.ErrorMessage, &m.CreatedAt, &m.UpdatedAt, &m.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", apperrors.MapDBError(err))
	}
	return &m, nil
}

// GetStatus returns the current mission status. Consumers call this before
// processing a delivery so a redelivered job for a terminal mission becomes
// a no-op instead of re-running simulation work.
func (r *MissionRepo) GetStatus(ctx context.Context, missionID string) (model.MissionStatus, error) {
	var status model.MissionStatus
	err := r.DB.QueryRowContext(ctx,
		`SELECT status FROM missions WHERE id = $1`, missionID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMissionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get mission status: %w", apperrors.MapDBError(err))
	}
	return status, nil
}

// MarkProcessing transitions queued → processing. Safe to call when the
// mission is already processing (redelivery); returns ErrMissionTerminal
// when the mission already finished.
func (r *MissionRepo) MarkProcessing(ctx context.Context, missionID string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE missions
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status IN ('queued', 'processing')`, missionID)
	if err != nil {
		return fmt.Errorf("mark processing: %w", apperrors.MapDBError(err))
	}
	return r.checkTransition(ctx, missionID, res, nil)
}

// MarkCompleted transitions processing → completed. The update only fires
// when a mission_results row with a non-null centroid exists, enforcing the
// completion invariant in a single statement. Completing an already
// completed mission is a no-op.
func (r *MissionRepo) MarkCompleted(ctx context.Context, missionID string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE missions m
		SET status = 'completed', error_message = NULL,
		    completed_at = now(), updated_at = now()
		WHERE m.id = $1 AND m.status = 'processing'
		  AND EXISTS (
			SELECT 1 FROM mission_results r
			WHERE r.mission_id = m.id
			  AND r.centroid_lat IS NOT NULL
			  AND r.centroid_lon IS NOT NULL
		  )`, missionID)
	if err != nil {
		return fmt.Errorf("mark completed: %w", apperrors.MapDBError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark completed rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	status, err := r.GetStatus(ctx, missionID)
	if err != nil {
		return err
	}
	switch status {
	case model.StatusCompleted:
		return nil
	case model.StatusFailed:
		return ErrMissionTerminal
	default:
		return ErrCentroidRequired
	}
}

// MarkFailed transitions queued|processing → failed, preserving the causal
// message verbatim. Failing an already failed mission is a no-op; a
// completed mission is never demoted.
func (r *MissionRepo) MarkFailed(ctx context.Context, missionID, reason string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE missions
		SET status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1 AND status IN ('queued', 'processing')`, missionID, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", apperrors.MapDBError(err))
	}
	return r.checkTransition(ctx, missionID, res, func(status model.MissionStatus) error {
		if status == model.StatusFailed {
			return nil
		}
		return ErrMissionTerminal
	})
}

// checkTransition resolves a zero-row guarded update into not-found,
// no-op, or terminal-conflict.
func (r *MissionRepo) checkTransition(
	ctx context.Context,
	missionID string,
	res sql.Result,
	onTerminal func(model.MissionStatus) error,
) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	status, err := r.GetStatus(ctx, missionID)
	if err != nil {
		return err
	}
	if !status.Terminal() {
		// Guarded update matched nothing yet the mission is live; treat as
		// a lost race with another transition and let the caller re-read.
		return fmt.Errorf("mission %s transition raced (status %s)", missionID, status)
	}
	if onTerminal != nil {
		return onTerminal(status)
	}
	return ErrMissionTerminal
}
