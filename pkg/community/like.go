package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ToggleLike likes the project for userID, or removes an existing like.
// The like row and the project's likes_count change in one transaction.
func (s *Store) ToggleLike(ctx context.Context, projectID, userID string) (liked bool, count int, err error) {
	if userID == "" {
		return false, 0, fmt.Errorf("%w: user id is required", ErrInvalidProject)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var visible int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE id = ? AND (is_public = 1 OR user_id = ?)`, projectID, userID).Scan(&visible)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, ErrNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("lookup project: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE user_id = ? AND project_id = ?`, userID, projectID)
	if err != nil {
		return false, 0, fmt.Errorf("unlike: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("unlike: %w", err)
	}

	delta := -1
	if removed == 0 {
		delta = 1
		_, err = tx.ExecContext(ctx,
			`INSERT INTO likes (id, user_id, project_id, created_at) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), userID, projectID, s.now().UnixNano())
		if err != nil {
			return false, 0, fmt.Errorf("like: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE projects SET likes_count = MAX(likes_count + ?, 0) WHERE id = ?`, delta, projectID)
	if err != nil {
		return false, 0, fmt.Errorf("update likes count: %w", err)
	}
	if err = tx.QueryRowContext(ctx, `SELECT likes_count FROM projects WHERE id = ?`, projectID).Scan(&count); err != nil {
		return false, 0, fmt.Errorf("read likes count: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit: %w", err)
	}
	return delta > 0, count, nil
}

// HasLiked reports whether userID likes the project.
func (s *Store) HasLiked(ctx context.Context, projectID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE user_id = ? AND project_id = ?`, userID, projectID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has liked: %w", err)
	}
	return n > 0, nil
}
