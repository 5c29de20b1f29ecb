package community

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Project is a shared scene.
type Project struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Code          string    `json:"code"`
	UserID        string    `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	IsPublic      bool      `json:"is_public"`
	Tags          []string  `json:"tags"`
	VideoURL      string    `json:"video_url,omitempty"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	ViewsCount    int       `json:"views_count"`
}

// NewProject is the caller-supplied part of a project.
type NewProject struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Code         string   `json:"code"`
	IsPublic     bool     `json:"is_public"`
	Tags         []string `json:"tags"`
	VideoURL     string   `json:"video_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
}

// ProjectUpdate changes the non-nil fields only.
type ProjectUpdate struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	Code         *string   `json:"code"`
	IsPublic     *bool     `json:"is_public"`
	Tags         *[]string `json:"tags"`
	VideoURL     *string   `json:"video_url"`
	ThumbnailURL *string   `json:"thumbnail_url"`
}

// Sort orders public listings.
type Sort string

const (
	SortRecent   Sort = "recent"   // newest first
	SortPopular  Sort = "popular"  // most liked first
	SortTrending Sort = "trending" // most liked, then most viewed
)

// ParseSort maps a query value to a Sort. Unknown values fall back to
// SortRecent.
func ParseSort(s string) Sort {
	switch Sort(strings.ToLower(s)) {
	case SortPopular:
		return SortPopular
	case SortTrending:
		return SortTrending
	default:
		return SortRecent
	}
}

func (s Sort) orderBy() string {
	switch s {
	case SortPopular:
		return "likes_count DESC, created_at DESC"
	case SortTrending:
		return "likes_count DESC, views_count DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListOptions configures List.
type ListOptions struct {
	Sort   Sort
	Tag    string
	Limit  int // 0 = DefaultLimit, capped at MaxLimit
	Offset int
}

const projectColumns = `id, title, description, code, user_id, created_at, updated_at,
	is_public, tags, video_url, thumbnail_url, likes_count, comments_count, views_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var (
		p                Project
		created, updated int64
		tags             string
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Code, &p.UserID, &created, &updated,
		&p.IsPublic, &tags, &p.VideoURL, &p.ThumbnailURL, &p.LikesCount, &p.CommentsCount, &p.ViewsCount)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", p.ID, err)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

func encodeTags(tags []string) (string, error) {
	clean := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		clean = append(clean, t)
	}
	b, err := json.Marshal(clean)
	return string(b), err
}

func validateProject(userID, title, code string) error {
	switch {
	case strings.TrimSpace(userID) == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidProject)
	case strings.TrimSpace(title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidProject)
	case strings.TrimSpace(code) == "":
		return fmt.Errorf("%w: code is required", ErrInvalidProject)
	}
	return nil
}

// Create stores a new project owned by userID.
func (s *Store) Create(ctx context.Context, userID string, np NewProject) (*Project, error) {
	if err := validateProject(userID, np.Title, np.Code); err != nil {
		return nil, err
	}
	tags, err := encodeTags(np.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	id := uuid.NewString()
	now := s.now().UnixNano()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, title, description, code, user_id, created_at, updated_at, is_public, tags, video_url, thumbnail_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, np.Title, np.Description, np.Code, userID, now, now, np.IsPublic, tags, np.VideoURL, np.ThumbnailURL)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.get(ctx, `id = ?`, id)
}

// Get returns a project that is public or owned by viewer.
func (s *Store) Get(ctx context.Context, id, viewer string) (*Project, error) {
	return s.get(ctx, `id = ? AND (is_public = 1 OR user_id = ?)`, id, viewer)
}

func (s *Store) get(ctx context.Context, where string, args ...any) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE `+where, args...)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// Update applies upd to a project owned by userID.
func (s *Store) Update(ctx context.Context, id, userID string, upd ProjectUpdate) (*Project, error) {
	p, err := s.get(ctx, `id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Code != nil {
		p.Code = *upd.Code
	}
	if upd.IsPublic != nil {
		p.IsPublic = *upd.IsPublic
	}
	if upd.Tags != nil {
		p.Tags = *upd.Tags
	}
	if upd.VideoURL != nil {
		p.VideoURL = *upd.VideoURL
	}
	if upd.ThumbnailURL != nil {
		p.ThumbnailURL = *upd.ThumbnailURL
	}
	if err := validateProject(userID, p.Title, p.Code); err != nil {
		return nil, err
	}
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE projects SET title = ?, description = ?, code = ?, is_public = ?, tags = ?,
		 video_url = ?, thumbnail_url = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		p.Title, p.Description, p.Code, p.IsPublic, tags, p.VideoURL, p.ThumbnailURL, s.now().UnixNano(), id, userID)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return s.get(ctx, `id = ?`, id)
}

// Delete removes a project owned by userID, and its likes.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps the view counter.
func (s *Store) IncrementViews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET views_count = views_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns public projects.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Project, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := max(opts.Offset, 0)

	query := `SELECT ` + projectColumns + ` FROM projects WHERE is_public = 1`
	args := []any{}
	if opts.Tag != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(projects.tags) WHERE json_each.value = ?)`
		args = append(args, opts.Tag)
	}
	query += ` ORDER BY ` + ParseSort(string(opts.Sort)).orderBy() + ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return s.query(ctx, query, args...)
}

// ListByUser returns every project owned by userID, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Project, error) {
	return s.query(ctx, `SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	out := []*Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	return out, nil
}
