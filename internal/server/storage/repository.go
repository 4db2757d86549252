// Package storage provides the read-side queries backing the HTTP API.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gpress/aggregator/internal/database"
	"gpress/aggregator/internal/models"
)

// ArticleRepository defines the read operations the API serves.
type ArticleRepository interface {
	FetchArticles(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *int64) ([]models.Article, error)
	ListAll(ctx context.Context, page, limit int) ([]models.Article, int, error)
	ListBySource(ctx context.Context, source string, page, limit int) ([]models.Article, int, error)
	ListCurrentAffairs(ctx context.Context, page, limit int) ([]models.Article, int, error)
	Search(ctx context.Context, term string, page, limit int) ([]models.Article, int, error)
}

type sqlxRepository struct {
	db *database.DB
}

// NewRepository creates a repository over the given database.
func NewRepository(db *database.DB) ArticleRepository {
	return &sqlxRepository{db: db}
}

// FetchArticles retrieves articles created after a point in time, in stable
// (created_at, id) order for keyset pagination.
func (r *sqlxRepository) FetchArticles(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *int64) ([]models.Article, error) {
	var articles []models.Article
	var query string
	var args []any

	const baseQuery = `SELECT * FROM articles `
	const orderBy = ` ORDER BY created_at ASC, id ASC LIMIT ?`

	switch {
	case cursorTimestamp != nil && cursorID != nil:
		query = baseQuery + `WHERE (created_at > ?) OR (created_at = ? AND id > ?)` + orderBy
		args = append(args, cursorTimestamp.UTC(), cursorTimestamp.UTC(), *cursorID, limit)
	case since != nil:
		query = baseQuery + `WHERE created_at > ?` + orderBy
		args = append(args, since.UTC(), limit)
	default:
		return nil, fmt.Errorf("either 'since' or cursor parameters must be provided")
	}

	err := r.db.SelectContext(ctx, &articles, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Article{}, nil
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return articles, nil
}

// ListAll returns a page of every stored article. Articles that already
// have questions sort ahead of those that do not; within each group newest
// first.
func (r *sqlxRepository) ListAll(ctx context.Context, page, limit int) ([]models.Article, int, error) {
	return r.listPage(ctx,
		`SELECT a.* FROM articles a
		 ORDER BY EXISTS (SELECT 1 FROM questions q WHERE q.article_id = a.id) DESC,
		          a.pub_date DESC, a.id DESC
		 LIMIT ? OFFSET ?`,
		`SELECT COUNT(*) FROM articles`,
		nil, page, limit)
}

// ListBySource returns a page of one source's articles, newest first.
func (r *sqlxRepository) ListBySource(ctx context.Context, source string, page, limit int) ([]models.Article, int, error) {
	return r.listPage(ctx,
		`SELECT * FROM articles WHERE source = ? ORDER BY pub_date DESC, id DESC LIMIT ? OFFSET ?`,
		`SELECT COUNT(*) FROM articles WHERE source = ?`,
		[]any{source}, page, limit)
}

// ListCurrentAffairs returns a page of current-affairs articles. Articles
// that already have questions sort ahead of those that do not.
func (r *sqlxRepository) ListCurrentAffairs(ctx context.Context, page, limit int) ([]models.Article, int, error) {
	return r.listPage(ctx,
		`SELECT a.* FROM articles a
		 WHERE a.is_current_affair = 1
		 ORDER BY EXISTS (SELECT 1 FROM questions q WHERE q.article_id = a.id) DESC,
		          a.pub_date DESC, a.id DESC
		 LIMIT ? OFFSET ?`,
		`SELECT COUNT(*) FROM articles WHERE is_current_affair = 1`,
		nil, page, limit)
}

// Search returns a page of articles whose title or description contains the
// term, newest first. Matching is case-insensitive.
func (r *sqlxRepository) Search(ctx context.Context, term string, page, limit int) ([]models.Article, int, error) {
	pattern := "%" + term + "%"
	return r.listPage(ctx,
		`SELECT * FROM articles
		 WHERE title LIKE ? OR description LIKE ?
		 ORDER BY pub_date DESC, id DESC LIMIT ? OFFSET ?`,
		`SELECT COUNT(*) FROM articles WHERE title LIKE ? OR description LIKE ?`,
		[]any{pattern, pattern}, page, limit)
}

// listPage runs a paged select and its matching count query with shared
// filter arguments.
func (r *sqlxRepository) listPage(ctx context.Context, query, countQuery string, filterArgs []any, page, limit int) ([]models.Article, int, error) {
	offset := (page - 1) * limit

	var articles []models.Article
	args := append(append([]any{}, filterArgs...), limit, offset)
	if err := r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("database query failed: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, filterArgs...); err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}

	if articles == nil {
		articles = []models.Article{}
	}
	return articles, total, nil
}
