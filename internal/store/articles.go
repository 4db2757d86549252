// Package store provides the persistence adapters for articles and
// questions. An ArticleStore is bound to a single source at construction
// and scopes every query by that source's key; one instance exists per
// configured source.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"gpress/aggregator/internal/database"
	"gpress/aggregator/internal/models"
	"gpress/aggregator/internal/sources"
)

// ArticleStore persists articles for exactly one source.
type ArticleStore struct {
	db  *database.DB
	src sources.Source
}

// NewArticleStore creates the store adapter for src.
func NewArticleStore(db *database.DB, src sources.Source) *ArticleStore {
	return &ArticleStore{db: db, src: src}
}

// Source returns the source this store is bound to.
func (s *ArticleStore) Source() sources.Source {
	return s.src
}

// IsDuplicate reports whether err is a unique-constraint violation, i.e.
// another writer inserted the same (source, link) first.
func IsDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// FindByLink looks up an article by its normalized link. Returns nil when
// no article exists.
func (s *ArticleStore) FindByLink(ctx context.Context, link string) (*models.Article, error) {
	var a models.Article
	err := s.db.GetContext(ctx, &a,
		`SELECT * FROM articles WHERE source = ? AND link = ?`, s.src.Key, link)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by link: %w", err)
	}
	return &a, nil
}

// FindByID looks up an article by id within this source. Returns nil when
// no article exists.
func (s *ArticleStore) FindByID(ctx context.Context, id int64) (*models.Article, error) {
	var a models.Article
	err := s.db.GetContext(ctx, &a,
		`SELECT * FROM articles WHERE source = ? AND id = ?`, s.src.Key, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by id: %w", err)
	}
	return &a, nil
}

// Insert stores a new article and sets its ID. A duplicate (source, link)
// surfaces as an error satisfying IsDuplicate.
func (s *ArticleStore) Insert(ctx context.Context, a *models.Article) error {
	now := time.Now().UTC()
	a.Source = s.src.Key
	a.CreatedAt = now
	a.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (source, title, link, description, image_url, content, pub_date,
			categories, is_current_affair, current_affairs_category,
			questions_generation_failed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Source, a.Title, a.Link, a.Description, a.ImageURL, a.Content, a.PubDate,
		a.Categories, a.IsCurrentAffair, a.CurrentAffairsCategory,
		a.QuestionsGenerationFailed, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}

	a.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted article id: %w", err)
	}
	return nil
}

// Update persists the mutable scraped fields of an existing article.
func (s *ArticleStore) Update(ctx context.Context, a *models.Article) error {
	a.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET title = ?, description = ?, image_url = ?, content = ?, pub_date = ?,
			categories = ?, is_current_affair = ?, current_affairs_category = ?, updated_at = ?
		WHERE id = ? AND source = ?`,
		a.Title, a.Description, a.ImageURL, a.Content, a.PubDate,
		a.Categories, a.IsCurrentAffair, a.CurrentAffairsCategory, a.UpdatedAt,
		a.ID, s.src.Key)
	if err != nil {
		return fmt.Errorf("failed to update article %d: %w", a.ID, err)
	}
	return nil
}

// EnrichmentCandidates selects up to limit articles that still need
// question generation: no questions yet or a previous failed cycle, with a
// usable title and link. Newest scrapes first.
func (s *ArticleStore) EnrichmentCandidates(ctx context.Context, limit int) ([]models.Article, error) {
	var candidates []models.Article
	err := s.db.SelectContext(ctx, &candidates, `
		SELECT a.* FROM articles a
		WHERE a.source = ?
		  AND a.title != '' AND a.link != ''
		  AND (a.questions_generation_failed = 1
		       OR NOT EXISTS (SELECT 1 FROM questions q WHERE q.article_id = a.id))
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?`, s.src.Key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select enrichment candidates: %w", err)
	}
	return candidates, nil
}

// MarkGenerationFailed sets the sticky failure flag; the article stays
// eligible for retry in future enrichment cycles until a success clears it.
func (s *ArticleStore) MarkGenerationFailed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET questions_generation_failed = 1, updated_at = ?
		WHERE id = ? AND source = ?`,
		time.Now().UTC(), id, s.src.Key)
	if err != nil {
		return fmt.Errorf("failed to mark article %d generation failed: %w", id, err)
	}
	return nil
}

// MarkQuestionsGenerated clears the failure flag and stamps the generation
// time after a successful question batch.
func (s *ArticleStore) MarkQuestionsGenerated(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET questions_generation_failed = 0, last_generated_questions_at = ?, updated_at = ?
		WHERE id = ? AND source = ?`,
		now, now, id, s.src.Key)
	if err != nil {
		return fmt.Errorf("failed to mark article %d questions generated: %w", id, err)
	}
	return nil
}

// IDsOlderThan returns the ids of this source's articles published before
// the cutoff.
func (s *ArticleStore) IDsOlderThan(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM articles WHERE source = ? AND pub_date < ?`, s.src.Key, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired article ids: %w", err)
	}
	return ids, nil
}

// DeleteByIDs removes the given articles from this source's collection.
func (s *ArticleStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM articles WHERE source = ? AND id IN (?)`, s.src.Key, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build article delete query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete articles: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}
