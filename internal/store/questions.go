package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gpress/aggregator/internal/database"
	"gpress/aggregator/internal/models"
)

// QuestionStore persists generated questions. Questions for every source
// share one table; each is tied to its owning article by article_id.
type QuestionStore struct {
	db *database.DB
}

// NewQuestionStore creates a question store.
func NewQuestionStore(db *database.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

// ReplaceForArticle atomically replaces the question set owned by an
// article: any existing questions are deleted and the new batch inserted in
// one transaction, so a failure leaves the prior set fully intact. Returns
// the inserted question ids.
func (s *QuestionStore) ReplaceForArticle(ctx context.Context, articleID int64, questions []models.Question) ([]int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin question replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE article_id = ?`, articleID); err != nil {
		return nil, fmt.Errorf("failed to delete existing questions for article %d: %w", articleID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO questions (article_id, article_source_model, article_source, article_title,
			question, options, correct_answer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare question insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		res, err := stmt.ExecContext(ctx,
			articleID, q.ArticleSourceModel, q.ArticleSource, q.ArticleTitle,
			q.Question, q.Options, q.CorrectAnswer, now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert question for article %d: %w", articleID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get inserted question id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit question replace for article %d: %w", articleID, err)
	}
	return ids, nil
}

// ListByArticle returns an article's questions in insertion order.
func (s *QuestionStore) ListByArticle(ctx context.Context, articleID int64) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.SelectContext(ctx, &questions,
		`SELECT * FROM questions WHERE article_id = ? ORDER BY id ASC`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions for article %d: %w", articleID, err)
	}
	return questions, nil
}

// DeleteByArticleIDs removes all questions owned by the given articles.
func (s *QuestionStore) DeleteByArticleIDs(ctx context.Context, articleIDs []int64) (int64, error) {
	if len(articleIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM questions WHERE article_id IN (?)`, articleIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build question delete query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete questions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}
