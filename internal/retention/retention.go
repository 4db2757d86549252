// Package retention deletes articles older than a configured window,
// together with their questions.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"gpress/aggregator/internal/store"
)

// Sweeper removes expired articles across every configured source.
type Sweeper struct {
	stores    []*store.ArticleStore
	questions *store.QuestionStore

	// now is swappable in tests.
	now func() time.Time
}

// NewSweeper builds a sweeper over the per-source article stores.
func NewSweeper(stores []*store.ArticleStore, questions *store.QuestionStore) *Sweeper {
	return &Sweeper{
		stores:    stores,
		questions: questions,
		now:       time.Now,
	}
}

// Result aggregates one sweep pass.
type Result struct {
	ArticlesDeleted  int64
	QuestionsDeleted int64
}

// Sweep deletes every article published before midnight daysToKeep days
// ago, along with its questions. A source's failure is logged and isolated.
func (s *Sweeper) Sweep(ctx context.Context, daysToKeep int) Result {
	cutoff := s.Cutoff(daysToKeep)
	log.Info().Time("cutoff", cutoff).Int("days", daysToKeep).Msg("Starting retention sweep")

	var result Result
	for _, as := range s.stores {
		if ctx.Err() != nil {
			log.Info().Err(ctx.Err()).Msg("Retention sweep canceled")
			return result
		}

		articles, questions, err := s.sweepSource(ctx, as, cutoff)
		if err != nil {
			log.Error().Err(err).Str("source", as.Source().Key).Msg("Retention sweep failed for source")
			continue
		}
		result.ArticlesDeleted += articles
		result.QuestionsDeleted += questions
	}

	log.Info().
		Int64("articles_deleted", result.ArticlesDeleted).
		Int64("questions_deleted", result.QuestionsDeleted).
		Msg("Retention sweep finished")
	return result
}

// sweepSource deletes questions before their articles so a partial failure
// never strands questions without a parent.
func (s *Sweeper) sweepSource(ctx context.Context, as *store.ArticleStore, cutoff time.Time) (int64, int64, error) {
	ids, err := as.IDsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to select expired articles: %w", err)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	questions, err := s.questions.DeleteByArticleIDs(ctx, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete questions: %w", err)
	}

	articles, err := as.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, questions, fmt.Errorf("failed to delete articles: %w", err)
	}

	log.Debug().
		Str("source", as.Source().Key).
		Int64("articles", articles).
		Int64("questions", questions).
		Msg("Swept source")
	return articles, questions, nil
}

// Cutoff returns midnight daysToKeep days ago. Day boundaries keep the
// window stable within a calendar day regardless of sweep time.
func (s *Sweeper) Cutoff(daysToKeep int) time.Time {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, -daysToKeep)
}
