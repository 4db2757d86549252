// Package enrich drives question generation: it selects candidate articles
// per source, submits them to the model in capped batches, validates the
// output, and persists accepted questions.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"gpress/aggregator/internal/llm"
	"gpress/aggregator/internal/models"
	"gpress/aggregator/internal/store"
)

// BatchCap bounds how many articles per source go to the model in one
// cycle.
const BatchCap = 5

// QuestionGenerator produces questions for a batch, keyed by article ID.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, batch []llm.BatchArticle) (map[int64][]llm.GeneratedQuestion, error)
}

// Engine enriches candidate articles across every configured source.
type Engine struct {
	generator QuestionGenerator
	stores    []*store.ArticleStore
	questions *store.QuestionStore
}

// NewEngine builds an engine over the per-source article stores.
func NewEngine(generator QuestionGenerator, stores []*store.ArticleStore, questions *store.QuestionStore) *Engine {
	return &Engine{
		generator: generator,
		stores:    stores,
		questions: questions,
	}
}

// EnrichAll runs one enrichment pass over every source. A failed batch
// marks its candidates and the pass moves on to the next source.
func (e *Engine) EnrichAll(ctx context.Context) {
	for _, s := range e.stores {
		if ctx.Err() != nil {
			log.Info().Err(ctx.Err()).Msg("Enrichment cycle canceled")
			return
		}
		if err := e.EnrichSource(ctx, s); err != nil {
			log.Error().Err(err).Str("source", s.Source().Key).Msg("Enrichment failed for source")
		}
	}
}

// EnrichSource generates and persists questions for one source's candidate
// batch.
func (e *Engine) EnrichSource(ctx context.Context, s *store.ArticleStore) error {
	candidates, err := s.EnrichmentCandidates(ctx, BatchCap)
	if err != nil {
		return fmt.Errorf("failed to load candidates: %w", err)
	}
	if len(candidates) == 0 {
		log.Debug().Str("source", s.Source().Key).Msg("No enrichment candidates")
		return nil
	}

	batch := make([]llm.BatchArticle, 0, len(candidates))
	for _, a := range candidates {
		batch = append(batch, llm.BatchArticle{ID: a.ID, Title: a.Title, Source: s.Source().Name})
	}

	generated, err := e.generator.GenerateQuestions(ctx, batch)
	if err != nil {
		if errors.Is(err, llm.ErrExhausted) {
			// Terminal for the whole batch. Flag every candidate so the
			// next cycle can retry them explicitly.
			for _, a := range candidates {
				if markErr := s.MarkGenerationFailed(ctx, a.ID); markErr != nil {
					log.Error().Err(markErr).Int64("article_id", a.ID).Msg("Failed to flag article")
				}
			}
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	var enriched, failed int
	for _, a := range candidates {
		stored, err := e.persist(ctx, s, a, generated[a.ID])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Int64("article_id", a.ID).Msg("Failed to persist questions")
			failed++
			continue
		}
		if stored > 0 {
			enriched++
		} else {
			failed++
		}
	}

	log.Info().
		Str("source", s.Source().Key).
		Int("enriched", enriched).
		Int("failed", failed).
		Msg("Enrichment finished for source")
	return nil
}

// EnrichArticle generates questions for a single article on demand and
// returns the persisted set.
func (e *Engine) EnrichArticle(ctx context.Context, s *store.ArticleStore, a *models.Article) ([]models.Question, error) {
	generated, err := e.generator.GenerateQuestions(ctx, []llm.BatchArticle{
		{ID: a.ID, Title: a.Title, Source: s.Source().Name},
	})
	if err != nil {
		if errors.Is(err, llm.ErrExhausted) {
			if markErr := s.MarkGenerationFailed(ctx, a.ID); markErr != nil {
				log.Error().Err(markErr).Int64("article_id", a.ID).Msg("Failed to flag article")
			}
		}
		return nil, err
	}

	if _, err := e.persist(ctx, s, *a, generated[a.ID]); err != nil {
		return nil, err
	}
	return e.questions.ListByArticle(ctx, a.ID)
}

// persist validates the model output for one article and stores it. An
// article the model omitted, or whose every question failed validation,
// gets the failure flag instead.
func (e *Engine) persist(ctx context.Context, s *store.ArticleStore, a models.Article, generated []llm.GeneratedQuestion) (int, error) {
	questions := validQuestions(s, a, generated)
	if len(questions) == 0 {
		if len(generated) > 0 {
			log.Warn().Int64("article_id", a.ID).Msg("All generated questions failed validation")
		}
		return 0, s.MarkGenerationFailed(ctx, a.ID)
	}

	if _, err := e.questions.ReplaceForArticle(ctx, a.ID, questions); err != nil {
		return 0, err
	}
	return len(questions), s.MarkQuestionsGenerated(ctx, a.ID)
}

// validQuestions filters model output down to well-formed questions whose
// correct answer is one of the offered options. Repeated question text is
// dropped so a duplicate never aborts the stored set's unique constraint.
func validQuestions(s *store.ArticleStore, a models.Article, generated []llm.GeneratedQuestion) []models.Question {
	questions := make([]models.Question, 0, len(generated))
	seen := make(map[string]bool, len(generated))
	for _, g := range generated {
		if g.QuestionText == "" || len(g.Options) == 0 {
			continue
		}
		if seen[g.QuestionText] {
			log.Warn().Int64("article_id", a.ID).Str("question", g.QuestionText).Msg("Discarding duplicate question text")
			continue
		}
		if !contains(g.Options, g.CorrectAnswer) {
			log.Warn().Int64("article_id", a.ID).Str("question", g.QuestionText).Msg("Discarding question with answer outside options")
			continue
		}
		seen[g.QuestionText] = true
		questions = append(questions, models.Question{
			ArticleID:          a.ID,
			ArticleSourceModel: s.Source().ModelName,
			ArticleSource:      s.Source().Name,
			ArticleTitle:       a.Title,
			Question:           g.QuestionText,
			Options:            models.StringList(g.Options),
			CorrectAnswer:      g.CorrectAnswer,
		})
	}
	return questions
}

func contains(options []string, answer string) bool {
	for _, o := range options {
		if o == answer {
			return true
		}
	}
	return false
}
