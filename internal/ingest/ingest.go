// Package ingest runs the per-source ingestion pipeline: scraper
// invocation, record filtering, deduplication by normalized link, keyword
// categorization, and idempotent insert/update against the article store.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"gpress/aggregator/internal/classifier"
	"gpress/aggregator/internal/models"
	"gpress/aggregator/internal/scraper"
	"gpress/aggregator/internal/sources"
	"gpress/aggregator/internal/store"
)

// placeholderTitleMarkers flags image-only syndication stubs whose titles
// are captions, not headlines. Matching is case-insensitive substring.
var placeholderTitleMarkers = []string{
	"image used for representation",
	"representational image",
	"representative image",
	"file photo",
	"photo gallery",
	"in pics:",
	"in pictures:",
	"watch video",
}

// dateLayouts are tried in order when parsing a scraped publication date.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Stats aggregates the outcome of one ingestion pass.
type Stats struct {
	Created int
	Updated int
	Skipped int
}

// Runner abstracts the scraper invocation so tests can feed records
// directly.
type Runner interface {
	Run(ctx context.Context, src sources.Source) ([]scraper.RawArticle, error)
}

// Engine ingests scraped articles for every configured source.
type Engine struct {
	runner Runner
	stores []*store.ArticleStore

	// now is swappable for the unparseable-date fallback in tests.
	now func() time.Time
}

// NewEngine builds an engine over the given per-source stores.
func NewEngine(runner Runner, stores []*store.ArticleStore) *Engine {
	return &Engine{
		runner: runner,
		stores: stores,
		now:    time.Now,
	}
}

// IngestAll runs ingestion for every source in registry order. A source's
// failure is logged and isolated; remaining sources still run.
func (e *Engine) IngestAll(ctx context.Context) {
	for _, s := range e.stores {
		if ctx.Err() != nil {
			log.Info().Err(ctx.Err()).Msg("Ingestion cycle canceled")
			return
		}

		stats, err := e.Ingest(ctx, s)
		if err != nil {
			log.Error().Err(err).Str("source", s.Source().Key).Msg("Ingestion failed for source")
			continue
		}

		log.Info().
			Str("source", s.Source().Key).
			Int("created", stats.Created).
			Int("updated", stats.Updated).
			Int("skipped", stats.Skipped).
			Msg("Ingestion finished for source")
	}
}

// Ingest runs the scraper for one source and applies its output.
func (e *Engine) Ingest(ctx context.Context, s *store.ArticleStore) (Stats, error) {
	records, err := e.runner.Run(ctx, s.Source())
	if err != nil {
		return Stats{}, fmt.Errorf("scrape failed: %w", err)
	}
	return e.Apply(ctx, s, records)
}

// Apply deduplicates, categorizes and persists raw records in emission
// order. Records are never rejected with an error; malformed ones count as
// skipped.
func (e *Engine) Apply(ctx context.Context, s *store.ArticleStore, records []scraper.RawArticle) (Stats, error) {
	var stats Stats

	for _, rec := range records {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		if rec.Title == "" || rec.Link == "" || rec.DateString() == "" {
			stats.Skipped++
			continue
		}
		if isPlaceholderTitle(rec.Title) {
			log.Debug().Str("source", s.Source().Key).Str("title", rec.Title).Msg("Skipping placeholder title")
			stats.Skipped++
			continue
		}

		link := NormalizeLink(rec.Link)

		existing, err := s.FindByLink(ctx, link)
		if err != nil {
			return stats, err
		}

		if existing != nil {
			updated, err := e.updateExisting(ctx, s, existing, rec)
			if err != nil {
				return stats, err
			}
			if updated {
				stats.Updated++
			} else {
				stats.Skipped++
			}
			continue
		}

		if err := e.insertNew(ctx, s, rec, link); err != nil {
			if store.IsDuplicate(err) {
				// Concurrent ingestion got there first; a benign skip.
				log.Warn().Str("source", s.Source().Key).Str("link", link).Msg("Duplicate link during insert")
				stats.Skipped++
				continue
			}
			return stats, err
		}
		stats.Created++
	}

	return stats, nil
}

// insertNew persists a previously unseen record with derived categories.
func (e *Engine) insertNew(ctx context.Context, s *store.ArticleStore, rec scraper.RawArticle, link string) error {
	categories := classifier.Classify(rec.Title, description(rec))

	a := models.NewArticle(s.Source().Key)
	a.Title = rec.Title
	a.Link = link
	a.Description = nullString(description(rec))
	a.ImageURL = nullString(rec.ImageURL)
	a.Content = nullString(rec.Content)
	a.PubDate = e.parseDate(rec.DateString())
	a.Categories = categories
	a.IsCurrentAffair, a.CurrentAffairsCategory = deriveCurrentAffair(categories)

	return s.Insert(ctx, a)
}

// updateExisting compares each mutable field and persists only when at
// least one changed, preserving createdAt semantics on unchanged re-scrapes.
func (e *Engine) updateExisting(ctx context.Context, s *store.ArticleStore, existing *models.Article, rec scraper.RawArticle) (bool, error) {
	changed := false

	if rec.Title != existing.Title {
		existing.Title = rec.Title
		changed = true
	}

	// Scraped fields only fill gaps: a previously stored description or
	// image is never clobbered by a null re-scrape.
	if desc := description(rec); desc != "" && !existing.Description.Valid {
		existing.Description = nullString(desc)
		changed = true
	}
	if rec.ImageURL != "" && !existing.ImageURL.Valid {
		existing.ImageURL = nullString(rec.ImageURL)
		changed = true
	}
	if rec.Content != "" && len(rec.Content) > len(existing.Content.String) {
		existing.Content = nullString(rec.Content)
		changed = true
	}

	if pubDate := e.parseDate(rec.DateString()); !sameDay(pubDate, existing.PubDate) {
		existing.PubDate = pubDate
		changed = true
	}

	if categories := classifier.Classify(existing.Title, existing.Description.String); !equalCategories(categories, existing.Categories) {
		existing.Categories = categories
		existing.IsCurrentAffair, existing.CurrentAffairsCategory = deriveCurrentAffair(categories)
		changed = true
	}

	if !changed {
		return false, nil
	}
	return true, s.Update(ctx, existing)
}

// NormalizeLink strips the query string and fragment; the result is the
// per-source dedup key.
func NormalizeLink(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return strings.TrimSpace(link)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// parseDate tries the known scraper layouts; unparseable input falls back
// to the current time since publication recency is approximate here.
func (e *Engine) parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return e.now().UTC()
}

// deriveCurrentAffair marks the article as a current affair when any
// non-General category matched; the first match becomes its category.
func deriveCurrentAffair(categories models.StringList) (bool, string) {
	for _, c := range categories {
		if c != models.CategoryGeneral {
			return true, c
		}
	}
	return false, models.CategoryGeneral
}

func isPlaceholderTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range placeholderTitleMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// description returns the preferred description text: the explicit field,
// falling back to the scraper's summary.
func description(rec scraper.RawArticle) string {
	if rec.Description != "" {
		return rec.Description
	}
	return rec.Summary
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func equalCategories(a, b models.StringList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
