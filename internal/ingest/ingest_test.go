package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpress/aggregator/internal/database"
	"gpress/aggregator/internal/scraper"
	"gpress/aggregator/internal/sources"
	"gpress/aggregator/internal/store"
)

func testStore(t *testing.T) *store.ArticleStore {
	t.Helper()

	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	src, ok := sources.ByKey("hindu")
	require.True(t, ok)

	return store.NewArticleStore(db, src)
}

func testEngine() *Engine {
	e := NewEngine(nil, nil)
	e.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func TestApplyCreatesArticle(t *testing.T) {
	s := testStore(t)
	e := testEngine()

	stats, err := e.Apply(context.Background(), s, []scraper.RawArticle{
		{
			Title:       "Budget 2024 announced",
			Link:        "https://example.com/budget-2024",
			Description: "The government policy outlines new finance measures",
			Date:        "2024-02-01 09:30:00",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 1}, stats)

	a, err := s.FindByLink(context.Background(), "https://example.com/budget-2024")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "hindu", a.Source)
	assert.True(t, a.IsCurrentAffair)
	assert.Equal(t, "Polity & Governance", a.CurrentAffairsCategory)
	assert.Contains(t, a.Categories, "Economy")
	assert.Equal(t, 2024, a.PubDate.UTC().Year())
}

func TestApplySkipsInvalidRecords(t *testing.T) {
	s := testStore(t)
	e := testEngine()

	stats, err := e.Apply(context.Background(), s, []scraper.RawArticle{
		{Link: "https://example.com/no-title", Date: "2024-02-01"},
		{Title: "No link", Date: "2024-02-01"},
		{Title: "No date", Link: "https://example.com/no-date"},
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 3}, stats)
}

func TestApplySkipsPlaceholderTitles(t *testing.T) {
	s := testStore(t)
	e := testEngine()

	stats, err := e.Apply(context.Background(), s, []scraper.RawArticle{
		{
			Title: "Image Used For Representation Purposes Only",
			Link:  "https://example.com/stub",
			Date:  "2024-02-01",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 1}, stats)
}

func TestApplyDeduplicatesByNormalizedLink(t *testing.T) {
	s := testStore(t)
	e := testEngine()

	first := scraper.RawArticle{
		Title: "Same story",
		Link:  "https://example.com/story?utm_source=feed",
		Date:  "2024-02-01",
	}
	second := first
	second.Link = "https://example.com/story#section"

	stats, err := e.Apply(context.Background(), s, []scraper.RawArticle{first, second})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Skipped)

	a, err := s.FindByLink(context.Background(), "https://example.com/story")
	require.NoError(t, err)
	require.NotNil(t, a)
}

func TestApplyUnchangedRescrapeIsSkipped(t *testing.T) {
	s := testStore(t)
	e := testEngine()
	ctx := context.Background()

	rec := scraper.RawArticle{
		Title:       "Olympics medal tally rises",
		Link:        "https://example.com/olympics",
		Description: "India adds two medals at the olympics",
		Date:        "2024-02-01 10:00:00",
	}

	stats, err := e.Apply(ctx, s, []scraper.RawArticle{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)

	before, err := s.FindByLink(ctx, "https://example.com/olympics")
	require.NoError(t, err)

	stats, err = e.Apply(ctx, s, []scraper.RawArticle{rec})
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 1}, stats)

	after, err := s.FindByLink(ctx, "https://example.com/olympics")
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestApplyUpdatesChangedFields(t *testing.T) {
	s := testStore(t)
	e := testEngine()
	ctx := context.Background()

	_, err := e.Apply(ctx, s, []scraper.RawArticle{
		{Title: "Draft headline", Link: "https://example.com/evolving", Date: "2024-02-01"},
	})
	require.NoError(t, err)

	stats, err := e.Apply(ctx, s, []scraper.RawArticle{
		{
			Title:       "Final headline on defence security",
			Link:        "https://example.com/evolving",
			Description: "The army conducted exercises",
			ImageURL:    "https://example.com/img.jpg",
			Date:        "2024-02-01",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Updated: 1}, stats)

	a, err := s.FindByLink(ctx, "https://example.com/evolving")
	require.NoError(t, err)
	assert.Equal(t, "Final headline on defence security", a.Title)
	assert.Equal(t, "The army conducted exercises", a.Description.String)
	assert.Equal(t, "https://example.com/img.jpg", a.ImageURL.String)
	assert.True(t, a.IsCurrentAffair)
	assert.Contains(t, a.Categories, "Defence & Security")
}

func TestApplyNeverClobbersExistingDescription(t *testing.T) {
	s := testStore(t)
	e := testEngine()
	ctx := context.Background()

	_, err := e.Apply(ctx, s, []scraper.RawArticle{
		{
			Title:       "Stable story",
			Link:        "https://example.com/stable",
			Description: "Original description",
			Date:        "2024-02-01",
		},
	})
	require.NoError(t, err)

	_, err = e.Apply(ctx, s, []scraper.RawArticle{
		{Title: "Stable story", Link: "https://example.com/stable", Date: "2024-02-01"},
	})
	require.NoError(t, err)

	a, err := s.FindByLink(ctx, "https://example.com/stable")
	require.NoError(t, err)
	assert.Equal(t, "Original description", a.Description.String)
}

func TestParseDateFallsBackToNow(t *testing.T) {
	e := testEngine()

	parsed := e.parseDate("not a date at all")
	assert.Equal(t, e.now(), parsed)

	parsed = e.parseDate("2024-03-15")
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), parsed)
}

func TestNormalizeLink(t *testing.T) {
	assert.Equal(t, "https://example.com/a", NormalizeLink("https://example.com/a?x=1&y=2"))
	assert.Equal(t, "https://example.com/a", NormalizeLink("https://example.com/a#frag"))
	assert.Equal(t, "https://example.com/a", NormalizeLink("  https://example.com/a  "))
}
