package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpress/aggregator/internal/database"
	"gpress/aggregator/internal/enrich"
	"gpress/aggregator/internal/ingest"
	"gpress/aggregator/internal/retention"
	"gpress/aggregator/internal/scraper"
	"gpress/aggregator/internal/sources"
	"gpress/aggregator/internal/store"
)

type countingRunner struct {
	calls int
}

func (r *countingRunner) Run(_ context.Context, _ sources.Source) ([]scraper.RawArticle, error) {
	r.calls++
	return nil, nil
}

func testScheduler(t *testing.T, runner ingest.Runner) *Scheduler {
	t.Helper()

	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	src, ok := sources.ByKey("hindu")
	require.True(t, ok)
	stores := []*store.ArticleStore{store.NewArticleStore(db, src)}
	questions := store.NewQuestionStore(db)

	return New(
		ingest.NewEngine(runner, stores),
		enrich.NewEngine(nil, nil, questions),
		retention.NewSweeper(stores, questions),
		time.Hour,
		24*time.Hour,
		3,
	)
}

func TestRunPipelineCycleInvokesIngestion(t *testing.T) {
	runner := &countingRunner{}
	s := testScheduler(t, runner)

	s.RunPipelineCycle(context.Background())
	assert.Equal(t, 1, runner.calls)
}

func TestRunPipelineCycleSkipsWhenAlreadyRunning(t *testing.T) {
	runner := &countingRunner{}
	s := testScheduler(t, runner)

	s.running.Lock()
	defer s.running.Unlock()

	s.RunPipelineCycle(context.Background())
	assert.Zero(t, runner.calls)
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	runner := &countingRunner{}
	s := testScheduler(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}

func TestRunSweepCycle(t *testing.T) {
	s := testScheduler(t, &countingRunner{})

	// Empty database; the sweep must complete without error.
	s.RunSweepCycle(context.Background())
}
