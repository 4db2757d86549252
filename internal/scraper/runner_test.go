package scraper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpress/aggregator/internal/sources"
)

func shRunner(t *testing.T, script string, timeout time.Duration) (*Runner, sources.Source) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scraper.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))

	r := NewRunner(dir, timeout)
	r.interpreter = "sh"
	return r, sources.Source{Key: "test", Name: "Test", ModelName: "Test", Script: "scraper.sh"}
}

func TestRunParsesStdout(t *testing.T) {
	r, src := shRunner(t, `echo '[{"title":"T","link":"https://x/a","date":"2024-02-01"}]'`, time.Minute)

	articles, err := r.Run(context.Background(), src)

	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "T", articles[0].Title)
	assert.Equal(t, "https://x/a", articles[0].Link)
	assert.Equal(t, "2024-02-01", articles[0].DateString())
}

func TestRunIgnoresStderrOnSuccess(t *testing.T) {
	r, src := shRunner(t, `echo "diagnostic noise" >&2; echo '[]'`, time.Minute)

	articles, err := r.Run(context.Background(), src)

	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestRunNonZeroExitIsHardFailure(t *testing.T) {
	r, src := shRunner(t, `echo "boom" >&2; exit 3`, time.Minute)

	_, err := r.Run(context.Background(), src)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 3")
	assert.Contains(t, err.Error(), "boom")
}

func TestRunUnparseableOutputIsHardFailure(t *testing.T) {
	r, src := shRunner(t, `echo 'not json at all'`, time.Minute)

	_, err := r.Run(context.Background(), src)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable output")
}

func TestRunKillsProcessOnDeadline(t *testing.T) {
	r, src := shRunner(t, `sleep 30; echo '[]'`, 100*time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), src)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadline")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunDeadlineWithOrphanedChild(t *testing.T) {
	// The backgrounded child inherits the stdout pipe and outlives the
	// interpreter; Run must still return shortly after the deadline
	// instead of waiting for the whole process tree.
	r, src := shRunner(t, `sleep 30 & sleep 30; echo '[]'`, 100*time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), src)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestParseAcceptsAlternativeDateField(t *testing.T) {
	articles, err := Parse([]byte(`[{"title":"T","link":"l","publishedAt":"2024-03-04T10:00:00Z"}]`))

	require.NoError(t, err)
	assert.Equal(t, "2024-03-04T10:00:00Z", articles[0].DateString())
}

func TestParseRejectsNonArray(t *testing.T) {
	_, err := Parse([]byte(`{"title":"T"}`))

	assert.Error(t, err)
}
