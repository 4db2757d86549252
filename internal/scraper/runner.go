// Package scraper invokes the per-source external scraper processes and
// parses their output. A scraper is an opaque program that writes a single
// JSON array of raw article records to stdout; stderr carries diagnostics
// and a zero exit code signals success regardless of stderr content.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"gpress/aggregator/internal/sources"
)

// RawArticle is one record emitted by a scraper. All fields except title
// and link are optional; Date and PublishedAt are alternative spellings of
// the publication timestamp.
type RawArticle struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
	ImageURL    string `json:"imageUrl"`
	Content     string `json:"content"`
	Date        string `json:"date"`
	PublishedAt string `json:"publishedAt"`
}

// DateString returns whichever publication date field the scraper filled in.
func (r RawArticle) DateString() string {
	if r.Date != "" {
		return r.Date
	}
	return r.PublishedAt
}

// Runner executes scraper scripts with a hard per-process deadline.
type Runner struct {
	interpreter string
	scrapersDir string
	timeout     time.Duration
}

// NewRunner creates a runner resolving scripts against scrapersDir. A
// timeout <= 0 disables the deadline.
func NewRunner(scrapersDir string, timeout time.Duration) *Runner {
	return &Runner{
		interpreter: "python3",
		scrapersDir: scrapersDir,
		timeout:     timeout,
	}
}

// Run invokes the scraper for src and returns its parsed output. The
// process is killed when the deadline expires; any failure (spawn, non-zero
// exit, timeout, unparseable stdout) is a hard failure for this source.
func (r *Runner) Run(ctx context.Context, src sources.Source) ([]RawArticle, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.interpreter, src.ScriptPath(r.scrapersDir))
	// CommandContext kills only the direct process. A child the scraper
	// spawned can keep the stdout pipe open past the deadline; WaitDelay
	// bounds how long Run waits for the pipes after the kill.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("scraper for %s exceeded deadline after %s: %w", src.Key, time.Since(start).Round(time.Second), ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("scraper for %s exited with code %d: %s", src.Key, exitErr.ExitCode(), truncate(stderr.String(), 500))
		}
		return nil, fmt.Errorf("failed to run scraper for %s: %w", src.Key, err)
	}

	if stderr.Len() > 0 {
		log.Debug().
			Str("source", src.Key).
			Str("stderr", truncate(stderr.String(), 500)).
			Msg("Scraper diagnostics")
	}

	articles, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("scraper for %s produced unparseable output: %w", src.Key, err)
	}

	log.Info().
		Str("source", src.Key).
		Int("records", len(articles)).
		Dur("duration", time.Since(start)).
		Msg("Scraper finished")

	return articles, nil
}

// Parse decodes a scraper's stdout into raw article records.
func Parse(data []byte) ([]RawArticle, error) {
	var articles []RawArticle
	if err := json.Unmarshal(bytes.TrimSpace(data), &articles); err != nil {
		return nil, fmt.Errorf("expected a JSON array of article records: %w", err)
	}
	return articles, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
