// Package scheduler runs the ingestion and enrichment pipeline on a fixed
// interval and the retention sweep once a day.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gpress/aggregator/internal/enrich"
	"gpress/aggregator/internal/ingest"
	"gpress/aggregator/internal/retention"
)

const (
	pipelineCycleTimeout = 30 * time.Minute
	sweepCycleTimeout    = 5 * time.Minute
)

// Scheduler owns the periodic pipeline and sweep loops.
type Scheduler struct {
	ingester *ingest.Engine
	enricher *enrich.Engine
	sweeper  *retention.Sweeper

	pipelineInterval time.Duration
	sweepInterval    time.Duration
	retentionDays    int

	// running guards against overlapping pipeline cycles when one run
	// outlasts the interval.
	running sync.Mutex
}

// New builds a scheduler over the pipeline stages.
func New(ingester *ingest.Engine, enricher *enrich.Engine, sweeper *retention.Sweeper, pipelineInterval, sweepInterval time.Duration, retentionDays int) *Scheduler {
	return &Scheduler{
		ingester:         ingester,
		enricher:         enricher,
		sweeper:          sweeper,
		pipelineInterval: pipelineInterval,
		sweepInterval:    sweepInterval,
		retentionDays:    retentionDays,
	}
}

// Run executes one pipeline cycle immediately, then services both tickers
// until the context is canceled. Cycle failures are logged and the loop
// keeps going.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().
		Dur("pipeline_interval", s.pipelineInterval).
		Dur("sweep_interval", s.sweepInterval).
		Int("retention_days", s.retentionDays).
		Msg("Scheduler starting")

	s.RunPipelineCycle(ctx)
	if ctx.Err() != nil {
		return
	}

	pipeline := time.NewTicker(s.pipelineInterval)
	defer pipeline.Stop()
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()

	log.Info().Time("next_run", time.Now().Add(s.pipelineInterval)).Msg("Waiting for next pipeline cycle")

	for {
		select {
		case <-pipeline.C:
			s.RunPipelineCycle(ctx)
			log.Info().Time("next_run", time.Now().Add(s.pipelineInterval)).Msg("Waiting for next pipeline cycle")

		case <-sweep.C:
			s.RunSweepCycle(ctx)

		case <-ctx.Done():
			log.Info().Msg("Scheduler shutting down")
			return
		}
	}
}

// RunPipelineCycle executes one ingest-then-enrich pass under a cycle
// timeout. If a previous cycle is still in flight the call is skipped.
func (s *Scheduler) RunPipelineCycle(ctx context.Context) {
	if !s.running.TryLock() {
		log.Warn().Msg("Previous pipeline cycle still running, skipping")
		return
	}
	defer s.running.Unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, pipelineCycleTimeout)
	defer cancel()

	start := time.Now()
	log.Info().Msg("Starting pipeline cycle")

	s.ingester.IngestAll(cycleCtx)
	s.enricher.EnrichAll(cycleCtx)

	log.Info().Dur("duration", time.Since(start)).Msg("Pipeline cycle finished")
}

// RunSweepCycle executes one retention sweep under its own timeout.
func (s *Scheduler) RunSweepCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, sweepCycleTimeout)
	defer cancel()

	s.sweeper.Sweep(cycleCtx, s.retentionDays)
}
