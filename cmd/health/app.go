// ABOUTME: Wiring of the freshness engine, lock guard, and ingest pipeline from config.
// ABOUTME: Shared by every command that reconciles measurements.
package main

import (
	"fmt"

	"github.com/harperreed/health/internal/audit"
	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/ingest"
	"github.com/harperreed/health/internal/logging"
)

// newEngine builds the engine and lock guard described by the loaded config.
func newEngine() (*freshness.Engine, *freshness.Guard, error) {
	table, err := cfg.PriorityTable()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid tier overrides: %w", err)
	}
	gap, err := cfg.TieGap()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid primary_tie_gap: %w", err)
	}

	guard := freshness.NewGuard(locks,
		freshness.WithFailOpen(cfg.LockFailOpen),
		freshness.WithGuardLogger(logger),
	)
	engine := freshness.NewEngine(
		freshness.WithTable(table),
		freshness.WithPrimaryTieGap(gap),
		freshness.WithLockChecker(guard),
		freshness.WithSnapshotReader(db),
		freshness.WithLogger(logger),
	)
	return engine, guard, nil
}

// pipelineOptions are the ingest options every command shares.
func pipelineOptions() []ingest.Option {
	return []ingest.Option{
		ingest.WithMaxRetries(cfg.GetMaxRetries()),
		ingest.WithLogger(logger),
	}
}

// newPipeline builds an ingest pipeline that writes to the database and
// logs every decision.
func newPipeline(dryRun bool) (*ingest.Pipeline, error) {
	engine, guard, err := newEngine()
	if err != nil {
		return nil, err
	}
	opts := append(pipelineOptions(),
		ingest.WithRecorder(audit.Multi{db, audit.LogRecorder{Logger: logging.Component(logger, "audit")}}),
		ingest.WithSessions(db),
		ingest.WithDryRun(dryRun),
	)
	return ingest.New(engine, db, guard, opts...), nil
}
