package app

import (
	"fmt"
	"log/slog"

	"genesift/domain/core"
	"genesift/internal/config"
	"genesift/internal/rng"
	"genesift/ports"
)

// CodeVersion is recorded in every run manifest
const CodeVersion = "0.1.0"

// RunContext carries the per-run identity, settings and random streams
type RunContext struct {
	RunID  core.RunID
	Seed   int64
	Config config.AnalysisConfig
	Logger *slog.Logger
	RNG    ports.RNGPort
}

// NewRunContext creates a run with a fresh id and streams seeded from cfg.Seed
func NewRunContext(cfg config.AnalysisConfig, logger *slog.Logger) *RunContext {
	if logger == nil {
		logger = slog.Default()
	}
	runID := core.NewRunID()
	return &RunContext{
		RunID:  runID,
		Seed:   cfg.Seed,
		Config: cfg,
		Logger: logger.With("run_id", runID.String()),
		RNG:    rng.New(cfg.Seed),
	}
}

// ConfigHash fingerprints the settings that change numerical results.
// Workers only changes scheduling and is left out.
func (rc *RunContext) ConfigHash() core.Hash {
	a := rc.Config
	a.Workers = 0
	return core.NewHash([]byte(fmt.Sprintf("%+v", a)))
}
