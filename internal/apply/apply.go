// Package apply implements the batch apply orchestrator: one remote
// call per resource spec, isolated failures, and outcomes that always
// preserve input order.
package apply

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pragmatiks/pragma/internal/api"
	"github.com/pragmatiks/pragma/internal/manifest"
	"github.com/pragmatiks/pragma/internal/telemetry"
)

// Status classifies the outcome of applying one spec.
type Status string

const (
	StatusApplied Status = "applied"
	StatusDrafted Status = "drafted"
	StatusFailed  Status = "failed"
)

// Outcome is the result of applying one resource spec.
type Outcome struct {
	Spec   manifest.ResourceSpec
	Status Status
	// State is the lifecycle state reported by the platform on success.
	State string
	Err   error
}

// BatchResult aggregates the outcomes of one apply invocation, in
// input order.
type BatchResult struct {
	ID       string
	Mode     api.Mode
	Outcomes []Outcome
}

// Counts returns the number of applied, drafted, and failed outcomes.
func (b *BatchResult) Counts() (applied, drafted, failed int) {
	for _, o := range b.Outcomes {
		switch o.Status {
		case StatusApplied:
			applied++
		case StatusDrafted:
			drafted++
		case StatusFailed:
			failed++
		}
	}
	return applied, drafted, failed
}

// Failed returns the number of failed outcomes.
func (b *BatchResult) Failed() int {
	_, _, failed := b.Counts()
	return failed
}

// Applier is the remote operation the orchestrator drives.
type Applier interface {
	ApplyResource(ctx context.Context, res api.Resource, mode api.Mode) (*api.Resource, error)
}

// Options configures one apply batch.
type Options struct {
	Mode api.Mode
	// Parallelism bounds concurrent remote calls; values below 1 mean
	// sequential.
	Parallelism int
}

// Orchestrator applies validated resource specs against the platform.
type Orchestrator struct {
	client Applier
	logger *slog.Logger
}

// New creates an orchestrator over the given remote client.
func New(client Applier, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{client: client, logger: logger}
}

// Apply sends each spec to the platform independently. A failure on
// one spec never prevents attempting the rest, and no call is retried.
// Outcomes are written by input index, so the result order matches the
// input regardless of completion order.
func (o *Orchestrator) Apply(ctx context.Context, specs []manifest.ResourceSpec, opts Options) *BatchResult {
	if opts.Mode == "" {
		opts.Mode = api.ModeDeploy
	}
	batch := &BatchResult{
		ID:       telemetry.NewID(),
		Mode:     opts.Mode,
		Outcomes: make([]Outcome, len(specs)),
	}
	logger := o.logger.With("batch_id", batch.ID, "mode", string(opts.Mode))
	logger.Debug("apply batch started", "specs", len(specs))

	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, spec := range specs {
		g.Go(func() error {
			batch.Outcomes[i] = o.applyOne(ctx, spec, opts.Mode, logger)
			return nil
		})
	}
	_ = g.Wait()

	applied, drafted, failed := batch.Counts()
	logger.Debug("apply batch finished",
		"applied", applied, "drafted", drafted, "failed", failed)
	return batch
}

func (o *Orchestrator) applyOne(ctx context.Context, spec manifest.ResourceSpec, mode api.Mode, logger *slog.Logger) Outcome {
	// A cancelled invocation leaves earlier outcomes intact and marks
	// the remaining specs failed without touching the platform.
	if err := ctx.Err(); err != nil {
		return Outcome{Spec: spec, Status: StatusFailed, Err: err}
	}

	res, err := o.client.ApplyResource(ctx, api.Resource{
		Provider: spec.Provider,
		Resource: spec.Resource,
		Name:     spec.Name,
		Config:   spec.Config,
	}, mode)
	if err != nil {
		logger.Debug("apply failed", "spec", spec.ID(), "kind", string(api.KindOf(err)), "error", err)
		return Outcome{Spec: spec, Status: StatusFailed, Err: err}
	}

	status := StatusApplied
	if mode == api.ModeDraft {
		status = StatusDrafted
	}
	logger.Debug("apply succeeded", "spec", spec.ID(), "state", res.LifecycleState)
	return Outcome{Spec: spec, Status: status, State: res.LifecycleState}
}
