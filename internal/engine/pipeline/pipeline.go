// Package pipeline implements the sequential release pipeline.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/zerr"
)

// Pipeline runs the release stages for one tag in their fixed order.
// The first failing stage aborts the remainder; later stages stay
// pending and nothing is published.
type Pipeline struct {
	plan      *domain.Plan
	executor  ports.Executor
	hasher    ports.Hasher
	cache     ports.CacheStore
	results   ports.ResultStore
	toolchain ports.ToolchainInstaller
	verifier  ports.Verifier
	publisher ports.Publisher
	tracer    ports.Tracer
	logger    ports.Logger

	mu          sync.RWMutex
	stageStatus map[domain.StageName]domain.StageStatus
}

// Deps bundles the ports a Pipeline runs against.
type Deps struct {
	Executor  ports.Executor
	Hasher    ports.Hasher
	Cache     ports.CacheStore
	Results   ports.ResultStore
	Toolchain ports.ToolchainInstaller
	Verifier  ports.Verifier
	Publisher ports.Publisher
	Tracer    ports.Tracer
	Logger    ports.Logger
}

// New creates a Pipeline for the given plan. All stages start out
// pending.
func New(plan *domain.Plan, deps Deps) (*Pipeline, error) {
	if plan == nil {
		return nil, zerr.Wrap(domain.ErrInvalidConfig, "plan is required")
	}

	p := &Pipeline{
		plan:        plan,
		executor:    deps.Executor,
		hasher:      deps.Hasher,
		cache:       deps.Cache,
		results:     deps.Results,
		toolchain:   deps.Toolchain,
		verifier:    deps.Verifier,
		publisher:   deps.Publisher,
		tracer:      deps.Tracer,
		logger:      deps.Logger,
		stageStatus: make(map[domain.StageName]domain.StageStatus, len(domain.StageOrder)),
	}
	for _, stage := range domain.StageOrder {
		p.stageStatus[stage] = domain.StageStatusPending
	}

	return p, nil
}

// Status returns the current status of a stage.
func (p *Pipeline) Status(stage domain.StageName) domain.StageStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stageStatus[stage]
}

func (p *Pipeline) updateStatus(stage domain.StageName, status domain.StageStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stageStatus[stage] = status
}

// Run executes the pipeline for tag. A tag that does not match the
// plan's pattern is rejected before any stage runs.
func (p *Pipeline) Run(ctx context.Context, tag domain.Tag) error {
	if !tag.Matches(p.plan.TagPattern) {
		err := zerr.With(domain.ErrTagMismatch, "tag", tag.String())
		return zerr.With(err, "pattern", p.plan.TagPattern)
	}

	key, err := p.hasher.ComputeCacheKey(runtime.GOOS, p.plan.Lockfile)
	if err != nil {
		return zerr.Wrap(err, "failed to compute cache key")
	}

	names := make([]string, len(domain.StageOrder))
	for i, stage := range domain.StageOrder {
		names[i] = stage.String()
	}
	p.tracer.EmitPlan(ctx, names)

	p.logger.Info(fmt.Sprintf("releasing %s (cache key %s)", tag, key))

	run := &stageRun{pipeline: p, tag: tag, key: key}
	for _, stage := range domain.StageOrder {
		if err := run.execute(ctx, stage); err != nil {
			wrapped := zerr.With(zerr.Wrap(err, domain.ErrStageFailed.Error()), "stage", stage.String())
			return zerr.With(wrapped, "tag", tag.String())
		}
	}

	return nil
}

// stageRun carries the per-invocation state shared by the stages.
type stageRun struct {
	pipeline *Pipeline
	tag      domain.Tag
	key      domain.CacheKey
}

func (r *stageRun) execute(ctx context.Context, stage domain.StageName) error {
	p := r.pipeline

	ctx, span := p.tracer.Start(ctx, stage.String())
	defer span.End()

	p.updateStatus(stage, domain.StageStatusRunning)

	status, err := r.runStage(ctx, stage, span)
	if err != nil {
		span.RecordError(err)
		p.updateStatus(stage, domain.StageStatusFailed)
		r.record(stage, domain.StageStatusFailed)
		return err
	}

	p.updateStatus(stage, status)
	r.record(stage, status)
	return nil
}

func (r *stageRun) runStage(ctx context.Context, stage domain.StageName, span ports.Span) (domain.StageStatus, error) {
	switch stage {
	case domain.StageProvision:
		return r.provision(ctx, span)
	case domain.StageToolchain:
		return r.installToolchain(ctx)
	case domain.StageBuild:
		return r.build(ctx, span)
	case domain.StagePublish:
		return r.publish(ctx, span)
	default:
		return domain.StageStatusFailed, zerr.With(zerr.New("unknown stage"), "stage", stage.String())
	}
}

// provision restores the dependency cache for the current lockfile. A
// miss is not an error; the build stage then starts cold and the cache
// is filled afterwards.
func (r *stageRun) provision(ctx context.Context, span ports.Span) (domain.StageStatus, error) {
	p := r.pipeline
	span.SetAttribute("cache_key", r.key.String())

	hit, err := p.cache.Restore(ctx, r.key, p.plan.CachePaths)
	if err != nil {
		return domain.StageStatusFailed, err
	}
	if hit {
		p.logger.Info(fmt.Sprintf("dependency cache hit for %s", r.key))
		return domain.StageStatusCached, nil
	}

	p.logger.Info(fmt.Sprintf("dependency cache miss for %s", r.key))
	return domain.StageStatusCompleted, nil
}

func (r *stageRun) installToolchain(ctx context.Context) (domain.StageStatus, error) {
	if err := r.pipeline.toolchain.Install(ctx, r.pipeline.plan.Toolchain); err != nil {
		return domain.StageStatusFailed, err
	}
	return domain.StageStatusCompleted, nil
}

// build runs the cross-compiling build, verifies the artifact exists
// and refreshes the dependency cache for the next run.
func (r *stageRun) build(ctx context.Context, span ports.Span) (domain.StageStatus, error) {
	p := r.pipeline

	if err := p.executor.Execute(ctx, &p.plan.Build, nil); err != nil {
		return domain.StageStatusFailed, err
	}

	if err := p.verifier.VerifyArtifact(p.plan.Artifact); err != nil {
		return domain.StageStatusFailed, err
	}
	span.SetAttribute("artifact", p.plan.Artifact)

	if err := p.cache.Save(ctx, r.key, p.plan.CachePaths); err != nil {
		// A stale cache only costs time on the next run
		p.logger.Warn(fmt.Sprintf("failed to save dependency cache: %v", err))
	}

	return domain.StageStatusCompleted, nil
}

func (r *stageRun) publish(ctx context.Context, span ports.Span) (domain.StageStatus, error) {
	p := r.pipeline

	asset, err := p.publisher.Publish(ctx, p.plan.Release, r.tag, p.plan.Artifact)
	if err != nil {
		return domain.StageStatusFailed, err
	}

	span.SetAttribute("asset", asset.Name)
	p.logger.Info(fmt.Sprintf("published %s (%d bytes) to %s", asset.Name, asset.Size, r.tag))
	return domain.StageStatusCompleted, nil
}

func (r *stageRun) record(stage domain.StageName, status domain.StageStatus) {
	result := domain.StageResult{
		Stage:     stage.String(),
		CacheKey:  r.key.String(),
		Status:    string(status),
		Timestamp: time.Now(),
	}
	if err := r.pipeline.results.Put(result); err != nil {
		r.pipeline.logger.Warn(fmt.Sprintf("failed to record stage result: %v", err))
	}
}
