// Package executor runs a single pipeline stage with timing, metrics and
// panic recovery.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sage/internal/actions"
	"sage/internal/logger"
	"sage/internal/metrics"
)

type Executor struct {
	registry   *actions.Registry
	collectors *metrics.Collectors
	log        *zap.Logger
	now        func() time.Time
}

// New returns an Executor dispatching through registry. collectors may be nil.
func New(registry *actions.Registry, collectors *metrics.Collectors, log *zap.Logger) *Executor {
	return &Executor{
		registry:   registry,
		collectors: collectors,
		log:        logger.OrNop(log).Named("executor"),
		now:        time.Now,
	}
}

// Run executes the stage for kind. A panicking handler is reported as an error.
func (e *Executor) Run(ctx context.Context, kind actions.Kind, req actions.Request) (resp actions.Response, sm metrics.StageMetrics, err error) {
	sm = metrics.StageMetrics{Stage: kind.String(), Start: e.now()}
	defer func() {
		// Panic safety -> convert to error so the pipeline can report it
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in stage %s: %v", kind, rec)
		}
		sm.End = e.now()
		sm.Finalize()
		sm.Success = err == nil
		if err != nil {
			sm.Err = err.Error()
			e.log.Error("stage failed", zap.String("task_id", req.TaskID), zap.Stringer("stage", kind), zap.Error(err))
		} else {
			e.log.Debug("stage finished", zap.String("task_id", req.TaskID), zap.Stringer("stage", kind), zap.Int64("duration_ms", sm.DurationMs))
		}
		e.collectors.ObserveStage(sm)
	}()

	if err := ctx.Err(); err != nil {
		return actions.Response{}, sm, err
	}
	resp, err = e.registry.Execute(ctx, kind, req)
	if err != nil {
		return resp, sm, fmt.Errorf("stage %s failed: %w", kind, err)
	}
	return resp, sm, nil
}
