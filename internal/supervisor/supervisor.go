// Package supervisor drives a task through plan, research, summarize,
// critique and strategy, and turns every failure into a result value.
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sage/internal/actions"
	"sage/internal/executor"
	"sage/internal/logger"
	"sage/internal/memory"
	"sage/internal/metrics"
	"sage/internal/planner"
)

const (
	DefaultCritiqueThreshold = 0.8
	DefaultSummarizeMinWords = 300
	defaultBatchConcurrency  = 4
)

type Options struct {
	CritiqueThreshold float64
	SummarizeMinWords int
	SkipPolicy        SkipPolicy
	BatchConcurrency  int
}

type Supervisor struct {
	planner    *planner.Tracker
	exec       *executor.Executor
	mem        *memory.Store
	collectors *metrics.Collectors
	opts       Options
	log        *zap.Logger
	now        func() time.Time
}

// New wires a Supervisor. mem and collectors may be nil.
func New(tracker *planner.Tracker, exec *executor.Executor, mem *memory.Store, collectors *metrics.Collectors, opts Options, log *zap.Logger) *Supervisor {
	if opts.CritiqueThreshold <= 0 || opts.CritiqueThreshold > 1 {
		opts.CritiqueThreshold = DefaultCritiqueThreshold
	}
	if opts.SummarizeMinWords <= 0 {
		opts.SummarizeMinWords = DefaultSummarizeMinWords
	}
	if opts.SkipPolicy == "" {
		opts.SkipPolicy = SkipTrivial
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = defaultBatchConcurrency
	}
	return &Supervisor{
		planner:    tracker,
		exec:       exec,
		mem:        mem,
		collectors: collectors,
		opts:       opts,
		log:        logger.OrNop(log).Named("supervisor"),
		now:        time.Now,
	}
}

// NewTaskID returns a short random task identifier.
func NewTaskID() string {
	return uuid.New().String()[:8]
}

// Run executes the pipeline for one task. It never returns nil and never
// panics; failures are reported through PipelineResult.Error.
func (s *Supervisor) Run(ctx context.Context, taskID string, req TaskRequest) (res *PipelineResult) {
	log := s.log.With(zap.String("task_id", taskID))
	log.Info("Supervisor managing task", zap.String("query", req.Query), zap.Int("goals", len(req.Goals)))

	pm := &metrics.PipelineMetrics{TaskID: taskID, Start: s.now()}
	res = &PipelineResult{TaskID: taskID, Metrics: pm}

	defer func() {
		if rec := recover(); rec != nil {
			res.Error = fmt.Sprintf("pipeline panicked: %v", rec)
			res.Strategy = nil
			res.Message = ""
			log.Error("pipeline panicked", zap.Any("panic", rec))
		}
		pm.End = s.now()
		pm.Finalize()
		pm.Succeeded = !res.Failed()
		s.remember(log, taskID, req, res)
	}()

	if err := s.run(ctx, taskID, req, res, log); err != nil {
		log.Error("Supervisor error for task", zap.Error(err))
		res.Error = fmt.Sprintf("supervisor failed: %v", err)
		res.Message = ""
	}
	return res
}

func (s *Supervisor) run(ctx context.Context, taskID string, req TaskRequest, res *PipelineResult, log *zap.Logger) error {
	if req.CritiqueThreshold != nil && (*req.CritiqueThreshold < 0 || *req.CritiqueThreshold > 1) {
		return fmt.Errorf("critique_threshold must be within [0,1], got %v", *req.CritiqueThreshold)
	}

	// Step 1: Plan
	plan := s.planner.CreatePlan(req.Query, req.Goals)
	res.Plan = &plan

	// Step 2: Research
	research, err := s.stage(ctx, res, actions.KindResearch, actions.Request{
		TaskID:     taskID,
		Query:      req.Query,
		Goals:      req.Goals,
		Context:    req.Context,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		return err
	}
	res.Research = research.Text

	// Step 3: Summarize long research only
	if words := len(strings.Fields(res.Research)); words < s.opts.SummarizeMinWords {
		log.Info("Research is short, skipping summarization", zap.Int("words", words))
		res.Summary = res.Research
		res.Metrics.Skip(actions.KindSummarize.String(), s.now())
	} else {
		summary, err := s.stage(ctx, res, actions.KindSummarize, actions.Request{TaskID: taskID, Query: req.Query, Content: res.Research})
		if err != nil {
			return err
		}
		res.Summary = summary.Text
	}

	// Step 4: Quality gate
	verdict, err := s.gate(ctx, taskID, req, res, log)
	if err != nil {
		return err
	}
	res.Critique = verdict
	if !verdict.Passed {
		log.Info("Critique failed, returning feedback", zap.Float64("score", verdict.Score))
		res.Message = MessageGateFailed
		return nil
	}

	// Step 5: Strategy
	strategy, err := s.stage(ctx, res, actions.KindStrategy, actions.Request{
		TaskID:  taskID,
		Query:   req.Query,
		Goals:   req.Goals,
		Content: res.Summary,
	})
	if err != nil {
		return err
	}
	res.Strategy = &strategy.Text
	res.Message = MessageCompleted
	log.Info("Strategy formulation completed")
	return nil
}

func (s *Supervisor) stage(ctx context.Context, res *PipelineResult, kind actions.Kind, req actions.Request) (actions.Response, error) {
	resp, sm, err := s.exec.Run(ctx, kind, req)
	res.Metrics.Stages = append(res.Metrics.Stages, sm)
	return resp, err
}

// gate decides whether the summary may proceed to strategy.
func (s *Supervisor) gate(ctx context.Context, taskID string, req TaskRequest, res *PipelineResult, log *zap.Logger) (*actions.CritiqueResult, error) {
	threshold := s.opts.CritiqueThreshold
	if req.CritiqueThreshold != nil {
		threshold = *req.CritiqueThreshold
	}

	goals := req.Goals
	switch s.opts.SkipPolicy {
	case SkipKeyword:
		goals = goalsNeedingCritique(req.Goals)
		if len(goals) == 0 {
			return s.bypass(res, log, "Skipped critique: no goal requires review."), nil
		}
	default:
		if IsTrivialQuery(req.Query) {
			return s.bypass(res, log, "Skipped critique for trivial input."), nil
		}
	}

	var verdict *actions.CritiqueResult
	if s.opts.SkipPolicy == SkipKeyword {
		// One critique per goal; the first failure closes the gate.
		for _, g := range goals {
			v, err := s.critique(ctx, taskID, req, res, []string{g}, threshold)
			if err != nil {
				return nil, err
			}
			verdict = v
			if !v.Passed {
				break
			}
		}
	} else {
		v, err := s.critique(ctx, taskID, req, res, goals, threshold)
		if err != nil {
			return nil, err
		}
		verdict = v
	}

	if verdict.Passed {
		s.collectors.ObserveGate(metrics.GatePassed)
	} else {
		s.collectors.ObserveGate(metrics.GateFailed)
	}
	log.Info("Critique completed", zap.Bool("passed", verdict.Passed), zap.Float64("score", verdict.Score))
	return verdict, nil
}

func (s *Supervisor) critique(ctx context.Context, taskID string, req TaskRequest, res *PipelineResult, goals []string, threshold float64) (*actions.CritiqueResult, error) {
	resp, err := s.stage(ctx, res, actions.KindCritique, actions.Request{
		TaskID:    taskID,
		Query:     req.Query,
		Goals:     goals,
		Context:   req.Context,
		Content:   res.Summary,
		Threshold: &threshold,
	})
	if err != nil {
		return nil, err
	}
	if resp.Critique == nil {
		return nil, fmt.Errorf("critique stage returned no verdict")
	}
	v := *resp.Critique
	return &v, nil
}

func (s *Supervisor) bypass(res *PipelineResult, log *zap.Logger, rationale string) *actions.CritiqueResult {
	log.Info(rationale)
	res.Metrics.Skip(actions.KindCritique.String(), s.now())
	s.collectors.ObserveGate(metrics.GateBypassed)
	return &actions.CritiqueResult{Score: 1.0, Passed: true, Rationale: rationale}
}

// remember stores the outcome of a finished run so later runs of the same
// task can build on it.
func (s *Supervisor) remember(log *zap.Logger, taskID string, req TaskRequest, res *PipelineResult) {
	if s.mem == nil || res.Failed() {
		return
	}
	value := map[string]any{
		"query":   req.Query,
		"summary": res.Summary,
		"message": res.Message,
	}
	if res.Strategy != nil {
		value["strategy"] = *res.Strategy
	}
	if _, err := s.mem.Set(memory.TaskKey(taskID), value); err != nil {
		log.Warn("failed to persist task context", zap.Error(err))
	}
}

// Job is one entry of a batch run.
type Job struct {
	TaskID  string      `json:"task_id" yaml:"task_id"`
	Request TaskRequest `json:"request" yaml:"request"`
}

// RunBatch runs jobs concurrently, bounded by Options.BatchConcurrency.
// Results are returned in job order. Jobs without an ID get a generated one.
func (s *Supervisor) RunBatch(ctx context.Context, jobs []Job) []*PipelineResult {
	results := make([]*PipelineResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)

	for i, job := range jobs {
		if job.TaskID == "" {
			job.TaskID = NewTaskID()
		}
		g.Go(func() error {
			results[i] = s.Run(gctx, job.TaskID, job.Request)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
