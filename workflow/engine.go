package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stackforge/conductor/agent"
)

// Planner decomposes a task into ordered subtasks.
type Planner interface {
	Plan(ctx context.Context, task, framework string) (*agent.PlanResult, error)
}

// Coder generates files for one subtask.
type Coder interface {
	Generate(ctx context.Context, req agent.GenerationRequest) (*agent.CodeResult, error)
}

// Reviewer evaluates the accumulated files.
type Reviewer interface {
	Review(ctx context.Context, files map[string]string, framework string) (*agent.ReviewResult, error)
}

// CommitFunc receives the state after every stage so observers and
// checkpoints see each transition. Implementations must snapshot; the
// engine keeps mutating the same record.
type CommitFunc func(*State)

// revisionSubtask labels the single coder call of a revision round.
const revisionSubtask = "Apply review feedback"

// Engine drives workflows through their stages. It is stateless and
// safe for concurrent use across workflows; each Run owns its State
// exclusively.
type Engine struct {
	planner  Planner
	coder    Coder
	reviewer Reviewer
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a workflow engine.
func NewEngine(planner Planner, coder Coder, reviewer Reviewer, opts ...EngineOption) *Engine {
	e := &Engine{
		planner:  planner,
		coder:    coder,
		reviewer: reviewer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run advances st until it reaches a terminal status, invoking commit
// after every stage. Any non-terminal status is a legal entry point, so
// a checkpointed workflow resumes from wherever it stopped. Run returns
// when the workflow is terminal; cancellation marks it failed, never
// successful.
func (e *Engine) Run(ctx context.Context, st *State, commit CommitFunc) {
	if commit == nil {
		commit = func(*State) {}
	}

	log := e.logger.With("workflow_id", st.ID)
	log.Info("Workflow running", "status", st.Status, "task", st.Task, "framework", st.Framework)

	for !st.Status.IsTerminal() {
		if err := ctx.Err(); err != nil {
			e.fail(st, log, fmt.Errorf("workflow cancelled: %w", err))
			commit(st)
			break
		}

		var err error
		switch st.Status {
		case StatusStarted:
			err = e.plan(ctx, st, log)
		case StatusPlanningComplete:
			err = e.generateInitial(ctx, st, log)
		case StatusNeedsRevision:
			err = e.generateRevision(ctx, st, log)
		case StatusCoding, StatusCodingRevision:
			e.review(ctx, st, log)
		default:
			err = fmt.Errorf("unexpected workflow status %q", st.Status)
		}
		if err != nil {
			e.fail(st, log, err)
		}
		commit(st)
	}

	log.Info("Workflow finished", "status", st.Status, "iterations", st.Iteration, "files", len(st.Files))
	metricWorkflowsFinished.WithLabelValues(st.Status.String()).Inc()
}

// plan runs the planning stage. A planner failure is fatal: nothing
// downstream can proceed without subtasks.
func (e *Engine) plan(ctx context.Context, st *State, log *slog.Logger) error {
	st.CurrentAgent = AgentPlanner

	result, err := e.planner.Plan(ctx, st.Task, st.Framework)
	if err != nil {
		return fmt.Errorf("planning: %w", err)
	}

	st.Plan = append([]string{}, result.Subtasks...)
	st.setStatus(StatusPlanningComplete)

	log.Info("Plan ready", "subtasks", len(st.Plan))
	return nil
}

// generateInitial fans out one coder call per subtask. Every call gets
// the same immutable context snapshot taken before dispatch; results
// are folded back in plan order so path collisions resolve
// deterministically. Individual failures are tolerated and recorded as
// warnings. The round is fatal only when every call failed.
func (e *Engine) generateInitial(ctx context.Context, st *State, log *slog.Logger) error {
	st.CurrentAgent = AgentCoder

	snapshot := agent.GenerationContext{
		Task:           st.Task,
		ExistingFiles:  MergeFiles(st.Files, nil),
		ReviewFeedback: st.ReviewFeedback,
	}

	requests := make([]agent.GenerationRequest, len(st.Plan))
	for i, subtask := range st.Plan {
		requests[i] = agent.GenerationRequest{
			Subtask:   subtask,
			Framework: st.Framework,
			Context:   snapshot,
		}
	}

	results, errs := e.dispatch(ctx, requests)
	if err := e.fold(st, log, requests, results, errs); err != nil {
		return err
	}

	st.setStatus(StatusCoding)
	return nil
}

// generateRevision runs a single coder call carrying the review
// feedback and the accumulated files. With only one call in the round,
// its failure means the whole round failed, which is fatal.
func (e *Engine) generateRevision(ctx context.Context, st *State, log *slog.Logger) error {
	st.CurrentAgent = AgentCoder
	st.setStatus(StatusCodingRevision)

	requests := []agent.GenerationRequest{{
		Subtask:   revisionSubtask,
		Framework: st.Framework,
		Context: agent.GenerationContext{
			Task:           st.Task,
			ExistingFiles:  MergeFiles(st.Files, nil),
			ReviewFeedback: st.ReviewFeedback,
		},
	}}

	results, errs := e.dispatch(ctx, requests)
	return e.fold(st, log, requests, results, errs)
}

// dispatch runs the coder calls in parallel and collects results into
// index-aligned slices.
func (e *Engine) dispatch(ctx context.Context, requests []agent.GenerationRequest) ([]*agent.CodeResult, []error) {
	start := time.Now()
	results := make([]*agent.CodeResult, len(requests))
	errs := make([]error, len(requests))

	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.coder.Generate(ctx, requests[i])
		}(i)
	}
	wg.Wait()

	metricRoundDuration.Observe(time.Since(start).Seconds())
	return results, errs
}

// fold merges the round's results into state in dispatch order.
func (e *Engine) fold(st *State, log *slog.Logger, requests []agent.GenerationRequest, results []*agent.CodeResult, errs []error) error {
	failed := 0
	var lastErr error

	for i := range requests {
		if errs[i] != nil {
			failed++
			lastErr = errs[i]
			metricGenerationCalls.WithLabelValues("error").Inc()
			log.Warn("Generation call failed", "subtask", requests[i].Subtask, "error", errs[i])
			st.Warnings = append(st.Warnings,
				fmt.Sprintf("generation failed for %q: %v", requests[i].Subtask, errs[i]))
			continue
		}

		metricGenerationCalls.WithLabelValues("ok").Inc()
		st.Files = MergeFiles(st.Files, results[i].Files)
		if results[i].Explanation != "" {
			st.Explanation = results[i].Explanation
		}
	}

	if len(requests) > 0 && failed == len(requests) {
		return fmt.Errorf("generation round: all %d calls failed: %w", failed, lastErr)
	}

	log.Info("Generation round complete", "calls", len(requests), "failed", failed, "files", len(st.Files))
	return nil
}

// review runs the review stage and routes the workflow based on the
// verdict and the iteration budget. A reviewer failure never fails the
// workflow: the engine fails open with an approve-leaning default and
// records the degradation.
func (e *Engine) review(ctx context.Context, st *State, log *slog.Logger) {
	st.CurrentAgent = AgentReviewer

	result, err := e.reviewer.Review(ctx, st.Files, st.Framework)
	if err != nil {
		log.Warn("Reviewer unavailable, failing open", "error", err)
		metricReviewVerdicts.WithLabelValues("fail_open").Inc()
		st.Warnings = append(st.Warnings, fmt.Sprintf("review degraded: %v", err))
		result = &agent.ReviewResult{
			Approved: true,
			Score:    6,
			Feedback: fmt.Sprintf("Review unavailable: %v", err),
		}
	}

	st.ReviewScore = result.Score
	st.ReviewIssues = append([]string{}, result.Issues...)
	st.ReviewSuggestions = append([]string{}, result.Suggestions...)

	switch {
	case result.Approved:
		metricReviewVerdicts.WithLabelValues("approved").Inc()
		st.ReviewFeedback = ""
		st.setStatus(StatusCompleted)
		log.Info("Review approved", "score", result.Score, "iteration", st.Iteration)

	case st.Iteration < MaxIterations:
		metricReviewVerdicts.WithLabelValues("rejected").Inc()
		st.Iteration++
		st.ReviewFeedback = result.Feedback
		st.setStatus(StatusNeedsRevision)
		log.Info("Review rejected, revising", "score", result.Score, "iteration", st.Iteration)

	default:
		metricReviewVerdicts.WithLabelValues("rejected").Inc()
		st.ReviewFeedback = result.Feedback
		st.setStatus(StatusCompletedWithIssues)
		log.Warn("Iteration budget exhausted, accepting with issues",
			"score", result.Score, "iteration", st.Iteration)
	}
}

// fail marks the workflow terminally failed.
func (e *Engine) fail(st *State, log *slog.Logger, err error) {
	st.Error = err.Error()
	st.setStatus(StatusFailed)
	log.Error("Workflow failed", "error", err)
}
