package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackforge/conductor/agent"
)

type fakePlanner struct {
	result *agent.PlanResult
	err    error

	mu    sync.Mutex
	calls int
}

func (f *fakePlanner) Plan(_ context.Context, _, _ string) (*agent.PlanResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCoder struct {
	// generate, when set, handles each call. Defaults to one file named
	// after the subtask.
	generate func(req agent.GenerationRequest) (*agent.CodeResult, error)

	mu       sync.Mutex
	requests []agent.GenerationRequest
}

func (f *fakeCoder) Generate(_ context.Context, req agent.GenerationRequest) (*agent.CodeResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.generate != nil {
		return f.generate(req)
	}
	return &agent.CodeResult{
		Files:       map[string]string{"/" + req.Subtask + ".js": "content"},
		Explanation: "did " + req.Subtask,
	}, nil
}

func (f *fakeCoder) recorded() []agent.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]agent.GenerationRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeReviewer struct {
	// verdicts are returned in sequence; the last one repeats.
	verdicts []*agent.ReviewResult
	err      error

	mu    sync.Mutex
	calls int
}

func (f *fakeReviewer) Review(_ context.Context, _ map[string]string, _ string) (*agent.ReviewResult, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if idx >= len(f.verdicts) {
		idx = len(f.verdicts) - 1
	}
	return f.verdicts[idx], nil
}

func (f *fakeReviewer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func approve(score int) *agent.ReviewResult {
	return &agent.ReviewResult{Approved: true, Score: score, Feedback: "looks good"}
}

func reject(feedback string) *agent.ReviewResult {
	return &agent.ReviewResult{Approved: false, Score: 3, Feedback: feedback,
		Issues: []string{"issue"}}
}

func runEngine(t *testing.T, planner Planner, coder Coder, reviewer Reviewer, st *State) []Status {
	t.Helper()

	engine := NewEngine(planner, coder, reviewer)

	var committed []Status
	engine.Run(context.Background(), st, func(s *State) {
		committed = append(committed, s.Status)
	})
	return committed
}

func TestEngineHappyPath(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{
		Subtasks: []string{"app", "list", "styles"},
	}}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(8)}}

	st := NewState("build a todo app", "react")
	committed := runEngine(t, planner, coder, reviewer, st)

	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 0, st.Iteration)
	assert.Equal(t, 8, st.ReviewScore)
	assert.Empty(t, st.ReviewFeedback)
	assert.Equal(t, AgentReviewer, st.CurrentAgent)
	assert.Len(t, st.Files, 3)
	assert.Equal(t, 1, planner.calls)
	assert.Equal(t, 1, reviewer.callCount())

	assert.Equal(t, []Status{
		StatusPlanningComplete,
		StatusCoding,
		StatusCompleted,
	}, committed)
}

func TestEngineFanOutUsesImmutableSnapshot(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{
		Subtasks: []string{"a", "b", "c", "d"},
	}}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(7)}}

	st := NewState("task", "react")
	runEngine(t, planner, coder, reviewer, st)

	requests := coder.recorded()
	require.Len(t, requests, 4)

	// Every call in the round sees the pre-round snapshot, never a
	// sibling's output.
	for _, req := range requests {
		assert.Equal(t, "task", req.Context.Task)
		assert.Empty(t, req.Context.ExistingFiles)
		assert.Empty(t, req.Context.ReviewFeedback)
	}
}

func TestEngineCollisionResolvesInPlanOrder(t *testing.T) {
	subtasks := []string{"first", "second", "third"}
	planner := &fakePlanner{result: &agent.PlanResult{Subtasks: subtasks}}

	// All coders write the same path. Earlier subtasks finish later, so
	// completion order is the reverse of plan order.
	coder := &fakeCoder{generate: func(req agent.GenerationRequest) (*agent.CodeResult, error) {
		var delay time.Duration
		switch req.Subtask {
		case "first":
			delay = 30 * time.Millisecond
		case "second":
			delay = 15 * time.Millisecond
		}
		time.Sleep(delay)
		return &agent.CodeResult{
			Files: map[string]string{"/shared.js": "written by " + req.Subtask},
		}, nil
	}}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(7)}}

	st := NewState("task", "react")
	runEngine(t, planner, coder, reviewer, st)

	require.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, "written by third", st.Files["/shared.js"])
}

func TestEngineRevisionLoop(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{Subtasks: []string{"app"}}}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{
		reject("add styling"),
		approve(8),
	}}

	st := NewState("task", "react")
	committed := runEngine(t, planner, coder, reviewer, st)

	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 1, st.Iteration)
	assert.Empty(t, st.ReviewFeedback)
	assert.Equal(t, 2, reviewer.callCount())

	requests := coder.recorded()
	require.Len(t, requests, 2)

	// The revision round is a single call carrying the feedback and the
	// accumulated files.
	revision := requests[1]
	assert.Equal(t, revisionSubtask, revision.Subtask)
	assert.Equal(t, "add styling", revision.Context.ReviewFeedback)
	assert.Contains(t, revision.Context.ExistingFiles, "/app.js")

	assert.Equal(t, []Status{
		StatusPlanningComplete,
		StatusCoding,
		StatusNeedsRevision,
		StatusCodingRevision,
		StatusCompleted,
	}, committed)
}

func TestEngineIterationBudgetExhausted(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{Subtasks: []string{"app"}}}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{reject("never good enough")}}

	st := NewState("task", "react")
	runEngine(t, planner, coder, reviewer, st)

	assert.Equal(t, StatusCompletedWithIssues, st.Status)
	assert.Equal(t, MaxIterations, st.Iteration)
	assert.Equal(t, "never good enough", st.ReviewFeedback)
	// Initial review plus one per revision round.
	assert.Equal(t, MaxIterations+1, reviewer.callCount())
	// Initial fan-out plus one revision call per round.
	assert.Len(t, coder.recorded(), 1+MaxIterations)
}

func TestEngineReviewFailsOpen(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{Subtasks: []string{"app"}}}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{err: errors.New("reviewer timeout")}

	st := NewState("task", "react")
	runEngine(t, planner, coder, reviewer, st)

	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 6, st.ReviewScore)
	require.Len(t, st.Warnings, 1)
	assert.Contains(t, st.Warnings[0], "review degraded")
	assert.Contains(t, st.Warnings[0], "reviewer timeout")
}

func TestEnginePlanFailureIsFatal(t *testing.T) {
	planner := &fakePlanner{err: errors.New("model unreachable")}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(7)}}

	st := NewState("task", "react")
	runEngine(t, planner, coder, reviewer, st)

	assert.Equal(t, StatusFailed, st.Status)
	assert.Contains(t, st.Error, "planning")
	assert.Contains(t, st.Error, "model unreachable")
	assert.Empty(t, coder.recorded())
	assert.Zero(t, reviewer.callCount())
}

func TestEnginePartialGenerationFailureTolerated(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{
		Subtasks: []string{"a", "b", "c"},
	}}
	coder := &fakeCoder{generate: func(req agent.GenerationRequest) (*agent.CodeResult, error) {
		if req.Subtask == "b" {
			return nil, errors.New("model overloaded")
		}
		return &agent.CodeResult{
			Files: map[string]string{"/" + req.Subtask + ".js": "content"},
		}, nil
	}}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(7)}}

	st := NewState("task", "react")
	runEngine(t, planner, coder, reviewer, st)

	assert.Equal(t, StatusCompleted, st.Status)
	assert.Len(t, st.Files, 2)
	require.Len(t, st.Warnings, 1)
	assert.Contains(t, st.Warnings[0], `"b"`)
	assert.Contains(t, st.Warnings[0], "model overloaded")
}

func TestEngineAllGenerationCallsFailedIsFatal(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{
		Subtasks: []string{"a", "b"},
	}}
	coder := &fakeCoder{generate: func(agent.GenerationRequest) (*agent.CodeResult, error) {
		return nil, errors.New("model down")
	}}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(7)}}

	st := NewState("task", "react")
	runEngine(t, planner, coder, reviewer, st)

	assert.Equal(t, StatusFailed, st.Status)
	assert.Contains(t, st.Error, "all 2 calls failed")
	assert.Zero(t, reviewer.callCount())
}

func TestEngineEmptyPlan(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{Subtasks: []string{}}}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(5)}}

	st := NewState("task", "react")
	runEngine(t, planner, coder, reviewer, st)

	// Zero subtasks means an empty round, not a failure. The reviewer
	// still sees the (empty) output.
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Empty(t, st.Files)
	assert.Empty(t, coder.recorded())
	assert.Equal(t, 1, reviewer.callCount())
}

func TestEngineCancellationMarksFailed(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{Subtasks: []string{"app"}}}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(7)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := NewState("task", "react")
	NewEngine(planner, coder, reviewer).Run(ctx, st, nil)

	assert.Equal(t, StatusFailed, st.Status)
	assert.Contains(t, st.Error, "cancelled")
}

func TestEngineResumesFromIntermediateStatus(t *testing.T) {
	planner := &fakePlanner{result: &agent.PlanResult{Subtasks: []string{"app"}}}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(9)}}

	// A checkpointed workflow that stopped mid-revision.
	st := NewState("task", "react")
	st.Plan = []string{"app"}
	st.Files = map[string]string{"/app.js": "v1"}
	st.ReviewFeedback = "tighten it up"
	st.Iteration = 1
	st.Status = StatusNeedsRevision

	runEngine(t, planner, coder, reviewer, st)

	assert.Equal(t, StatusCompleted, st.Status)
	assert.Zero(t, planner.calls)

	requests := coder.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, revisionSubtask, requests[0].Subtask)
	assert.Equal(t, "tighten it up", requests[0].Context.ReviewFeedback)
}

func TestEngineLargeFanOut(t *testing.T) {
	const n = 50
	subtasks := make([]string, n)
	for i := range subtasks {
		subtasks[i] = fmt.Sprintf("part-%02d", i)
	}
	planner := &fakePlanner{result: &agent.PlanResult{Subtasks: subtasks}}
	coder := &fakeCoder{}
	reviewer := &fakeReviewer{verdicts: []*agent.ReviewResult{approve(7)}}

	st := NewState("task", "react")
	runEngine(t, planner, coder, reviewer, st)

	assert.Equal(t, StatusCompleted, st.Status)
	assert.Len(t, st.Files, n)
	assert.Len(t, coder.recorded(), n)
}
