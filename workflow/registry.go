package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// checkpointTimeout bounds each checkpoint write so a slow store never
// stalls the engine loop.
const checkpointTimeout = 5 * time.Second

// taskSummaryLen caps the task preview in listings.
const taskSummaryLen = 80

// StatusInfo is the read model for status queries.
type StatusInfo struct {
	ID           string `json:"workflow_id"`
	Status       Status `json:"status"`
	CurrentAgent string `json:"current_agent,omitempty"`
	Iteration    int    `json:"iteration"`
	Error        string `json:"error,omitempty"`
}

// ResultInfo is the read model for completed workflows.
type ResultInfo struct {
	ID          string            `json:"workflow_id"`
	Status      Status            `json:"status"`
	Files       map[string]string `json:"files"`
	Plan        []string          `json:"plan"`
	Explanation string            `json:"explanation,omitempty"`
	Feedback    string            `json:"review_feedback,omitempty"`
	Score       int               `json:"review_score,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Summary is one row of the workflow listing.
type Summary struct {
	ID           string    `json:"workflow_id"`
	Status       Status    `json:"status"`
	CurrentAgent string    `json:"current_agent,omitempty"`
	Task         string    `json:"task"`
	CreatedAt    time.Time `json:"created_at"`
}

// Registry owns the workflow lifecycle: it validates requests, launches
// one engine goroutine per workflow, and serves snapshot reads of the
// latest committed state. All reads return clones, so callers never
// observe a partially applied stage.
type Registry struct {
	engine     *Engine
	logger     *slog.Logger
	checkpoint Checkpointer

	mu        sync.RWMutex
	workflows map[string]*State
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithCheckpointer enables durable state checkpoints. Every committed
// stage transition is written through; write failures are logged and do
// not affect the workflow.
func WithCheckpointer(cp Checkpointer) RegistryOption {
	return func(r *Registry) {
		r.checkpoint = cp
	}
}

// NewRegistry creates a workflow registry.
func NewRegistry(engine *Engine, opts ...RegistryOption) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		engine:    engine,
		logger:    slog.Default(),
		workflows: make(map[string]*State),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start validates the request, registers a new workflow, and launches
// its engine goroutine. It returns the workflow ID immediately.
func (r *Registry) Start(task, framework string) (string, error) {
	if strings.TrimSpace(task) == "" {
		return "", &ValidationError{Field: "task", Message: "must not be empty"}
	}
	if strings.TrimSpace(framework) == "" {
		return "", &ValidationError{Field: "framework", Message: "must not be empty"}
	}

	st := NewState(task, framework)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", errors.New("registry is shut down")
	}
	r.workflows[st.ID] = st.Clone()
	r.wg.Add(1)
	r.mu.Unlock()

	metricWorkflowsStarted.Inc()
	r.logger.Info("Workflow accepted", "workflow_id", st.ID, "framework", framework)

	go func() {
		defer r.wg.Done()
		r.engine.Run(r.ctx, st, r.commit)
	}()

	return st.ID, nil
}

// Resume restores checkpointed workflows. Terminal workflows become
// queryable again; non-terminal ones are relaunched from their last
// committed status.
func (r *Registry) Resume(ctx context.Context) error {
	if r.checkpoint == nil {
		return nil
	}

	states, err := r.checkpoint.List(ctx)
	if err != nil {
		return err
	}

	restored, relaunched := 0, 0
	for _, st := range states {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			break
		}
		if _, exists := r.workflows[st.ID]; exists {
			r.mu.Unlock()
			continue
		}
		r.workflows[st.ID] = st.Clone()
		restored++
		if !st.Status.IsTerminal() {
			r.wg.Add(1)
			relaunched++
			live := st
			go func() {
				defer r.wg.Done()
				r.engine.Run(r.ctx, live, r.commit)
			}()
		}
		r.mu.Unlock()
	}

	if restored > 0 {
		r.logger.Info("Workflows restored from checkpoints",
			"restored", restored, "relaunched", relaunched)
	}
	return nil
}

// commit publishes a snapshot of the engine's state and writes it
// through to the checkpoint store.
func (r *Registry) commit(st *State) {
	snap := st.Clone()

	r.mu.Lock()
	r.workflows[snap.ID] = snap
	r.mu.Unlock()

	if r.checkpoint != nil {
		ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
		defer cancel()
		if err := r.checkpoint.Save(ctx, snap); err != nil {
			r.logger.Warn("Checkpoint write failed", "workflow_id", snap.ID, "error", err)
		}
	}
}

// Status returns the current stage of a workflow.
func (r *Registry) Status(id string) (*StatusInfo, error) {
	st, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return &StatusInfo{
		ID:           st.ID,
		Status:       st.Status,
		CurrentAgent: st.CurrentAgent,
		Iteration:    st.Iteration,
		Error:        st.Error,
	}, nil
}

// Result returns the outcome of a terminal workflow. A non-terminal
// workflow yields an InProgressError carrying the current status.
func (r *Registry) Result(id string) (*ResultInfo, error) {
	st, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if !st.Status.IsTerminal() {
		return nil, &InProgressError{Status: st.Status}
	}
	return &ResultInfo{
		ID:          st.ID,
		Status:      st.Status,
		Files:       st.Files,
		Plan:        st.Plan,
		Explanation: st.Explanation,
		Feedback:    st.ReviewFeedback,
		Score:       st.ReviewScore,
		Warnings:    st.Warnings,
		Error:       st.Error,
	}, nil
}

// List returns summaries of all known workflows, newest first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	out := make([]Summary, 0, len(r.workflows))
	for _, st := range r.workflows {
		task := st.Task
		if len(task) > taskSummaryLen {
			task = task[:taskSummaryLen] + "..."
		}
		out = append(out, Summary{
			ID:           st.ID,
			Status:       st.Status,
			CurrentAgent: st.CurrentAgent,
			Task:         task,
			CreatedAt:    st.CreatedAt,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// get returns the committed snapshot for id. The snapshot is already a
// clone owned by the registry, safe to hand out for reading.
func (r *Registry) get(id string) (*State, error) {
	r.mu.RLock()
	st, ok := r.workflows[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return st, nil
}

// Shutdown stops accepting workflows, cancels running engines, and
// waits up to timeout for them to commit their final failed state.
// Cancelled workflows are marked failed, never successful.
func (r *Registry) Shutdown(timeout time.Duration) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Registry drained")
		return nil
	case <-time.After(timeout):
		return errors.New("shutdown timed out waiting for workflows")
	}
}
