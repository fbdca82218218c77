// Package testutil provides mock implementations for testing code that
// calls the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/stackforge/conductor/llm"
)

// MockCompleter is a thread-safe mock LLM completer. It returns configured
// responses in sequence and records every request it receives.
//
// Usage:
//
//	mock := &testutil.MockCompleter{
//	    Responses: []*llm.Response{
//	        {Content: `{"subtasks": ["one"]}`, Model: "test-model"},
//	    },
//	}
type MockCompleter struct {
	mu            sync.Mutex
	requests      []llm.Request
	responseIndex int

	// Responses are returned in sequence. When exhausted, an empty
	// response is returned.
	Responses []*llm.Response

	// Err, when set, is returned instead of any response.
	Err error
}

// Complete implements the completer interface used by the agent package.
func (m *MockCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// CallCount returns the number of Complete calls so far.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of all captured requests.
func (m *MockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}
