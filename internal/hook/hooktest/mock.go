// Package hooktest provides test doubles for the hook package.
package hooktest

import (
	"context"
	"sync"

	"github.com/flemzord/reaper/internal/hook"
)

// MockHandler is a configurable test double for hook.Handler.
type MockHandler struct {
	NameVal     string
	PriorityVal int
	ExecuteFunc func(ctx context.Context, hctx *hook.Context) error

	mu    sync.Mutex
	Calls []hook.Context
}

// Compile-time interface check.
var _ hook.Handler = (*MockHandler)(nil)

// Name returns the configured name.
func (m *MockHandler) Name() string { return m.NameVal }

// Priority returns the configured priority.
func (m *MockHandler) Priority() int { return m.PriorityVal }

// Execute records the call and delegates to ExecuteFunc.
func (m *MockHandler) Execute(ctx context.Context, hctx *hook.Context) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, *hctx)
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, hctx)
	}
	return nil
}

// CallCount returns the number of times Execute was called.
func (m *MockHandler) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
