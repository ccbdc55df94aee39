package debugger

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/wolkendb/protocol"
)

type MockController struct {
	mock.Mock

	// listCalls is readable without touching the mock's internals while
	// the poll loop is still running.
	listCalls atomic.Int32
}

func (m *MockController) listActiveCalls() int {
	return int(m.listCalls.Load())
}

func (m *MockController) RegisterDebuggee(ctx context.Context, d *protocol.Debuggee) (*protocol.Debuggee, error) {
	args := m.Called(ctx, d)
	if out := args.Get(0); out != nil {
		return out.(*protocol.Debuggee), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockController) ListActiveBreakpoints(ctx context.Context, debuggeeID, waitToken string) (*protocol.ListActiveBreakpointsResponse, error) {
	m.listCalls.Add(1)
	args := m.Called(ctx, debuggeeID, waitToken)
	if out := args.Get(0); out != nil {
		return out.(*protocol.ListActiveBreakpointsResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockController) UpdateActiveBreakpoint(ctx context.Context, debuggeeID string, bp *protocol.Breakpoint) error {
	args := m.Called(ctx, debuggeeID, bp)
	return args.Error(0)
}

// recordingHandler captures Attach/Detach events for assertions.
type recordingHandler struct {
	mu       sync.Mutex
	attached []string
	detached []string
}

func (h *recordingHandler) Attach(bp *protocol.Breakpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached = append(h.attached, bp.ID)
}

func (h *recordingHandler) Detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = append(h.detached, id)
}

func (h *recordingHandler) attachedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.attached...)
}

func (h *recordingHandler) detachedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.detached...)
}
