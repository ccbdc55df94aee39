package wolkendb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/p-arndt/wolkendb/internal/service"
)

// fakeInvoker answers RPCs from per-method handler functions. Handlers
// receive the decoded request and return the response value (re-encoded
// into the caller's typed response) or an error. It is safe for use from
// the pool's background goroutines.
type fakeInvoker struct {
	mu       sync.Mutex
	handlers map[string]func(req any) (any, error)
	calls    []string
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{handlers: map[string]func(req any) (any, error){}}
}

func (f *fakeInvoker) on(method string, handler func(req any) (any, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = handler
}

// respond registers a handler that always returns the same value.
func (f *fakeInvoker) respond(method string, resp any) {
	f.on(method, func(any) (any, error) { return resp, nil })
}

func (f *fakeInvoker) callsTo(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeInvoker) Invoke(ctx context.Context, method string, req, resp any) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	handler := f.handlers[method]
	f.mu.Unlock()

	if handler == nil {
		return fmt.Errorf("unexpected call to %s", method)
	}
	out, err := handler(req)
	if err != nil {
		return err
	}
	if resp == nil || out == nil {
		return nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, resp)
}

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProject(t *testing.T, inv *fakeInvoker) *Project {
	t.Helper()
	return &Project{id: "p1", svc: service.New(inv), logger: discardLogger()}
}
