package pool

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// fakeSessionClient is a thread-safe in-memory SessionClient. Sessions get
// sequential names ("s-1", "s-2", ...) so tests can assert on identity.
type fakeSessionClient struct {
	mu      sync.Mutex
	nextID  int
	created []string
	deleted []string
	begun   []string
	pinged  []string

	createErr error
	batchErr  error
	beginErr  error
	// pingErr, when set, decides per session whether a ping fails.
	pingErr func(name string) error
}

func newFakeSessionClient() *fakeSessionClient {
	return &fakeSessionClient{}
}

func (f *fakeSessionClient) CreateSession(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	name := fmt.Sprintf("s-%d", f.nextID)
	f.created = append(f.created, name)
	return name, nil
}

func (f *fakeSessionClient) BatchCreateSessions(ctx context.Context, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	names := make([]string, count)
	for i := range names {
		f.nextID++
		names[i] = fmt.Sprintf("s-%d", f.nextID)
		f.created = append(f.created, names[i])
	}
	return names, nil
}

func (f *fakeSessionClient) DeleteSession(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeSessionClient) BeginTransaction(ctx context.Context, session string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return "", f.beginErr
	}
	f.begun = append(f.begun, session)
	return "tx-" + session, nil
}

func (f *fakeSessionClient) PingSession(ctx context.Context, session string) error {
	f.mu.Lock()
	pingErr := f.pingErr
	f.pinged = append(f.pinged, session)
	f.mu.Unlock()
	if pingErr != nil {
		return pingErr(session)
	}
	return nil
}

func (f *fakeSessionClient) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeSessionClient) begunCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.begun)
}

func (f *fakeSessionClient) pingedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pinged)
}

func (f *fakeSessionClient) wasDeleted(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.deleted, name)
}
