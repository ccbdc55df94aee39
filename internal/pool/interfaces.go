package pool

import "context"

// SessionClient is the slice of the remote API the pool needs: session CRUD
// plus transaction pre-allocation and a liveness ping. It is implemented by
// service.DatabaseService and mocked in tests.
type SessionClient interface {
	// CreateSession allocates one session and returns its server-assigned name.
	CreateSession(ctx context.Context) (string, error)

	// BatchCreateSessions allocates count sessions in one round trip.
	BatchCreateSessions(ctx context.Context, count int) ([]string, error)

	// DeleteSession releases a session server-side. Best effort; the pool
	// logs and moves on when it fails.
	DeleteSession(ctx context.Context, name string) error

	// BeginTransaction starts a transaction on the session and returns its id.
	BeginTransaction(ctx context.Context, session string) (string, error)

	// PingSession verifies the session still exists server-side and resets
	// its idle timer.
	PingSession(ctx context.Context, session string) error
}
