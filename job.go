package wolkendb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/p-arndt/wolkendb/internal/service"
	"github.com/p-arndt/wolkendb/internal/transport"
	"github.com/p-arndt/wolkendb/protocol"
)

// DefaultPollInterval is how often Job.Wait re-checks an unfinished
// operation.
const DefaultPollInterval = 2 * time.Second

type resourceKind int

const (
	kindInstance resourceKind = iota
	kindDatabase
)

// Job tracks a long-running creation on the server. It is a snapshot:
// Done and Err report the last observed state, Reload refreshes it, and
// Wait polls until the operation finishes or the context ends.
type Job struct {
	svc  *service.Service
	op   *protocol.Operation
	kind resourceKind

	// PollInterval overrides the DefaultPollInterval used by Wait.
	PollInterval time.Duration
}

func jobFromOperation(svc *service.Service, op *protocol.Operation, kind resourceKind) *Job {
	return &Job{svc: svc, op: op, kind: kind}
}

// Name is the server-side operation name.
func (j *Job) Name() string { return j.op.Name }

// Done reports whether the operation has finished, successfully or not.
func (j *Job) Done() bool { return j.op.Done }

// Err returns the operation's failure, nil while it is pending or after
// it succeeded.
func (j *Job) Err() error {
	if !j.op.Done || j.op.Error == nil {
		return nil
	}
	return &transport.StatusError{Code: j.op.Error.Code, Message: j.op.Error.Message}
}

// Reload fetches the operation's current state.
func (j *Job) Reload(ctx context.Context) error {
	op, err := j.svc.GetOperation(ctx, j.op.Name)
	if err != nil {
		return err
	}
	j.op = op
	return nil
}

// Wait polls until the operation finishes. It returns the operation's
// failure if it failed, or the context's error if ctx ends first.
func (j *Job) Wait(ctx context.Context) error {
	interval := j.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for !j.op.Done {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		if err := j.Reload(ctx); err != nil {
			return err
		}
	}
	return j.Err()
}

// Instance returns the created instance once the job finished
// successfully, nil otherwise or when the job created something else.
func (j *Job) Instance() *Instance {
	if j.kind != kindInstance || !j.op.Done || j.op.Error != nil || j.op.Response == nil {
		return nil
	}
	var msg protocol.Instance
	if err := json.Unmarshal(j.op.Response, &msg); err != nil {
		return nil
	}
	return instanceFromProto(j.svc, &msg)
}

// Database returns the created database once the job finished
// successfully, nil otherwise or when the job created something else.
func (j *Job) Database() *Database {
	if j.kind != kindDatabase || !j.op.Done || j.op.Error != nil || j.op.Response == nil {
		return nil
	}
	var msg protocol.Database
	if err := json.Unmarshal(j.op.Response, &msg); err != nil {
		return nil
	}
	return databaseFromProto(j.svc, &msg)
}
