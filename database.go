package wolkendb

import (
	"context"

	"github.com/p-arndt/wolkendb/internal/service"
	"github.com/p-arndt/wolkendb/protocol"
)

// Database is a local snapshot of a Wolke database.
type Database struct {
	svc *service.Service
	msg *protocol.Database
}

func databaseFromProto(svc *service.Service, msg *protocol.Database) *Database {
	return &Database{svc: svc, msg: msg}
}

// Path is the full resource name, projects/{p}/instances/{i}/databases/{d}.
func (d *Database) Path() string { return d.msg.Name }

// ID is the final path segment of the resource name.
func (d *Database) ID() string { return pathID(d.msg.Name) }

func (d *Database) State() string { return d.msg.State }

// Ready reports whether the database has finished provisioning.
func (d *Database) Ready() bool { return d.msg.State == protocol.StateReady }

// Reload replaces the snapshot with the server's current view.
func (d *Database) Reload(ctx context.Context) error {
	msg, err := d.svc.GetDatabase(ctx, d.msg.Name)
	if err != nil {
		return err
	}
	d.msg = msg
	return nil
}
