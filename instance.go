package wolkendb

import (
	"context"
	"strings"

	"github.com/p-arndt/wolkendb/internal/service"
	"github.com/p-arndt/wolkendb/protocol"
)

// Instance is a local snapshot of a Wolke instance. Accessors read the
// snapshot; Reload and Update refresh it from the service.
type Instance struct {
	svc *service.Service
	msg *protocol.Instance
}

func instanceFromProto(svc *service.Service, msg *protocol.Instance) *Instance {
	return &Instance{svc: svc, msg: msg}
}

// Path is the full resource name, projects/{p}/instances/{i}.
func (i *Instance) Path() string { return i.msg.Name }

// ID is the final path segment of the resource name.
func (i *Instance) ID() string { return pathID(i.msg.Name) }

func (i *Instance) DisplayName() string { return i.msg.DisplayName }

func (i *Instance) NodeCount() int { return i.msg.NodeCount }

func (i *Instance) State() string { return i.msg.State }

// Ready reports whether the instance has finished provisioning.
func (i *Instance) Ready() bool { return i.msg.State == protocol.StateReady }

// ConfigID is the placement config's ID, without the resource prefix.
func (i *Instance) ConfigID() string { return pathID(i.msg.Config) }

// Labels returns a copy of the instance labels.
func (i *Instance) Labels() map[string]string {
	if i.msg.Labels == nil {
		return nil
	}
	labels := make(map[string]string, len(i.msg.Labels))
	for k, v := range i.msg.Labels {
		labels[k] = v
	}
	return labels
}

// Reload replaces the snapshot with the server's current view.
func (i *Instance) Reload(ctx context.Context) error {
	msg, err := i.svc.GetInstance(ctx, i.msg.Name)
	if err != nil {
		return err
	}
	i.msg = msg
	return nil
}

// InstanceUpdate selects the fields to change. Zero values leave the
// corresponding field untouched.
type InstanceUpdate struct {
	DisplayName string
	NodeCount   int
	Labels      map[string]string
}

// Update applies the requested changes and refreshes the snapshot from
// the server's response.
func (i *Instance) Update(ctx context.Context, update InstanceUpdate) error {
	next := *i.msg
	if update.DisplayName != "" {
		next.DisplayName = update.DisplayName
	}
	if update.NodeCount > 0 {
		next.NodeCount = update.NodeCount
	}
	if update.Labels != nil {
		next.Labels = update.Labels
	}
	msg, err := i.svc.UpdateInstance(ctx, &next)
	if err != nil {
		return err
	}
	i.msg = msg
	return nil
}

// InstanceConfig is a read-only placement config snapshot.
type InstanceConfig struct {
	msg *protocol.InstanceConfig
}

func instanceConfigFromProto(msg *protocol.InstanceConfig) *InstanceConfig {
	return &InstanceConfig{msg: msg}
}

func (c *InstanceConfig) Path() string { return c.msg.Name }

func (c *InstanceConfig) ID() string { return pathID(c.msg.Name) }

func (c *InstanceConfig) DisplayName() string { return c.msg.DisplayName }

// pathID extracts the last segment of a resource name.
func pathID(name string) string {
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
