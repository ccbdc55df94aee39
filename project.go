package wolkendb

import (
	"context"

	"github.com/p-arndt/wolkendb/internal/transport"
	"github.com/p-arndt/wolkendb/protocol"
)

// ListOptions control pagination. A zero PageSize lets the server pick.
type ListOptions struct {
	PageToken string
	PageSize  int
}

// InstancePage is one page of instances. An empty NextToken marks the end
// of the listing.
type InstancePage struct {
	Instances []*Instance
	NextToken string
}

type InstanceConfigPage struct {
	Configs   []*InstanceConfig
	NextToken string
}

type DatabasePage struct {
	Databases []*Database
	NextToken string
}

func (p *Project) Instances(ctx context.Context, opts ListOptions) (*InstancePage, error) {
	resp, err := p.svc.ListInstances(ctx, p.id, opts.PageToken, opts.PageSize)
	if err != nil {
		return nil, err
	}
	page := &InstancePage{NextToken: resp.NextPageToken}
	for _, msg := range resp.Instances {
		page.Instances = append(page.Instances, instanceFromProto(p.svc, msg))
	}
	return page, nil
}

// AllInstances follows page tokens until exhaustion and returns every
// instance in listing order.
func (p *Project) AllInstances(ctx context.Context) ([]*Instance, error) {
	var all []*Instance
	var token string
	for {
		page, err := p.Instances(ctx, ListOptions{PageToken: token})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Instances...)
		if page.NextToken == "" {
			return all, nil
		}
		token = page.NextToken
	}
}

// Instance looks up one instance. A remote "not found" is translated into
// a nil result; every other fault is returned as-is.
func (p *Project) Instance(ctx context.Context, instanceID string) (*Instance, error) {
	msg, err := p.svc.GetInstance(ctx, protocol.InstancePath(p.id, instanceID))
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return instanceFromProto(p.svc, msg), nil
}

// InstanceSpec describes the instance to create. ConfigID names the
// placement config; a zero NodeCount means one node.
type InstanceSpec struct {
	ConfigID    string
	DisplayName string
	NodeCount   int
	Labels      map[string]string
}

// CreateInstance starts instance creation and returns the Job tracking it.
func (p *Project) CreateInstance(ctx context.Context, instanceID string, spec InstanceSpec) (*Job, error) {
	displayName := spec.DisplayName
	if displayName == "" {
		displayName = instanceID
	}
	nodeCount := spec.NodeCount
	if nodeCount <= 0 {
		nodeCount = 1
	}
	op, err := p.svc.CreateInstance(ctx, p.id, instanceID, &protocol.Instance{
		Config:      protocol.InstanceConfigPath(p.id, spec.ConfigID),
		DisplayName: displayName,
		NodeCount:   nodeCount,
		Labels:      spec.Labels,
	})
	if err != nil {
		return nil, err
	}
	return jobFromOperation(p.svc, op, kindInstance), nil
}

func (p *Project) InstanceConfigs(ctx context.Context, opts ListOptions) (*InstanceConfigPage, error) {
	resp, err := p.svc.ListInstanceConfigs(ctx, p.id, opts.PageToken, opts.PageSize)
	if err != nil {
		return nil, err
	}
	page := &InstanceConfigPage{NextToken: resp.NextPageToken}
	for _, msg := range resp.Configs {
		page.Configs = append(page.Configs, instanceConfigFromProto(msg))
	}
	return page, nil
}

func (p *Project) AllInstanceConfigs(ctx context.Context) ([]*InstanceConfig, error) {
	var all []*InstanceConfig
	var token string
	for {
		page, err := p.InstanceConfigs(ctx, ListOptions{PageToken: token})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Configs...)
		if page.NextToken == "" {
			return all, nil
		}
		token = page.NextToken
	}
}

// InstanceConfig looks up one placement config, nil when it does not exist.
func (p *Project) InstanceConfig(ctx context.Context, configID string) (*InstanceConfig, error) {
	msg, err := p.svc.GetInstanceConfig(ctx, protocol.InstanceConfigPath(p.id, configID))
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return instanceConfigFromProto(msg), nil
}

func (p *Project) Databases(ctx context.Context, instanceID string, opts ListOptions) (*DatabasePage, error) {
	resp, err := p.svc.ListDatabases(ctx, protocol.InstancePath(p.id, instanceID), opts.PageToken, opts.PageSize)
	if err != nil {
		return nil, err
	}
	page := &DatabasePage{NextToken: resp.NextPageToken}
	for _, msg := range resp.Databases {
		page.Databases = append(page.Databases, databaseFromProto(p.svc, msg))
	}
	return page, nil
}

func (p *Project) AllDatabases(ctx context.Context, instanceID string) ([]*Database, error) {
	var all []*Database
	var token string
	for {
		page, err := p.Databases(ctx, instanceID, ListOptions{PageToken: token})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Databases...)
		if page.NextToken == "" {
			return all, nil
		}
		token = page.NextToken
	}
}

// Database looks up one database, nil when it does not exist.
func (p *Project) Database(ctx context.Context, instanceID, databaseID string) (*Database, error) {
	msg, err := p.svc.GetDatabase(ctx, protocol.DatabasePath(p.id, instanceID, databaseID))
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return databaseFromProto(p.svc, msg), nil
}

// CreateDatabase starts database creation, optionally running DDL
// statements once it exists, and returns the Job tracking it.
func (p *Project) CreateDatabase(ctx context.Context, instanceID, databaseID string, extraStatements ...string) (*Job, error) {
	op, err := p.svc.CreateDatabase(ctx, protocol.InstancePath(p.id, instanceID), databaseID, extraStatements)
	if err != nil {
		return nil, err
	}
	return jobFromOperation(p.svc, op, kindDatabase), nil
}
