// Package service is the facade over the raw Wolke RPC surface: one method
// per remote operation. Each method builds a typed request, invokes the
// transport, and returns the typed response untouched. Fault translation
// (not-found to absent result) happens at the lookup call sites above.
package service

import (
	"context"

	"github.com/p-arndt/wolkendb/internal/transport"
	"github.com/p-arndt/wolkendb/protocol"
)

type Service struct {
	inv transport.Invoker
}

func New(inv transport.Invoker) *Service {
	return &Service{inv: inv}
}

func (s *Service) ListInstances(ctx context.Context, project, pageToken string, pageSize int) (*protocol.ListInstancesResponse, error) {
	req := &protocol.ListInstancesRequest{Project: project, PageToken: pageToken, PageSize: pageSize}
	var resp protocol.ListInstancesResponse
	if err := s.inv.Invoke(ctx, protocol.MethodListInstances, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) GetInstance(ctx context.Context, name string) (*protocol.Instance, error) {
	var resp protocol.Instance
	if err := s.inv.Invoke(ctx, protocol.MethodGetInstance, &protocol.GetInstanceRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) CreateInstance(ctx context.Context, project, instanceID string, inst *protocol.Instance) (*protocol.Operation, error) {
	req := &protocol.CreateInstanceRequest{Project: project, InstanceID: instanceID, Instance: inst}
	var resp protocol.Operation
	if err := s.inv.Invoke(ctx, protocol.MethodCreateInstance, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) UpdateInstance(ctx context.Context, inst *protocol.Instance) (*protocol.Instance, error) {
	var resp protocol.Instance
	if err := s.inv.Invoke(ctx, protocol.MethodUpdateInstance, &protocol.UpdateInstanceRequest{Instance: inst}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) ListInstanceConfigs(ctx context.Context, project, pageToken string, pageSize int) (*protocol.ListInstanceConfigsResponse, error) {
	req := &protocol.ListInstanceConfigsRequest{Project: project, PageToken: pageToken, PageSize: pageSize}
	var resp protocol.ListInstanceConfigsResponse
	if err := s.inv.Invoke(ctx, protocol.MethodListInstanceConfigs, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) GetInstanceConfig(ctx context.Context, name string) (*protocol.InstanceConfig, error) {
	var resp protocol.InstanceConfig
	if err := s.inv.Invoke(ctx, protocol.MethodGetInstanceConfig, &protocol.GetInstanceConfigRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) ListDatabases(ctx context.Context, instancePath, pageToken string, pageSize int) (*protocol.ListDatabasesResponse, error) {
	req := &protocol.ListDatabasesRequest{Parent: instancePath, PageToken: pageToken, PageSize: pageSize}
	var resp protocol.ListDatabasesResponse
	if err := s.inv.Invoke(ctx, protocol.MethodListDatabases, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) GetDatabase(ctx context.Context, name string) (*protocol.Database, error) {
	var resp protocol.Database
	if err := s.inv.Invoke(ctx, protocol.MethodGetDatabase, &protocol.GetDatabaseRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) CreateDatabase(ctx context.Context, instancePath, databaseID string, extraStatements []string) (*protocol.Operation, error) {
	req := &protocol.CreateDatabaseRequest{Parent: instancePath, DatabaseID: databaseID, ExtraStatements: extraStatements}
	var resp protocol.Operation
	if err := s.inv.Invoke(ctx, protocol.MethodCreateDatabase, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) CreateSession(ctx context.Context, database string) (*protocol.Session, error) {
	var resp protocol.Session
	if err := s.inv.Invoke(ctx, protocol.MethodCreateSession, &protocol.CreateSessionRequest{Database: database}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) BatchCreateSessions(ctx context.Context, database string, count int) ([]*protocol.Session, error) {
	req := &protocol.BatchCreateSessionsRequest{Database: database, Count: count}
	var resp protocol.BatchCreateSessionsResponse
	if err := s.inv.Invoke(ctx, protocol.MethodBatchCreateSessions, req, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (s *Service) DeleteSession(ctx context.Context, name string) error {
	return s.inv.Invoke(ctx, protocol.MethodDeleteSession, &protocol.DeleteSessionRequest{Name: name}, nil)
}

func (s *Service) BeginTransaction(ctx context.Context, session string) (string, error) {
	var resp protocol.BeginTransactionResponse
	if err := s.inv.Invoke(ctx, protocol.MethodBeginTransaction, &protocol.BeginTransactionRequest{Session: session}, &resp); err != nil {
		return "", err
	}
	return resp.TransactionID, nil
}

func (s *Service) ExecuteSql(ctx context.Context, req *protocol.ExecuteSqlRequest) (*protocol.ResultSet, error) {
	var resp protocol.ResultSet
	if err := s.inv.Invoke(ctx, protocol.MethodExecuteSql, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) Commit(ctx context.Context, session, transactionID string) (*protocol.CommitResponse, error) {
	req := &protocol.CommitRequest{Session: session, TransactionID: transactionID}
	var resp protocol.CommitResponse
	if err := s.inv.Invoke(ctx, protocol.MethodCommit, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) Rollback(ctx context.Context, session, transactionID string) error {
	req := &protocol.RollbackRequest{Session: session, TransactionID: transactionID}
	return s.inv.Invoke(ctx, protocol.MethodRollback, req, nil)
}

func (s *Service) GetOperation(ctx context.Context, name string) (*protocol.Operation, error) {
	var resp protocol.Operation
	if err := s.inv.Invoke(ctx, protocol.MethodGetOperation, &protocol.GetOperationRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) RegisterDebuggee(ctx context.Context, d *protocol.Debuggee) (*protocol.Debuggee, error) {
	var resp protocol.RegisterDebuggeeResponse
	if err := s.inv.Invoke(ctx, protocol.MethodRegisterDebuggee, &protocol.RegisterDebuggeeRequest{Debuggee: d}, &resp); err != nil {
		return nil, err
	}
	return resp.Debuggee, nil
}

func (s *Service) ListActiveBreakpoints(ctx context.Context, debuggeeID, waitToken string) (*protocol.ListActiveBreakpointsResponse, error) {
	req := &protocol.ListActiveBreakpointsRequest{DebuggeeID: debuggeeID, WaitToken: waitToken}
	var resp protocol.ListActiveBreakpointsResponse
	if err := s.inv.Invoke(ctx, protocol.MethodListActiveBreakpoints, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) UpdateActiveBreakpoint(ctx context.Context, debuggeeID string, bp *protocol.Breakpoint) error {
	req := &protocol.UpdateActiveBreakpointRequest{DebuggeeID: debuggeeID, Breakpoint: bp}
	return s.inv.Invoke(ctx, protocol.MethodUpdateActiveBreakpoint, req, nil)
}
