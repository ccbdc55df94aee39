package service

import (
	"context"

	"github.com/p-arndt/wolkendb/protocol"
)

// DatabaseService binds the session and transaction RPCs to one database,
// which is the shape the session pool works against.
type DatabaseService struct {
	svc      *Service
	database string
}

func NewDatabaseService(svc *Service, database string) *DatabaseService {
	return &DatabaseService{svc: svc, database: database}
}

func (d *DatabaseService) Database() string { return d.database }

func (d *DatabaseService) CreateSession(ctx context.Context) (string, error) {
	s, err := d.svc.CreateSession(ctx, d.database)
	if err != nil {
		return "", err
	}
	return s.Name, nil
}

func (d *DatabaseService) BatchCreateSessions(ctx context.Context, count int) ([]string, error) {
	sessions, err := d.svc.BatchCreateSessions(ctx, d.database, count)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(sessions))
	for i, s := range sessions {
		names[i] = s.Name
	}
	return names, nil
}

func (d *DatabaseService) DeleteSession(ctx context.Context, name string) error {
	return d.svc.DeleteSession(ctx, name)
}

func (d *DatabaseService) BeginTransaction(ctx context.Context, session string) (string, error) {
	return d.svc.BeginTransaction(ctx, session)
}

// PingSession runs a trivial statement to keep the session alive
// server-side and to verify it still exists.
func (d *DatabaseService) PingSession(ctx context.Context, session string) error {
	_, err := d.svc.ExecuteSql(ctx, &protocol.ExecuteSqlRequest{Session: session, Sql: "SELECT 1"})
	return err
}

func (d *DatabaseService) ExecuteSql(ctx context.Context, req *protocol.ExecuteSqlRequest) (*protocol.ResultSet, error) {
	return d.svc.ExecuteSql(ctx, req)
}

func (d *DatabaseService) Commit(ctx context.Context, session, transactionID string) (*protocol.CommitResponse, error) {
	return d.svc.Commit(ctx, session, transactionID)
}

func (d *DatabaseService) Rollback(ctx context.Context, session, transactionID string) error {
	return d.svc.Rollback(ctx, session, transactionID)
}
