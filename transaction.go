package wolkendb

import (
	"context"

	"github.com/p-arndt/wolkendb/internal/pool"
	"github.com/p-arndt/wolkendb/internal/service"
	"github.com/p-arndt/wolkendb/internal/transport"
	"github.com/p-arndt/wolkendb/protocol"
)

// Transaction is the handle passed to a ReadWriteTransaction body. All
// statements run on the same session inside the same transaction; commit
// and rollback are driven by the enclosing call, never by fn.
type Transaction struct {
	db      *service.DatabaseService
	session *pool.Session
	id      string
}

// ID is the server-assigned transaction id.
func (t *Transaction) ID() string { return t.id }

// Query runs a statement inside the transaction and returns its rows.
func (t *Transaction) Query(ctx context.Context, sql string, params map[string]any) (*protocol.ResultSet, error) {
	rs, err := t.db.ExecuteSql(ctx, &protocol.ExecuteSqlRequest{
		Session:       t.session.Name,
		TransactionID: t.id,
		Sql:           sql,
		Params:        params,
	})
	if err != nil {
		if transport.IsNotFound(err) {
			t.session.Invalidate()
		}
		return nil, err
	}
	return rs, nil
}

// Exec runs a DML statement inside the transaction and returns the
// affected row count.
func (t *Transaction) Exec(ctx context.Context, sql string, params map[string]any) (int64, error) {
	rs, err := t.Query(ctx, sql, params)
	if err != nil {
		return 0, err
	}
	return rs.RowCount, nil
}
