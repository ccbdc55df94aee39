// Package protocol defines the JSON message types exchanged with the Wolke
// remote API: one request/response pair per RPC method, plus the resource
// snapshots those RPCs return.
package protocol

import (
	"encoding/json"
	"time"
)

// Method names accepted by the v1 RPC endpoint.
const (
	MethodListInstances       = "ListInstances"
	MethodGetInstance         = "GetInstance"
	MethodCreateInstance      = "CreateInstance"
	MethodUpdateInstance      = "UpdateInstance"
	MethodListInstanceConfigs = "ListInstanceConfigs"
	MethodGetInstanceConfig   = "GetInstanceConfig"

	MethodListDatabases  = "ListDatabases"
	MethodGetDatabase    = "GetDatabase"
	MethodCreateDatabase = "CreateDatabase"

	MethodCreateSession       = "CreateSession"
	MethodBatchCreateSessions = "BatchCreateSessions"
	MethodDeleteSession       = "DeleteSession"

	MethodBeginTransaction = "BeginTransaction"
	MethodExecuteSql       = "ExecuteSql"
	MethodCommit           = "Commit"
	MethodRollback         = "Rollback"

	MethodGetOperation = "GetOperation"
)

// Resource lifecycle states as reported by the service.
const (
	StateCreating = "CREATING"
	StateReady    = "READY"
)

// Instance is a server-reported instance snapshot.
type Instance struct {
	Name        string            `json:"name"` // projects/{p}/instances/{i}
	Config      string            `json:"config"`
	DisplayName string            `json:"display_name"`
	NodeCount   int               `json:"node_count"`
	State       string            `json:"state"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// InstanceConfig describes a possible geographic placement for instances.
type InstanceConfig struct {
	Name        string `json:"name"` // projects/{p}/instanceConfigs/{c}
	DisplayName string `json:"display_name"`
}

// Database is a server-reported database snapshot.
type Database struct {
	Name  string `json:"name"` // projects/{p}/instances/{i}/databases/{d}
	State string `json:"state"`
}

// Session is a server-allocated handle scoped to one database. All
// transactional RPCs require one.
type Session struct {
	Name       string    `json:"name"`
	CreateTime time.Time `json:"create_time,omitempty"`
}

// Status carries a remote fault in API responses and operation results.
type Status struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// Operation is a long-running operation snapshot. Response holds the
// resulting resource once Done is true and the operation succeeded.
type Operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Error    *Status         `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// ResultSet is the outcome of ExecuteSql. Rows is empty for DML, which
// reports the affected row count instead.
type ResultSet struct {
	Columns  []string `json:"columns,omitempty"`
	Rows     [][]any  `json:"rows,omitempty"`
	RowCount int64    `json:"row_count,omitempty"`
}

type ListInstancesRequest struct {
	Project   string `json:"project"`
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type ListInstancesResponse struct {
	Instances     []*Instance `json:"instances"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

type GetInstanceRequest struct {
	Name string `json:"name"`
}

type CreateInstanceRequest struct {
	Project    string    `json:"project"`
	InstanceID string    `json:"instance_id"`
	Instance   *Instance `json:"instance"`
}

type UpdateInstanceRequest struct {
	Instance *Instance `json:"instance"`
}

type ListInstanceConfigsRequest struct {
	Project   string `json:"project"`
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type ListInstanceConfigsResponse struct {
	Configs       []*InstanceConfig `json:"configs"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type GetInstanceConfigRequest struct {
	Name string `json:"name"`
}

type ListDatabasesRequest struct {
	Parent    string `json:"parent"` // instance path
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type ListDatabasesResponse struct {
	Databases     []*Database `json:"databases"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

type GetDatabaseRequest struct {
	Name string `json:"name"`
}

type CreateDatabaseRequest struct {
	Parent     string `json:"parent"`
	DatabaseID string `json:"database_id"`
	// ExtraStatements are DDL statements run after the database exists.
	ExtraStatements []string `json:"extra_statements,omitempty"`
}

type CreateSessionRequest struct {
	Database string `json:"database"`
}

type BatchCreateSessionsRequest struct {
	Database string `json:"database"`
	Count    int    `json:"count"`
}

type BatchCreateSessionsResponse struct {
	Sessions []*Session `json:"sessions"`
}

type DeleteSessionRequest struct {
	Name string `json:"name"`
}

type BeginTransactionRequest struct {
	Session string `json:"session"`
}

type BeginTransactionResponse struct {
	TransactionID string `json:"transaction_id"`
}

type ExecuteSqlRequest struct {
	Session string `json:"session"`
	// TransactionID selects the transaction to run in; empty means a
	// single-use implicit transaction.
	TransactionID string         `json:"transaction_id,omitempty"`
	Sql           string         `json:"sql"`
	Params        map[string]any `json:"params,omitempty"`
}

type CommitRequest struct {
	Session       string `json:"session"`
	TransactionID string `json:"transaction_id"`
}

type CommitResponse struct {
	CommitTime time.Time `json:"commit_time"`
}

type RollbackRequest struct {
	Session       string `json:"session"`
	TransactionID string `json:"transaction_id"`
}

type GetOperationRequest struct {
	Name string `json:"name"`
}

func ProjectPath(project string) string {
	return "projects/" + project
}

func InstancePath(project, instance string) string {
	return ProjectPath(project) + "/instances/" + instance
}

func InstanceConfigPath(project, config string) string {
	return ProjectPath(project) + "/instanceConfigs/" + config
}

func DatabasePath(project, instance, database string) string {
	return InstancePath(project, instance) + "/databases/" + database
}
