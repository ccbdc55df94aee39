// Package testutil provides an in-memory Wolke service for tests. The
// fake speaks the same /v1/{Method} JSON contract as the real endpoint,
// enforces Bearer auth, and models just enough state (instances,
// databases, sessions, transactions, operations) for end-to-end client
// tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-arndt/wolkendb/protocol"
)

const TestAPIKey = "wk-test-key"

// Server is the fake service plus its backing state. All exported state
// mutators are safe for concurrent use.
type Server struct {
	http *httptest.Server
	mux  *http.ServeMux

	mu           sync.Mutex
	instances    map[string]*protocol.Instance
	configs      map[string]*protocol.InstanceConfig
	databases    map[string]*protocol.Database
	sessions     map[string]bool
	transactions map[string]string // tx id -> session
	operations   map[string]*operation

	debuggees   map[string]*protocol.Debuggee
	breakpoints map[string]*protocol.Breakpoint

	// OperationPolls is how many GetOperation calls an operation stays
	// pending before it completes. Zero completes immediately.
	OperationPolls int
	// PageSize caps list responses, forcing pagination.
	PageSize int
}

type operation struct {
	msg      *protocol.Operation
	resource any
	polls    int
}

func NewServer() *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		instances:    map[string]*protocol.Instance{},
		configs:      map[string]*protocol.InstanceConfig{},
		databases:    map[string]*protocol.Database{},
		sessions:     map[string]bool{},
		transactions: map[string]string{},
		operations:   map[string]*operation{},
		debuggees:    map[string]*protocol.Debuggee{},
		breakpoints:  map[string]*protocol.Breakpoint{},
		PageSize:     100,
	}
	s.routes()
	s.http = httptest.NewServer(s.auth(s.mux))
	return s
}

func (s *Server) URL() string { return s.http.URL }

func (s *Server) Close() { s.http.Close() }

// AddInstanceConfig seeds a placement config.
func (s *Server) AddInstanceConfig(project, id, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := protocol.InstanceConfigPath(project, id)
	s.configs[name] = &protocol.InstanceConfig{Name: name, DisplayName: displayName}
}

// AddInstance seeds a ready instance.
func (s *Server) AddInstance(project, id string, nodes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := protocol.InstancePath(project, id)
	s.instances[name] = &protocol.Instance{
		Name:        name,
		DisplayName: id,
		NodeCount:   nodes,
		State:       protocol.StateReady,
	}
}

// AddDatabase seeds a ready database.
func (s *Server) AddDatabase(project, instance, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := protocol.DatabasePath(project, instance, id)
	s.databases[name] = &protocol.Database{Name: name, State: protocol.StateReady}
}

// ExpireSession drops a session server-side, so its next use fails with
// NOT_FOUND the way a reaped session would.
func (s *Server) ExpireSession(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, name)
}

// ExpireAllSessions drops every live session, as a full reaper sweep
// would.
func (s *Server) ExpireAllSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]bool{}
}

// SessionCount reports how many sessions are currently live.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SetBreakpoint activates a breakpoint for every registered debuggee.
func (s *Server) SetBreakpoint(bp *protocol.Breakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakpoints[bp.ID] = bp
}

// Breakpoint returns the server's view of one breakpoint, nil when
// unknown.
func (s *Server) Breakpoint(id string) *protocol.Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breakpoints[id]
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got != TestAPIKey {
			writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	handle(s, protocol.MethodListInstances, s.listInstances)
	handle(s, protocol.MethodGetInstance, s.getInstance)
	handle(s, protocol.MethodCreateInstance, s.createInstance)
	handle(s, protocol.MethodUpdateInstance, s.updateInstance)
	handle(s, protocol.MethodListInstanceConfigs, s.listInstanceConfigs)
	handle(s, protocol.MethodGetInstanceConfig, s.getInstanceConfig)
	handle(s, protocol.MethodListDatabases, s.listDatabases)
	handle(s, protocol.MethodGetDatabase, s.getDatabase)
	handle(s, protocol.MethodCreateDatabase, s.createDatabase)
	handle(s, protocol.MethodCreateSession, s.createSession)
	handle(s, protocol.MethodBatchCreateSessions, s.batchCreateSessions)
	handle(s, protocol.MethodDeleteSession, s.deleteSession)
	handle(s, protocol.MethodBeginTransaction, s.beginTransaction)
	handle(s, protocol.MethodExecuteSql, s.executeSql)
	handle(s, protocol.MethodCommit, s.commit)
	handle(s, protocol.MethodRollback, s.rollback)
	handle(s, protocol.MethodGetOperation, s.getOperation)
	handle(s, protocol.MethodRegisterDebuggee, s.registerDebuggee)
	handle(s, protocol.MethodListActiveBreakpoints, s.listActiveBreakpoints)
	handle(s, protocol.MethodUpdateActiveBreakpoint, s.updateActiveBreakpoint)
}

// handle registers a typed JSON handler for one method.
func handle[Req, Resp any](s *Server, method string, fn func(*Req) (*Resp, *statusReply)) {
	s.mux.HandleFunc("POST /v1/"+method, func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeStatus(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
			return
		}
		resp, fault := fn(&req)
		if fault != nil {
			writeStatus(w, fault.httpStatus, fault.code, fault.message)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
}

type statusReply struct {
	httpStatus int
	code       string
	message    string
}

func notFound(format string, args ...any) *statusReply {
	return &statusReply{http.StatusNotFound, "NOT_FOUND", fmt.Sprintf(format, args...)}
}

func writeStatus(w http.ResponseWriter, httpStatus int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]string{
		"error_code": code,
		"message":    message,
	})
}

func (s *Server) listInstances(req *protocol.ListInstancesRequest) (*protocol.ListInstancesResponse, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	prefix := protocol.ProjectPath(req.Project) + "/instances/"
	for name := range s.instances {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	page, next := paginate(names, req.PageToken, s.pageSize(req.PageSize))
	resp := &protocol.ListInstancesResponse{NextPageToken: next}
	for _, name := range page {
		resp.Instances = append(resp.Instances, s.instances[name])
	}
	return resp, nil
}

func (s *Server) getInstance(req *protocol.GetInstanceRequest) (*protocol.Instance, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[req.Name]
	if !ok {
		return nil, notFound("instance %s does not exist", req.Name)
	}
	return inst, nil
}

func (s *Server) createInstance(req *protocol.CreateInstanceRequest) (*protocol.Operation, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[req.Instance.Config]; !ok {
		return nil, notFound("instance config %s does not exist", req.Instance.Config)
	}
	name := protocol.InstancePath(req.Project, req.InstanceID)
	if _, ok := s.instances[name]; ok {
		return nil, &statusReply{http.StatusConflict, "ALREADY_EXISTS", "instance exists"}
	}
	inst := &protocol.Instance{
		Name:        name,
		Config:      req.Instance.Config,
		DisplayName: req.Instance.DisplayName,
		NodeCount:   req.Instance.NodeCount,
		Labels:      req.Instance.Labels,
		State:       protocol.StateCreating,
	}
	s.instances[name] = inst
	return s.startOperation(inst), nil
}

func (s *Server) updateInstance(req *protocol.UpdateInstanceRequest) (*protocol.Instance, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[req.Instance.Name]; !ok {
		return nil, notFound("instance %s does not exist", req.Instance.Name)
	}
	s.instances[req.Instance.Name] = req.Instance
	return req.Instance, nil
}

func (s *Server) listInstanceConfigs(req *protocol.ListInstanceConfigsRequest) (*protocol.ListInstanceConfigsResponse, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	prefix := protocol.ProjectPath(req.Project) + "/instanceConfigs/"
	for name := range s.configs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	page, next := paginate(names, req.PageToken, s.pageSize(req.PageSize))
	resp := &protocol.ListInstanceConfigsResponse{NextPageToken: next}
	for _, name := range page {
		resp.Configs = append(resp.Configs, s.configs[name])
	}
	return resp, nil
}

func (s *Server) getInstanceConfig(req *protocol.GetInstanceConfigRequest) (*protocol.InstanceConfig, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[req.Name]
	if !ok {
		return nil, notFound("instance config %s does not exist", req.Name)
	}
	return cfg, nil
}

func (s *Server) listDatabases(req *protocol.ListDatabasesRequest) (*protocol.ListDatabasesResponse, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	prefix := req.Parent + "/databases/"
	for name := range s.databases {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	page, next := paginate(names, req.PageToken, s.pageSize(req.PageSize))
	resp := &protocol.ListDatabasesResponse{NextPageToken: next}
	for _, name := range page {
		resp.Databases = append(resp.Databases, s.databases[name])
	}
	return resp, nil
}

func (s *Server) getDatabase(req *protocol.GetDatabaseRequest) (*protocol.Database, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.databases[req.Name]
	if !ok {
		return nil, notFound("database %s does not exist", req.Name)
	}
	return db, nil
}

func (s *Server) createDatabase(req *protocol.CreateDatabaseRequest) (*protocol.Operation, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[req.Parent]; !ok {
		return nil, notFound("instance %s does not exist", req.Parent)
	}
	name := req.Parent + "/databases/" + req.DatabaseID
	if _, ok := s.databases[name]; ok {
		return nil, &statusReply{http.StatusConflict, "ALREADY_EXISTS", "database exists"}
	}
	db := &protocol.Database{Name: name, State: protocol.StateCreating}
	s.databases[name] = db
	return s.startOperation(db), nil
}

func (s *Server) createSession(req *protocol.CreateSessionRequest) (*protocol.Session, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.databases[req.Database]; !ok {
		return nil, notFound("database %s does not exist", req.Database)
	}
	return s.newSessionLocked(req.Database), nil
}

func (s *Server) batchCreateSessions(req *protocol.BatchCreateSessionsRequest) (*protocol.BatchCreateSessionsResponse, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.databases[req.Database]; !ok {
		return nil, notFound("database %s does not exist", req.Database)
	}
	resp := &protocol.BatchCreateSessionsResponse{}
	for i := 0; i < req.Count; i++ {
		resp.Sessions = append(resp.Sessions, s.newSessionLocked(req.Database))
	}
	return resp, nil
}

func (s *Server) newSessionLocked(database string) *protocol.Session {
	name := database + "/sessions/" + uuid.NewString()
	s.sessions[name] = true
	return &protocol.Session{Name: name, CreateTime: time.Now().UTC()}
}

func (s *Server) deleteSession(req *protocol.DeleteSessionRequest) (*struct{}, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sessions[req.Name] {
		return nil, notFound("session %s does not exist", req.Name)
	}
	delete(s.sessions, req.Name)
	return &struct{}{}, nil
}

func (s *Server) beginTransaction(req *protocol.BeginTransactionRequest) (*protocol.BeginTransactionResponse, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sessions[req.Session] {
		return nil, notFound("session %s does not exist", req.Session)
	}
	id := "tx-" + uuid.NewString()
	s.transactions[id] = req.Session
	return &protocol.BeginTransactionResponse{TransactionID: id}, nil
}

func (s *Server) executeSql(req *protocol.ExecuteSqlRequest) (*protocol.ResultSet, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sessions[req.Session] {
		return nil, notFound("session %s does not exist", req.Session)
	}
	if req.TransactionID != "" {
		if s.transactions[req.TransactionID] != req.Session {
			return nil, notFound("transaction %s does not exist", req.TransactionID)
		}
	}
	// The fake does not evaluate SQL: selects echo a single row, anything
	// else counts as one affected row.
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(req.Sql)), "SELECT") {
		return &protocol.ResultSet{Columns: []string{"value"}, Rows: [][]any{{1}}}, nil
	}
	return &protocol.ResultSet{RowCount: 1}, nil
}

func (s *Server) commit(req *protocol.CommitRequest) (*protocol.CommitResponse, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transactions[req.TransactionID] != req.Session {
		return nil, notFound("transaction %s does not exist", req.TransactionID)
	}
	delete(s.transactions, req.TransactionID)
	return &protocol.CommitResponse{CommitTime: time.Now().UTC()}, nil
}

func (s *Server) rollback(req *protocol.RollbackRequest) (*struct{}, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transactions[req.TransactionID] != req.Session {
		return nil, notFound("transaction %s does not exist", req.TransactionID)
	}
	delete(s.transactions, req.TransactionID)
	return &struct{}{}, nil
}

// startOperation records a pending operation for resource. Callers hold
// s.mu.
func (s *Server) startOperation(resource any) *protocol.Operation {
	op := &protocol.Operation{Name: "operations/" + uuid.NewString()}
	s.operations[op.Name] = &operation{msg: op, resource: resource, polls: s.OperationPolls}
	return op
}

func (s *Server) getOperation(req *protocol.GetOperationRequest) (*protocol.Operation, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operations[req.Name]
	if !ok {
		return nil, notFound("operation %s does not exist", req.Name)
	}
	if !op.msg.Done {
		if op.polls > 0 {
			op.polls--
			return op.msg, nil
		}
		switch res := op.resource.(type) {
		case *protocol.Instance:
			res.State = protocol.StateReady
		case *protocol.Database:
			res.State = protocol.StateReady
		}
		body, err := json.Marshal(op.resource)
		if err != nil {
			return nil, &statusReply{http.StatusInternalServerError, "INTERNAL_ERROR", err.Error()}
		}
		op.msg.Done = true
		op.msg.Response = body
	}
	return op.msg, nil
}

func (s *Server) registerDebuggee(req *protocol.RegisterDebuggeeRequest) (*protocol.RegisterDebuggeeResponse, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *req.Debuggee
	d.ID = "dbg-" + uuid.NewString()
	s.debuggees[d.ID] = &d
	return &protocol.RegisterDebuggeeResponse{Debuggee: &d}, nil
}

func (s *Server) listActiveBreakpoints(req *protocol.ListActiveBreakpointsRequest) (*protocol.ListActiveBreakpointsResponse, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debuggees[req.DebuggeeID]; !ok {
		return nil, notFound("debuggee %s is not registered", req.DebuggeeID)
	}
	resp := &protocol.ListActiveBreakpointsResponse{NextWaitToken: "w-" + uuid.NewString()}
	for _, bp := range s.breakpoints {
		if !bp.IsFinalState {
			resp.Breakpoints = append(resp.Breakpoints, bp)
		}
	}
	return resp, nil
}

func (s *Server) updateActiveBreakpoint(req *protocol.UpdateActiveBreakpointRequest) (*struct{}, *statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debuggees[req.DebuggeeID]; !ok {
		return nil, notFound("debuggee %s is not registered", req.DebuggeeID)
	}
	if _, ok := s.breakpoints[req.Breakpoint.ID]; !ok {
		return nil, notFound("breakpoint %s does not exist", req.Breakpoint.ID)
	}
	s.breakpoints[req.Breakpoint.ID] = req.Breakpoint
	return &struct{}{}, nil
}

func (s *Server) pageSize(requested int) int {
	if requested > 0 && requested < s.PageSize {
		return requested
	}
	return s.PageSize
}

// paginate slices names into one stable page. Tokens are "offset:N".
func paginate(names []string, token string, size int) (page []string, next string) {
	sort.Strings(names)
	offset := 0
	if token != "" {
		fmt.Sscanf(token, "offset:%d", &offset)
	}
	if offset >= len(names) {
		return nil, ""
	}
	end := offset + size
	if end >= len(names) {
		return names[offset:], ""
	}
	return names[offset:end], fmt.Sprintf("offset:%d", end)
}
