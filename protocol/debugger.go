package protocol

import "time"

// Debugger controller method names.
const (
	MethodRegisterDebuggee       = "RegisterDebuggee"
	MethodListActiveBreakpoints  = "ListActiveBreakpoints"
	MethodUpdateActiveBreakpoint = "UpdateActiveBreakpoint"
)

// BreakpointAction selects what happens when a breakpoint location is hit.
type BreakpointAction string

const (
	ActionCapture BreakpointAction = "CAPTURE" // take a snapshot, finalize
	ActionLog     BreakpointAction = "LOG"     // emit a log line, stay active
)

// Debuggee identifies one registered application the debugger can attach to.
type Debuggee struct {
	ID           string            `json:"id,omitempty"` // assigned by the service
	Project      string            `json:"project"`
	Uniquifier   string            `json:"uniquifier"`
	Description  string            `json:"description,omitempty"`
	AgentVersion string            `json:"agent_version,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
}

// SourceLocation is a file/line position in the debuggee's source.
type SourceLocation struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// Variable is one captured name/value pair. Members holds the fields of
// structured values.
type Variable struct {
	Name    string      `json:"name,omitempty"`
	Value   string      `json:"value,omitempty"`
	Type    string      `json:"type,omitempty"`
	Members []*Variable `json:"members,omitempty"`
}

// StackFrame is one captured call frame.
type StackFrame struct {
	Function string          `json:"function"`
	Location *SourceLocation `json:"location,omitempty"`
	Locals   []*Variable     `json:"locals,omitempty"`
}

// Breakpoint is an active or completed snapshot/logpoint.
type Breakpoint struct {
	ID               string           `json:"id"`
	Action           BreakpointAction `json:"action,omitempty"`
	Location         *SourceLocation  `json:"location"`
	Condition        string           `json:"condition,omitempty"`
	Expressions      []string         `json:"expressions,omitempty"`
	LogMessageFormat string           `json:"log_message_format,omitempty"`
	LogLevel         string           `json:"log_level,omitempty"`

	IsFinalState bool      `json:"is_final_state,omitempty"`
	CreateTime   time.Time `json:"create_time,omitempty"`
	FinalTime    time.Time `json:"final_time,omitempty"`

	StackFrames          []*StackFrame `json:"stack_frames,omitempty"`
	EvaluatedExpressions []*Variable   `json:"evaluated_expressions,omitempty"`
	Status               *Status       `json:"status,omitempty"`
}

type RegisterDebuggeeRequest struct {
	Debuggee *Debuggee `json:"debuggee"`
}

type RegisterDebuggeeResponse struct {
	Debuggee *Debuggee `json:"debuggee"`
}

type ListActiveBreakpointsRequest struct {
	DebuggeeID string `json:"debuggee_id"`
	// WaitToken makes the call hang server-side until the active set
	// changes or the server-side wait expires.
	WaitToken string `json:"wait_token,omitempty"`
}

type ListActiveBreakpointsResponse struct {
	Breakpoints   []*Breakpoint `json:"breakpoints"`
	NextWaitToken string        `json:"next_wait_token,omitempty"`
	WaitExpired   bool          `json:"wait_expired,omitempty"`
}

type UpdateActiveBreakpointRequest struct {
	DebuggeeID string      `json:"debuggee_id"`
	Breakpoint *Breakpoint `json:"breakpoint"`
}
