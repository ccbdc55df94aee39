package debugger

import (
	"context"

	"github.com/p-arndt/wolkendb/protocol"
)

// Controller is the debugger controller RPC surface the agent talks to.
type Controller interface {
	// RegisterDebuggee announces the application to the controller and
	// returns the debuggee with its service-assigned ID filled in.
	RegisterDebuggee(ctx context.Context, d *protocol.Debuggee) (*protocol.Debuggee, error)

	// ListActiveBreakpoints returns the breakpoints currently set on the
	// debuggee. With a wait token the call blocks server-side until the
	// set changes or the server's wait window expires.
	ListActiveBreakpoints(ctx context.Context, debuggeeID, waitToken string) (*protocol.ListActiveBreakpointsResponse, error)

	// UpdateActiveBreakpoint reports a breakpoint's captured results.
	UpdateActiveBreakpoint(ctx context.Context, debuggeeID string, bp *protocol.Breakpoint) error
}

// Handler receives breakpoint lifecycle events from the agent's poll
// loop. Implementations instrument the running process: setting the
// actual trap and capturing stack data happens behind this interface.
// Calls are made from the agent's own goroutine, never concurrently.
type Handler interface {
	// Attach is called once for each newly activated breakpoint.
	Attach(bp *protocol.Breakpoint)

	// Detach is called when a previously attached breakpoint is no
	// longer active, for instance after another client removed it.
	Detach(id string)
}
