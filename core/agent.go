package core

// Agent is the unit of work executed by the runner. Implementations receive a
// RunContext carrying session state, stores and the emit channel, and report
// progress exclusively through emitted events.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events through the provided RunContext
//   - Handle the resume mechanism properly when synchronizing on persistence
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes the role (e.g. "analyst",
// "datarunner", "writer").
type AgentInfo struct{ Name, Type string }
