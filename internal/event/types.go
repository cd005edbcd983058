package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypePipelineRebuilt   = "pipeline.rebuilt"
	TypePipelineFailed    = "pipeline.failed"
	TypeChildStarted      = "child.started"
	TypeChildExited       = "child.exited"
	TypeChildKillForced   = "child.kill_forced"
	TypePreviewReload     = "preview.reload"
	TypePreviewConnection = "preview.client_connected"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Pipeline Events
// -----------------------------------------------------------------------------

// PipelineRebuiltEvent is emitted after a pipeline finished writing a build
// without errors. Generation counts builds within one session, starting at 1.
type PipelineRebuiltEvent struct {
	baseEvent
	Pipeline   string
	Generation int
	Outputs    []string
	Duration   time.Duration
}

// NewPipelineRebuiltEvent creates a PipelineRebuiltEvent.
func NewPipelineRebuiltEvent(pipeline string, generation int, outputs []string, d time.Duration) PipelineRebuiltEvent {
	return PipelineRebuiltEvent{
		baseEvent:  newBaseEvent(TypePipelineRebuilt),
		Pipeline:   pipeline,
		Generation: generation,
		Outputs:    outputs,
		Duration:   d,
	}
}

// PipelineFailedEvent is emitted when a rebuild reports errors. The session
// keeps watching.
type PipelineFailedEvent struct {
	baseEvent
	Pipeline string
	Err      error
}

// NewPipelineFailedEvent creates a PipelineFailedEvent.
func NewPipelineFailedEvent(pipeline string, err error) PipelineFailedEvent {
	return PipelineFailedEvent{
		baseEvent: newBaseEvent(TypePipelineFailed),
		Pipeline:  pipeline,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Child Process Events
// -----------------------------------------------------------------------------

// ChildStartedEvent is emitted when a supervisor spawns a child.
type ChildStartedEvent struct {
	baseEvent
	Owner   string
	PID     int
	Command string
}

// NewChildStartedEvent creates a ChildStartedEvent.
func NewChildStartedEvent(owner string, pid int, command string) ChildStartedEvent {
	return ChildStartedEvent{
		baseEvent: newBaseEvent(TypeChildStarted),
		Owner:     owner,
		PID:       pid,
		Command:   command,
	}
}

// ChildExitedEvent is emitted when a child exits. Replaced is true when the
// exit was caused by the supervisor replacing or stopping the child, in
// which case the exit is not propagated.
type ChildExitedEvent struct {
	baseEvent
	Owner    string
	PID      int
	ExitCode int
	Replaced bool
}

// NewChildExitedEvent creates a ChildExitedEvent.
func NewChildExitedEvent(owner string, pid, exitCode int, replaced bool) ChildExitedEvent {
	return ChildExitedEvent{
		baseEvent: newBaseEvent(TypeChildExited),
		Owner:     owner,
		PID:       pid,
		ExitCode:  exitCode,
		Replaced:  replaced,
	}
}

// ChildKillForcedEvent is emitted when a child ignored its termination signal
// for longer than the stop timeout and was killed.
type ChildKillForcedEvent struct {
	baseEvent
	Owner   string
	PID     int
	Timeout time.Duration
}

// NewChildKillForcedEvent creates a ChildKillForcedEvent.
func NewChildKillForcedEvent(owner string, pid int, timeout time.Duration) ChildKillForcedEvent {
	return ChildKillForcedEvent{
		baseEvent: newBaseEvent(TypeChildKillForced),
		Owner:     owner,
		PID:       pid,
		Timeout:   timeout,
	}
}

// -----------------------------------------------------------------------------
// Preview Server Events
// -----------------------------------------------------------------------------

// PreviewReloadEvent is emitted when a reload message is broadcast.
type PreviewReloadEvent struct {
	baseEvent
	Kind    string
	Clients int
}

// NewPreviewReloadEvent creates a PreviewReloadEvent.
func NewPreviewReloadEvent(kind string, clients int) PreviewReloadEvent {
	return PreviewReloadEvent{
		baseEvent: newBaseEvent(TypePreviewReload),
		Kind:      kind,
		Clients:   clients,
	}
}

// PreviewConnectionEvent is emitted when a browser client connects to or
// leaves the reload channel.
type PreviewConnectionEvent struct {
	baseEvent
	ClientID  string
	Connected bool
}

// NewPreviewConnectionEvent creates a PreviewConnectionEvent.
func NewPreviewConnectionEvent(clientID string, connected bool) PreviewConnectionEvent {
	return PreviewConnectionEvent{
		baseEvent: newBaseEvent(TypePreviewConnection),
		ClientID:  clientID,
		Connected: connected,
	}
}
