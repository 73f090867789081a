package domain

import "fmt"

// SessionMode selects between a one-shot CLI invocation and a background
// auto-relay that lives for the whole process.
type SessionMode int

const (
	ModeRunOnce SessionMode = iota
	ModeBackground
)

func (m SessionMode) String() string {
	if m == ModeRunOnce {
		return "run-once"
	}
	return "background"
}

// Session is the logical pairing of one receive endpoint and one send
// endpoint. The label is stable across reconnects and is the metrics key.
type Session struct {
	ID     string
	Label  string
	Input  EndpointSpec
	Output EndpointSpec
	Mode   SessionMode
}

func (s Session) String() string {
	return fmt.Sprintf("%s (%s -> %s)", s.Label, s.Input.Redacted(), s.Output.Redacted())
}

// PipeOutcome is the terminal result of one pipe run.
type PipeOutcome int

const (
	// PipeCancelled: the pipe observed the shutdown signal. Not an error.
	PipeCancelled PipeOutcome = iota
	// PipeFailed: a fatal transport error ended the pipe.
	PipeFailed
)

func (o PipeOutcome) String() string {
	if o == PipeCancelled {
		return "cancelled"
	}
	return "failed"
}

// SupervisorState is the reconnection state machine position.
type SupervisorState int32

const (
	StateConnecting SupervisorState = iota
	StateRunning
	StateBackingOff
	StateStopped
)

func (s SupervisorState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateBackingOff:
		return "backing_off"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
