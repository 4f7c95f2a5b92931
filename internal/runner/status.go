package runner

import "fmt"

// State is the phase a command is in. Every state but StateRunning is
// terminal.
type State int

const (
	StateRunning State = iota
	StateCompleted
	StateFailed
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stream identifies which pipe a Running chunk came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Status is one item on an execution's status stream.
//
// Running statuses carry a Chunk from Stream. The stream ends with exactly
// one terminal status: Completed with Code, Failed with Message, or Killed.
type Status struct {
	State   State
	Stream  Stream
	Chunk   []byte
	Code    int32
	Message string
}

// Terminal reports whether s ends the stream.
func (s Status) Terminal() bool {
	return s.State != StateRunning
}

func (s Status) String() string {
	switch s.State {
	case StateRunning:
		return fmt.Sprintf("running(%s, %q)", s.Stream, s.Chunk)
	case StateCompleted:
		return fmt.Sprintf("completed(%d)", s.Code)
	case StateFailed:
		return "failed: " + s.Message
	default:
		return s.State.String()
	}
}

func running(stream Stream, chunk []byte) Status {
	return Status{State: StateRunning, Stream: stream, Chunk: chunk}
}

func completed(code int32) Status {
	return Status{State: StateCompleted, Code: code}
}

func failed(msg string) Status {
	return Status{State: StateFailed, Message: msg}
}

func killed() Status {
	return Status{State: StateKilled}
}
