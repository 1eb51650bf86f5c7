package rulesync

import "fmt"

// State is the synchronization loop state.
type State int32

const (
	StateInit State = iota
	StateWaiting
	StateProcessing
	StateRestarting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateWaiting:
		return "waiting"
	case StateProcessing:
		return "processing"
	case StateRestarting:
		return "restarting"
	case StateStopped:
		return "stopped"
	}

	return fmt.Sprintf("state(%d)", int32(s))
}
