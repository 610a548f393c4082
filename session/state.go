package session

import "fmt"

// State is the lifecycle position of one live-chat connection attempt.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
	StateError      State = "error"
)

// Event drives state transitions.
type Event string

const (
	EventConnect    Event = "connect"
	EventOpened     Event = "opened"
	EventDisconnect Event = "disconnect"
	EventClosed     Event = "closed"
	EventFail       Event = "fail"
)

// Terminal reports whether no further transitions can leave the state.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateError
}

// Transition applies one event to the state machine.
//
// EventFail moves any non-terminal state to Error. EventDisconnect is valid
// from every state and is a no-op on terminal states, which makes repeated
// disconnects idempotent. EventConnect is only valid from Idle.
func Transition(current State, event Event) (State, error) {
	switch event {
	case EventFail:
		if current.Terminal() {
			return current, nil
		}
		return StateError, nil
	case EventDisconnect:
		if current.Terminal() {
			return current, nil
		}
		return StateClosing, nil
	case EventClosed:
		if current == StateError {
			return current, nil
		}
		return StateClosed, nil
	}

	switch current {
	case StateIdle:
		if event == EventConnect {
			return StateConnecting, nil
		}
	case StateConnecting:
		if event == EventOpened {
			return StateOpen, nil
		}
	}
	return current, fmt.Errorf("invalid transition: %s --(%s)--> ?", current, event)
}
