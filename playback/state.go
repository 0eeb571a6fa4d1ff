package playback

import "sync"

// StateType is the state of one pronunciation request.
type StateType int

const (
	// StateIdle is the state before a request is accepted.
	StateIdle StateType = iota
	// StateCheckingGesture checks the gesture gate.
	StateCheckingGesture
	// StateSelectingStrategy picks the next strategy from the ordered list.
	StateSelectingStrategy
	// StateExecuting runs a strategy.
	StateExecuting
	// StateCompleted is terminal: audio played.
	StateCompleted
	// StateFailed is terminal.
	StateFailed
	// StateDegradedToText is terminal: the text was shown instead.
	StateDegradedToText
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingGesture:
		return "checking-gesture"
	case StateSelectingStrategy:
		return "selecting-strategy"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateDegradedToText:
		return "degraded-to-text"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s StateType) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateDegradedToText
}

// StateMachine guards the transitions of one request. Stop may fail a
// request from any non-terminal state.
type StateMachine struct {
	mu          sync.Mutex
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func(from StateType)
}

// NewStateMachine creates a state machine in StateIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:              {StateCheckingGesture, StateFailed},
			StateCheckingGesture:   {StateSelectingStrategy, StateFailed},
			StateSelectingStrategy: {StateExecuting, StateFailed},
			StateExecuting:         {StateSelectingStrategy, StateCompleted, StateFailed, StateDegradedToText},
		},
		onEnter: make(map[StateType]func(StateType)),
	}
}

// Transition attempts to move to the given state.
func (sm *StateMachine) Transition(to StateType) bool {
	sm.mu.Lock()
	from := sm.current
	valid := false
	for _, state := range sm.transitions[from] {
		if state == to {
			valid = true
			break
		}
	}
	if !valid {
		sm.mu.Unlock()
		return false
	}
	sm.current = to
	enterFn := sm.onEnter[to]
	sm.mu.Unlock()

	if enterFn != nil {
		enterFn(from)
	}
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func(from StateType)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onEnter[state] = fn
}
