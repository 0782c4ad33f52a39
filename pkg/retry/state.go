package retry

import "fmt"

// State is a step of the self-correcting request loop.
//
//	Pending -> AwaitingLLM -> Parsing -> Validating [-> Executing] -> Succeeded
//	                 ^                                                |
//	                 +------------- Retrying <---- (recoverable) -----+
//	                                   |
//	                                   +--> Abandoned (attempt cap, cancellation, fatal error)
type State int

const (
	StatePending State = iota
	StateAwaitingLLM
	StateParsing
	StateValidating
	StateExecuting
	StateSucceeded
	StateRetrying
	StateAbandoned
)

var stateNames = map[State]string{
	StatePending:     "pending",
	StateAwaitingLLM: "awaiting-llm",
	StateParsing:     "parsing",
	StateValidating:  "validating",
	StateExecuting:   "executing",
	StateSucceeded:   "succeeded",
	StateRetrying:    "retrying",
	StateAbandoned:   "abandoned",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateAbandoned
}

// Transition is a recorded state change.
type Transition struct {
	Attempt int
	From    State
	To      State
}
