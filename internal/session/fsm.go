package session

// State identifies a navigation session lifecycle phase.
type State string

// Lifecycle states of a navigation session.
const (
	StateSearching           State = "searching"
	StateDestinationSelected State = "destination_selected"
	StateRoutesFound         State = "routes_found"
	StateNavigating          State = "navigating"
	StateCompleted           State = "completed"
)

var transitions = map[State]map[State]struct{}{
	StateSearching:           {StateDestinationSelected: {}},
	StateDestinationSelected: {StateRoutesFound: {}},
	StateRoutesFound:         {StateNavigating: {}, StateDestinationSelected: {}},
	StateNavigating:          {StateCompleted: {}},
	StateCompleted:           {StateSearching: {}},
}

// CanTransition reports whether the session may move from one state to
// another. Re-entering the current state is always allowed (idempotent
// no-op), and every state may reset to searching.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	if to == StateSearching {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}
