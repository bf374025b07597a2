package batch

// Verb is the request method applied to a unit.
type Verb string

const (
	Get    Verb = "GET"
	Post   Verb = "POST"
	Put    Verb = "PUT"
	Patch  Verb = "PATCH"
	Delete Verb = "DELETE"
)

// Valid reports whether v is a known verb.
func (v Verb) Valid() bool {
	switch v {
	case Get, Post, Put, Patch, Delete:
		return true
	}
	return false
}

// State is the coordinator lifecycle state.
type State int

const (
	Idle State = iota
	Accumulating
	Committing
	Committed
	Failed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case Committing:
		return "committing"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further units or commits are accepted.
func (s State) Terminal() bool {
	return s == Committed || s == Failed || s == RolledBack
}

// rollbackMode is how a rollback request is honoured.
type rollbackMode int

const (
	rollbackNone rollbackMode = iota
	rollbackTx                // native transaction
	rollbackQueue             // writes queued for one atomic batch
	rollbackBestEffort        // no support; earlier writes remain
)
