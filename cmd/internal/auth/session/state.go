package session

// State is a node of the per-request session state machine.
type State int

const (
	NoSession State = iota
	InitialSignIn
	Valid
	NeedsRefresh
	Refreshed
	Errored
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "no_session"
	case InitialSignIn:
		return "initial_sign_in"
	case Valid:
		return "valid"
	case NeedsRefresh:
		return "needs_refresh"
	case Refreshed:
		return "refreshed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Healthy reports whether s carries a usable session.
func (s State) Healthy() bool {
	return s == Valid || s == Refreshed
}
