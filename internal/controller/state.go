package controller

// State is the appliance phase.
type State int

const (
	StateInitializing State = iota
	StateIdle
	StateGenerating
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	default:
		return "unknown"
	}
}

// indicators returns the busy/ready levels shown while in s.
func (s State) indicators() (busy, ready bool) {
	if s == StateIdle {
		return false, true
	}
	return true, false
}
