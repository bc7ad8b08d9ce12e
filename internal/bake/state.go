package bake

// State is the scheduler phase.
type State int

const (
	StateIdle State = iota
	StateBaking
	StateFinishing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBaking:
		return "baking"
	case StateFinishing:
		return "finishing"
	}
	return "unknown"
}
