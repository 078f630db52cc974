package views

// State is the lifecycle of a detail page or live list.
type State int

const (
	StateLoading State = iota
	StateError
	StateNotFound
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateNotFound:
		return "notFound"
	case StateLoaded:
		return "loaded"
	}
	return "unknown"
}

// Resolve settles a fetch: any error wins, then an absent entity.
func Resolve(err error, found bool) State {
	switch {
	case err != nil:
		return StateError
	case !found:
		return StateNotFound
	default:
		return StateLoaded
	}
}
