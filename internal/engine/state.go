package engine

// outcome is the per-form decision within one request.
type outcome int

const (
	undecided outcome = iota
	passed
	flagged
)

// State tracks, within a single request, which forms have already been
// decided. Once a form is flagged every remaining field gets the uniform
// rejection; once passed, later fields are not reprocessed. Create a fresh
// State per request and pass it through every ValidateField call.
type State struct {
	outcomes map[string]outcome
}

// NewState creates the request-scoped decision state.
func NewState() *State {
	return &State{outcomes: make(map[string]outcome)}
}

func (s *State) outcome(formKey string) outcome {
	return s.outcomes[formKey]
}

func (s *State) flag(formKey string) {
	s.outcomes[formKey] = flagged
}

func (s *State) pass(formKey string) {
	// A flag is final for the request.
	if s.outcomes[formKey] != flagged {
		s.outcomes[formKey] = passed
	}
}
