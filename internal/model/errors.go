package model

// ValidationError reports invalid user input on a boundary operation
// (empty note text, unknown status filter). Callers can render the
// message directly.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}
