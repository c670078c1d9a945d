package orchestrators

// InputError marks a failure caused by what the caller submitted rather than
// by the backing store. Transports map it to a client error; anything
// unwrapped is treated as an internal failure.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

// invalidInput wraps err as caller-correctable. nil stays nil.
func invalidInput(err error) error {
	if err == nil {
		return nil
	}
	return &InputError{Err: err}
}
