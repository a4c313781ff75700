package codec

// DecodeError is returned when a payload is corrupt, truncated, or was not
// produced by Encode. It never accompanies partial output.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode payload: " + e.Reason
	}
	return "decode payload: " + e.Reason + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
