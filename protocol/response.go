package protocol

// Frame is one complete response: a header line and, for body-bearing
// statuses, the data block that follows it.
type Frame struct {
	Status  StatusType // First token of the header line
	Kind    BodyKind   // Whether a data block followed the header
	Success bool       // Status matched the command's expected status

	// Args are the residual header tokens. On success the status token and
	// the body length are removed; on failure Args holds the status alone.
	Args []string

	// Body is a copy of the data block, without its trailing CRLF.
	Body []byte

	// Data is the decoded value of a structured body (stats, tube lists).
	Data any

	// Err is set when a structured body could not be decoded. Framing was
	// not affected: the bytes of the body have been consumed.
	Err error
}

// Value returns the value the request resolves to: the residual header
// tokens followed by the body (decoded when structured). A single element
// is returned as is, several as an ordered []any, none as nil.
func (f *Frame) Value() any {
	values := make([]any, 0, len(f.Args)+1)
	for _, arg := range f.Args {
		values = append(values, arg)
	}

	if f.Success && f.Kind != BodyNone {
		if f.Kind == BodyStructured && f.Data != nil {
			values = append(values, f.Data)
		} else {
			values = append(values, f.Body)
		}
	}

	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}

// Arg returns the i-th residual header token, or "" when missing.
func (f *Frame) Arg(i int) string {
	if i < 0 || i >= len(f.Args) {
		return ""
	}
	return f.Args[i]
}

// AsError returns the error a request completed with this frame fails with,
// or nil when the frame is a success.
func (f *Frame) AsError() error {
	if !f.Success {
		return StatusError(f.Status)
	}
	return f.Err
}
