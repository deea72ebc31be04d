package protocol

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// Pre-allocated byte slices for comparisons (avoid allocation in hot path)
var crlfBytes = []byte(CRLF)

// maxBodyLength bounds declared body sizes so header+body offsets cannot overflow.
const maxBodyLength = math.MaxInt32

// Stage is the position of a request in the response state machine:
// AwaitingHeader -> [AwaitingBody] -> Completed.
type Stage int

const (
	StageAwaitingHeader Stage = iota
	StageAwaitingBody
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingHeader:
		return "awaiting-header"
	case StageAwaitingBody:
		return "awaiting-body"
	case StageCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseState is the parser's memory for the request at the head of the
// queue. The zero value is ready to use; it must be Reset (or discarded)
// once the request completes.
//
// The buffer handed to Parse must start at the first byte of this
// request's frame and only grow between calls until the frame completes.
type ParseState struct {
	scanned   int // bytes already searched for the header terminator
	headerLen int // header line length including CRLF, 0 until located

	status  StatusType
	args    []string // tokens after the status, body length removed
	kind    BodyKind
	bodyLen int

	complete bool
}

// Reset clears the state for a new frame.
func (s *ParseState) Reset() {
	*s = ParseState{}
}

// Stage reports how far parsing has progressed.
func (s *ParseState) Stage() Stage {
	switch {
	case s.complete:
		return StageCompleted
	case s.headerLen > 0 && s.kind != BodyNone:
		return StageAwaitingBody
	default:
		return StageAwaitingHeader
	}
}

// HeaderFound reports whether the header line has been located.
func (s *ParseState) HeaderFound() bool { return s.headerLen > 0 }

// Status returns the status token, once the header has been found.
func (s *ParseState) Status() StatusType { return s.status }

// BodyLen returns the declared body length of a body-bearing status.
func (s *ParseState) BodyLen() int { return s.bodyLen }

// Parse tries to complete one frame from the start of buf for a request
// expecting the status expect.
//
// It returns (nil, 0, nil) when buf does not hold a complete frame yet; st
// keeps what was learned so the next call with more bytes resumes. When a
// frame completes, consumed is the exact number of bytes it occupies:
// header line plus, for body-bearing statuses, the body and its CRLF. Bytes
// past consumed belong to the next frame.
//
// A command expecting StatusNone has no response: it completes as soon as
// no header line is available, consuming nothing.
//
// The only errors are framing violations (*ParseError). They are fatal: the
// stream can no longer be split into frames.
func Parse(buf []byte, expect StatusType, st *ParseState, decode BodyDecoder) (frame *Frame, consumed int, err error) {
	if st.headerLen == 0 {
		if st.scanned > len(buf) {
			st.scanned = 0
		}

		idx := bytes.Index(buf[st.scanned:], crlfBytes)
		if idx == -1 {
			if expect == StatusNone {
				st.complete = true
				return &Frame{Success: true}, 0, nil
			}

			// The terminator may straddle the next read, rescan the last byte
			if len(buf) > 0 {
				st.scanned = len(buf) - 1
			}
			return nil, 0, nil
		}

		lineEnd := st.scanned + idx
		if err := st.readHeader(buf[:lineEnd]); err != nil {
			return nil, 0, err
		}
		st.headerLen = lineEnd + len(crlfBytes)
	}

	frame = &Frame{
		Status: st.status,
		Kind:   st.kind,
	}
	consumed = st.headerLen

	if st.kind != BodyNone {
		bodyEnd := st.headerLen + st.bodyLen
		if len(buf) < bodyEnd+len(crlfBytes) {
			return nil, 0, nil
		}

		if !bytes.Equal(buf[bodyEnd:bodyEnd+len(crlfBytes)], crlfBytes) {
			return nil, 0, &ParseError{
				Message: "invalid data block terminator",
				Line:    st.headerLine(),
			}
		}

		// Copy out: the caller reuses buf for the following frames
		frame.Body = bytes.Clone(buf[st.headerLen:bodyEnd])
		if frame.Body == nil {
			frame.Body = []byte{}
		}
		consumed = bodyEnd + len(crlfBytes)

		if st.kind == BodyStructured && decode != nil {
			data, err := decode(frame.Body)
			if err != nil {
				frame.Err = &DecodeError{Status: st.status, Err: err}
			} else {
				frame.Data = data
			}
		}
	}

	if st.status == expect {
		frame.Success = true
		frame.Args = st.args
	} else {
		frame.Args = []string{string(st.status)}
	}

	st.complete = true
	return frame, consumed, nil
}

// readHeader splits the header line into the status and its arguments.
func (s *ParseState) readHeader(line []byte) error {
	tokens := strings.Fields(string(line))
	if len(tokens) == 0 {
		return &ParseError{Message: "empty response line"}
	}

	s.status = StatusType(tokens[0])
	s.kind = BodyKindOf(s.status)
	s.args = tokens[1:]

	if s.kind == BodyNone {
		return nil
	}

	// The body length is always the last header token
	last := tokens[len(tokens)-1]
	n, err := strconv.Atoi(last)
	if err != nil || len(tokens) < 2 {
		return &ParseError{
			Message: "invalid body length in " + string(s.status) + " response",
			Line:    string(line),
			Err:     err,
		}
	}
	if n < 0 || n > maxBodyLength {
		return &ParseError{
			Message: "body length out of bounds in " + string(s.status) + " response",
			Line:    string(line),
		}
	}

	s.bodyLen = n
	s.args = tokens[1 : len(tokens)-1]
	return nil
}

func (s *ParseState) headerLine() string {
	parts := make([]string, 0, len(s.args)+2)
	parts = append(parts, string(s.status))
	parts = append(parts, s.args...)
	parts = append(parts, strconv.Itoa(s.bodyLen))
	return strings.Join(parts, Space)
}
