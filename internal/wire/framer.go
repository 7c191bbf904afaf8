package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Framer accumulates bytes from a stream and yields complete JSON values one
// at a time. It is length-agnostic: there is no framing header, so a partial
// value simply waits for more bytes, and multiple values may be concatenated
// back to back with no separator.
//
// Grounded on original_source/src/json_source.rs and src/client.rs: feed
// bytes in, attempt to decode one value, on "unexpected end of JSON input"
// keep the buffer and wait for more, on any other parse error surface
// JSONError and reset the buffer (the malformed-midstream bytes, plus
// whatever valid prefix preceded them, are discarded — see spec.md §9 Open
// Question).
type Framer struct {
	buf []byte
}

// Feed appends newly read bytes to the accumulator. It does not parse them;
// call TryParse for that.
func (f *Framer) Feed(b []byte) {
	f.buf = append(f.buf, b...)
}

// TryParse attempts to decode one JSON value off the front of the
// accumulated bytes into v. It returns (true, nil) on a complete, valid
// value (only the bytes that value occupied are consumed; anything after it
// — including a second, immediately-following value — is retained for the
// next call), (false, nil) if the buffer holds a valid-but-incomplete prefix
// (the buffer is retained as-is), or (false, err) on any other parse error
// (the buffer is reset to empty).
func TryParse[T any](f *Framer, v *T) (bool, error) {
	if len(f.buf) == 0 {
		return false, nil
	}
	dec := json.NewDecoder(bytes.NewReader(f.buf))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil {
		f.buf = append(f.buf[:0], f.buf[dec.InputOffset():]...)
		return true, nil
	}
	if isUnexpectedEOF(err) {
		return false, nil
	}
	f.buf = f.buf[:0]
	return false, &ProtocolError{ID: ErrJSON, Err: err}
}

// Reset clears any buffered bytes, e.g. after a fatal framing error.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Len reports how many unparsed bytes are currently buffered.
func (f *Framer) Len() int { return len(f.buf) }

func isUnexpectedEOF(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Error() == "unexpected end of JSON input"
	}
	return false
}

// ProtocolError wraps an error that corresponds to a valid protocol-level
// reply (spec.md §7): the caller can convert it into an Outcome.Error and
// keep serving the connection instead of tearing it down.
type ProtocolError struct {
	ID  ErrorID
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return string(e.ID)
	}
	return string(e.ID) + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// AsOutcomeError converts a ProtocolError into the wire Outcome error shape.
func (e *ProtocolError) AsOutcomeError() OutcomeError {
	msg := string(e.ID)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return OutcomeError{ID: e.ID, Message: msg}
}
