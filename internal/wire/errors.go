package wire

import "fmt"

// The types below are the internal Go error taxonomy that every other
// package in this module returns and wraps with fmt.Errorf("...: %w", err),
// following the teacher's convention in daemon.go/project.go. They are
// distinct from OutcomeError: these are ordinary Go errors that a request
// handler converts to an OutcomeError at the point it writes a Reply, the
// same way original_source/src/error.rs's Error<E> enum is converted to a
// Reply in json_request_processor.rs.

// UnsupportedInputError reports a terminal byte sequence the input
// translator has no keysym mapping for.
type UnsupportedInputError struct {
	Input string
}

func (e *UnsupportedInputError) Error() string {
	return fmt.Sprintf("unsupported input: %s", e.Input)
}

// MoreThanOneClientError is returned when stop_server is called while more
// than one client is connected; spec.md requires stop_client still succeed
// in that case.
type MoreThanOneClientError struct {
	ClientCount int
}

func (e *MoreThanOneClientError) Error() string {
	return fmt.Sprintf("more than one client is connected (%d)", e.ClientCount)
}

// OptionNotFoundError is returned by config_value_integer when the engine
// has no value at the requested key.
type OptionNotFoundError struct {
	ConfigID  string
	OptionKey string
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("option not found: %s/%s", e.ConfigID, e.OptionKey)
}

// ConfigNotFoundError is returned by config_value_integer when config_id
// does not name a loaded config.
type ConfigNotFoundError struct {
	ConfigID string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config not found: %s", e.ConfigID)
}

// IOError wraps an underlying I/O failure (socket, tty, pipe) with the
// wire-visible io_error identifier.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("io error: %s", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// ToOutcomeError maps an internal error to the wire Outcome.Error shape. It
// returns (OutcomeError{}, false) for errors that have no protocol-level
// representation and must instead tear down the connection.
func ToOutcomeError(err error) (OutcomeError, bool) {
	switch e := err.(type) {
	case *UnsupportedInputError:
		return OutcomeError{ID: ErrUnsupportedInput, Message: e.Error()}, true
	case *MoreThanOneClientError:
		return OutcomeError{ID: ErrMoreThanOneClient, Message: e.Error()}, true
	case *OptionNotFoundError:
		return OutcomeError{ID: ErrOptionNotFound, Message: e.Error()}, true
	case *ConfigNotFoundError:
		return OutcomeError{ID: ErrConfigNotFound, Message: e.Error()}, true
	case *IOError:
		return OutcomeError{ID: ErrIO, Message: e.Error()}, true
	case *ProtocolError:
		return e.AsOutcomeError(), true
	default:
		return OutcomeError{}, false
	}
}
