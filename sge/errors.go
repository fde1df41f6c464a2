package sge

import "fmt"

// ConfigError reports a submission descriptor missing a required field.
// Not retryable; the caller gets it back before anything runs.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("job descriptor missing required field: %s", e.Field)
}

// ParseError reports scheduler output we could not make sense of, either a
// submission confirmation or a status row.
type ParseError struct {
	Output string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable scheduler output (%s): %q", e.Reason, e.Output)
}

// ProtocolViolationError reports a status code outside the recognized set.
// This is fatal to the tracking loop: an unknown code means our model of the
// scheduler is wrong, and guessing would be worse than stopping.
type ProtocolViolationError struct {
	Code StatusCode
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("job status isn't one of ['r','qw','E*','t','u']: %s", e.Code)
}
