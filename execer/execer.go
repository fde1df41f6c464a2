// Package execer abstracts running one external command. It is at the level
// of os/exec, not exec-as-a-service: callers hand over an argv, optional
// stdin text, and writers, and get back the exit status. Everything the
// tracking subsystem shells out to (qsub, qstat, qacct, rm) goes through an
// Execer so the state machine can be exercised hermetically with fakes.
package execer

import (
	"bytes"
	"io"
)

type Command struct {
	Argv []string

	// Key-value pairs appended to the parent environment.
	EnvVars map[string]string

	// Working directory for the process. Empty means inherit.
	Dir string

	// Text fed to the process on stdin. Empty means no stdin.
	Stdin string

	Stdout io.Writer
	Stderr io.Writer
}

type ProcessStatus struct {
	ExitCode int
}

// Execer runs a command synchronously. A non-nil error means the process
// could not be run at all; a non-zero ExitCode is not an error.
type Execer interface {
	Exec(command Command) (ProcessStatus, error)
}

// Output runs command with stdout captured to a buffer and returns the text.
func Output(e Execer, command Command) (string, ProcessStatus, error) {
	var out bytes.Buffer
	command.Stdout = &out
	st, err := e.Exec(command)
	return out.String(), st, err
}
