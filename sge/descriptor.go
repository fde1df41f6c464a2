// Package sge speaks Sun Grid Engine's text protocols: building qsub
// submissions, parsing qstat listings, and reading qacct accounting records.
// All external processes run through an execer.Execer.
package sge

import (
	"fmt"
	"strconv"
	"strings"
)

// JobDescriptor is everything a submission needs. Immutable once submission
// begins.
type JobDescriptor struct {
	// Command line to execute on the compute node.
	Command string
	// Symbolic job name (qsub -N).
	JobName string
	// Slot count for the parallel environment.
	Slots int
	// Parallel environment name (qsub -pe).
	ParallelEnv string
	// Absolute paths the scheduler redirects the job's streams to.
	Outfile string
	Errfile string
}

func (d *JobDescriptor) Validate() error {
	switch {
	case d.Command == "":
		return &ConfigError{Field: "Command"}
	case d.JobName == "":
		return &ConfigError{Field: "JobName"}
	case d.Slots < 1:
		return &ConfigError{Field: "Slots"}
	case d.ParallelEnv == "":
		return &ConfigError{Field: "ParallelEnv"}
	case d.Outfile == "":
		return &ConfigError{Field: "Outfile"}
	case d.Errfile == "":
		return &ConfigError{Field: "Errfile"}
	}
	return nil
}

// Invocation is a submission held as structured pieces: the qsub argv and
// the command text fed to it on stdin. Text rendering happens only at the
// process boundary, so nothing here is shell-interpolated.
type Invocation struct {
	// The submit command and its flags.
	Argv []string
	// Command text piped to the submit command's stdin.
	Stdin string
}

// String renders the invocation the way it would read in a shell, for logs.
func (i Invocation) String() string {
	return fmt.Sprintf("echo %s | %s", i.Stdin, strings.Join(i.Argv, " "))
}

// BuildSubmit produces the qsub invocation for desc: working directory
// pinned to the submit cwd, environment propagated, streams redirected, and
// the parallel environment, slot count, and job name applied. Deterministic,
// no side effects.
func BuildSubmit(desc JobDescriptor) (Invocation, error) {
	if err := desc.Validate(); err != nil {
		return Invocation{}, err
	}
	argv := []string{
		"qsub",
		"-cwd",
		"-V",
		"-o", desc.Outfile,
		"-e", desc.Errfile,
		"-pe", desc.ParallelEnv, strconv.Itoa(desc.Slots),
		"-N", desc.JobName,
	}
	return Invocation{Argv: argv, Stdin: desc.Command}, nil
}
