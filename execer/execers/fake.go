// Package execers provides Execer implementations for testing.
package execers

import (
	"fmt"
	"io"
	"sync"

	"github.com/hpctools/gridtrack/execer"
)

// Result is one canned process outcome.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// FakeExecer returns scripted results keyed by the command's binary name
// (argv[0]). Results for a binary are consumed in order; running out of
// results, or running a binary with none scripted, is an error, so tests
// catch unexpected extra invocations.
type FakeExecer struct {
	mu      sync.Mutex
	results map[string][]Result

	// Every command run, in order.
	Commands []execer.Command
}

func NewFakeExecer() *FakeExecer {
	return &FakeExecer{results: map[string][]Result{}}
}

// Returns scripts results for the given binary, appended to any already scripted.
func (f *FakeExecer) Returns(bin string, results ...Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[bin] = append(f.results[bin], results...)
}

func (f *FakeExecer) Exec(command execer.Command) (execer.ProcessStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, command)

	if len(command.Argv) == 0 {
		return execer.ProcessStatus{}, fmt.Errorf("no command specified")
	}
	bin := command.Argv[0]
	queue := f.results[bin]
	if len(queue) == 0 {
		return execer.ProcessStatus{}, fmt.Errorf("unexpected command: %v", command.Argv)
	}
	r := queue[0]
	f.results[bin] = queue[1:]

	if r.Err != nil {
		return execer.ProcessStatus{}, r.Err
	}
	writeAll(command.Stdout, r.Stdout)
	writeAll(command.Stderr, r.Stderr)
	return execer.ProcessStatus{ExitCode: r.ExitCode}, nil
}

// Ran reports how many times bin was run.
func (f *FakeExecer) Ran(bin string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Commands {
		if len(c.Argv) > 0 && c.Argv[0] == bin {
			n++
		}
	}
	return n
}

func writeAll(w io.Writer, s string) {
	if w != nil && s != "" {
		io.WriteString(w, s)
	}
}
