// Implements execer.Execer on top of os/exec.
package os

import (
	"io/ioutil"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/hpctools/gridtrack/execer"
)

type osExecer struct{}

func NewExecer() execer.Execer {
	return &osExecer{}
}

func (e *osExecer) Exec(command execer.Command) (execer.ProcessStatus, error) {
	if len(command.Argv) == 0 {
		return execer.ProcessStatus{}, errors.New("no command specified")
	}

	cmd := exec.Command(command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Dir
	if len(command.EnvVars) > 0 {
		// Parent environment plus whatever additional env vars are provided.
		cmd.Env = os.Environ()
		for k, v := range command.EnvVars {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	if command.Stdin != "" {
		cmd.Stdin = strings.NewReader(command.Stdin)
	}
	cmd.Stdout = command.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = ioutil.Discard
	}
	cmd.Stderr = command.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = ioutil.Discard
	}

	err := cmd.Run()
	if err == nil {
		return execer.ProcessStatus{ExitCode: 0}, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return execer.ProcessStatus{ExitCode: ws.ExitStatus()}, nil
		}
		return execer.ProcessStatus{ExitCode: 1}, nil
	}
	return execer.ProcessStatus{}, errors.Wrapf(err, "running %v", command.Argv)
}
