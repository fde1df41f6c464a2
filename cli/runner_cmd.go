package cli

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	osexecer "github.com/hpctools/gridtrack/execer/os"
	"github.com/hpctools/gridtrack/manifest"
)

// runnerCmd is the compute-node half: invoked by the scheduler inside a
// submitted job, it reads the job manifest from the staging directory and
// executes it, passing the exit code through.
type runnerCmd struct{}

func (c *runnerCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "runner <staging-dir>",
		Short: "Execute the job manifest found in a staging directory",
	}
}

func (c *runnerCmd) run(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("the staging directory must be provided")
	}
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.Errorf("%s is not an existing directory", dir)
	}

	code, err := manifest.Run(osexecer.NewExecer(), dir, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		log.WithFields(log.Fields{"dir": dir, "exitCode": code}).Error("Manifest command failed")
		os.Exit(code)
	}
	return nil
}
