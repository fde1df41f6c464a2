package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hpctools/gridtrack/common/stats"
	"github.com/hpctools/gridtrack/config"
	osexecer "github.com/hpctools/gridtrack/execer/os"
	"github.com/hpctools/gridtrack/manifest"
	"github.com/hpctools/gridtrack/staging"
	"github.com/hpctools/gridtrack/tracker"
)

type runCmd struct {
	configPath string
	taskID     string
	jobName    string
	pe         string
	slots      int
	local      bool
	useRunner  bool
	printStats bool
}

func (c *runCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Submit a command to the cluster and track it to completion",
	}
	r.Flags().StringVar(&c.configPath, "config", "", "path to gridtrack YAML config")
	r.Flags().StringVar(&c.taskID, "task", "", "task identifier (default derived from time)")
	r.Flags().StringVar(&c.jobName, "name", "", "scheduler job name (default: task id)")
	r.Flags().StringVar(&c.pe, "pe", "", "parallel environment (overrides config)")
	r.Flags().IntVar(&c.slots, "slots", 0, "slot count (overrides config)")
	r.Flags().BoolVar(&c.local, "local", false, "run the command on this host instead of submitting")
	r.Flags().BoolVar(&c.useRunner, "use-runner", false,
		"submit this binary's runner subcommand; the command itself ships in the job manifest")
	r.Flags().BoolVar(&c.printStats, "stats", false, "print collected stats after the job finishes")
	return r
}

func (c *runCmd) run(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("a command to run must be provided")
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	tcfg, err := cfg.TrackerConfig()
	if err != nil {
		return err
	}
	tcfg.RunLocally = c.local

	spec := tracker.JobSpec{
		TaskID:      c.taskID,
		JobName:     c.jobName,
		ParallelEnv: cfg.ParallelEnv,
		Slots:       cfg.Slots,
	}
	if spec.TaskID == "" {
		spec.TaskID = fmt.Sprintf("job_%d", time.Now().Unix())
	}
	if c.pe != "" {
		spec.ParallelEnv = c.pe
	}
	if c.slots > 0 {
		spec.Slots = c.slots
	}

	work := func(dir *staging.Dir) (string, error) {
		// The manifest records what ran even when the command is submitted
		// directly.
		if err := manifest.Write(dir.Path, manifest.Manifest{Argv: args}); err != nil {
			return "", err
		}
		if !c.useRunner {
			return strings.Join(args, " "), nil
		}
		self, err := os.Executable()
		if err != nil {
			return "", errors.Wrap(err, "resolving runner binary path")
		}
		return fmt.Sprintf("%s runner %s", self, dir.Path), nil
	}

	stat := stats.DefaultStatsReceiver()
	outcome, err := tracker.New(spec, tcfg, work, osexecer.NewExecer(), stat).Run()
	if c.printStats {
		fmt.Printf("%s\n", stat.Render())
	}
	if err != nil {
		return err
	}
	if outcome.State != tracker.Succeeded {
		return errors.Errorf("job failed:\n%s", strings.Join(outcome.Diagnostics, "\n"))
	}
	log.WithFields(log.Fields{"task": spec.TaskID}).Info("Job succeeded")
	return nil
}
