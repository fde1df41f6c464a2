// Package tracker drives one submitted job through its whole lifecycle:
// allocate staging, submit, poll status until a terminal signal, classify
// ambiguous completion against diagnostics and accounting, and reclaim the
// workspace. Many trackers may run concurrently; the only resource they
// share is the status listing, which is serialized by the lease lock.
package tracker

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hpctools/gridtrack/common/stats"
	"github.com/hpctools/gridtrack/execer"
	"github.com/hpctools/gridtrack/lock"
	"github.com/hpctools/gridtrack/sge"
	"github.com/hpctools/gridtrack/staging"
)

// State of one tracked job.
type State int

const (
	Submitted State = iota
	Pending
	Running
	// The job left the queue without a clear signal; being classified.
	CompletionPending
	Succeeded
	Failed
)

func (s State) IsDone() bool {
	return s == Succeeded || s == Failed
}

func (s State) String() string {
	switch s {
	case Submitted:
		return "SUBMITTED"
	case Pending:
		return "PENDING"
	case Running:
		return "RUNNING"
	case CompletionPending:
		return "COMPLETION_PENDING"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	default:
		panic(fmt.Sprintf("unexpected State %v", int(s)))
	}
}

// Outcome is the single terminal classification produced per tracked job.
type Outcome struct {
	State State
	// Captured error lines for a Failed outcome. May be empty when the
	// failure was inferred from accounting rather than observed output.
	Diagnostics []string
}

// JobSpec names the unit of work. The command itself comes from the
// WorkFunc so the state machine stays decoupled from any payload mechanism.
type JobSpec struct {
	// Identifies the task; names the staging directory and, when JobName is
	// empty, the job.
	TaskID string
	// Symbolic scheduler job name.
	JobName string
	// Parallel environment and slot count requested from the scheduler.
	ParallelEnv string
	Slots       int
}

// WorkFunc materializes the job's payload into its freshly allocated staging
// directory and returns the command line the compute node should run.
type WorkFunc func(dir *staging.Dir) (string, error)

// Static returns a WorkFunc for a fixed command line that needs nothing
// staged.
func Static(command string) WorkFunc {
	return func(*staging.Dir) (string, error) { return command, nil }
}

// Tracker runs one job to its terminal classification. Not reusable; build
// one per job.
type Tracker struct {
	spec JobSpec
	cfg  Config
	work WorkFunc
	exec execer.Execer
	stat stats.StatsReceiver

	submit    *sge.SubmitClient
	poller    *sge.StatusPoller
	inspector *sge.FailureInspector

	// Distinguishes this tracking session in logs shared by concurrent
	// trackers.
	trackID string

	sleep func(time.Duration)
	rng   *rand.Rand
}

func New(spec JobSpec, cfg Config, work WorkFunc, e execer.Execer, stat stats.StatsReceiver) *Tracker {
	cfg = cfg.withDefaults()
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	trackID := "unknown"
	if id, err := uuid.NewV4(); err == nil {
		trackID = id.String()
	}
	l := lock.NewFileLock(cfg.Poll.LockPath, cfg.Poll.LockLease)
	return &Tracker{
		spec:      spec,
		cfg:       cfg,
		work:      work,
		exec:      e,
		stat:      stat,
		submit:    sge.NewSubmitClient(e, stat),
		poller:    sge.NewStatusPoller(e, l, stat),
		inspector: sge.NewFailureInspector(e, stat, cfg.Poll.AcctRetries, cfg.Poll.AcctDelay),
		trackID:   trackID,
		sleep:     time.Sleep,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run drives the job to exactly one terminal classification. The staging
// directory is reclaimed per the retention policy once that classification
// is known; on a fatal error it is left in place for inspection.
func (t *Tracker) Run() (Outcome, error) {
	if t.work == nil {
		return Outcome{}, errors.New("tracker requires a WorkFunc")
	}
	dir, err := staging.Allocate(t.cfg.SharedTmpDir, t.spec.TaskID)
	if err != nil {
		return Outcome{}, err
	}
	command, err := t.work(dir)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "materializing work payload")
	}
	desc := sge.JobDescriptor{
		Command:     command,
		JobName:     t.jobName(),
		Slots:       t.spec.Slots,
		ParallelEnv: t.spec.ParallelEnv,
		Outfile:     dir.Outfile(),
		Errfile:     dir.Errfile(),
	}

	var outcome Outcome
	if t.cfg.RunLocally {
		outcome, err = t.runLocal(desc)
	} else {
		outcome, err = t.runRemote(desc)
	}
	if err != nil {
		return Outcome{}, err
	}

	staging.Reclaim(t.exec, t.stat, dir, outcome.State == Failed, t.cfg.Retention)
	if outcome.State == Succeeded {
		t.stat.Counter(stats.JobsSucceeded).Inc(1)
	} else {
		t.stat.Counter(stats.JobsFailed).Inc(1)
	}
	return outcome, nil
}

func (t *Tracker) runRemote(desc sge.JobDescriptor) (Outcome, error) {
	inv, err := sge.BuildSubmit(desc)
	if err != nil {
		return Outcome{}, err
	}
	id, err := t.submit.Submit(inv)
	if err != nil {
		return Outcome{}, err
	}
	return t.track(id, desc.Errfile)
}

// track is the poll loop. It never returns without Succeeded, Failed, or an
// error; every recognized status code maps to exactly one transition.
func (t *Tracker) track(id sge.JobID, errfile string) (Outcome, error) {
	le := log.WithFields(log.Fields{"jobID": id, "trackID": t.trackID, "task": t.spec.TaskID})
	for {
		t.sleep(t.interval())

		code, err := t.poller.Poll(id)
		if err != nil {
			return Outcome{}, err
		}
		switch code.Transition() {
		case sge.TransitionWait:
			if code == sge.StatusRunning {
				le.Info("Job is running")
			} else {
				le.Info("Job is pending")
			}
		case sge.TransitionErrored:
			// Terminal as-is; no accounting check for an explicit error state.
			diags, err := t.inspector.ReadDiagnostics(errfile)
			if err != nil {
				return Outcome{}, err
			}
			le.WithFields(log.Fields{"status": code}).
				Error("Job has FAILED:\n" + strings.Join(diags, "\n"))
			return Outcome{State: Failed, Diagnostics: diags}, nil
		case sge.TransitionClassify:
			le.WithFields(log.Fields{"status": code}).Info("Job left the queue, classifying")
			return t.classify(id, errfile, le)
		default:
			le.WithFields(log.Fields{"status": code}).Error("Job status is UNKNOWN")
			return Outcome{}, &sge.ProtocolViolationError{Code: code}
		}
	}
}

// classify resolves an ambiguous exit. Captured diagnostics win; otherwise
// accounting decides; an indeterminate accounting answer counts as failure,
// since a crashed or removed job must not pass silently.
func (t *Tracker) classify(id sge.JobID, errfile string, le *log.Entry) (Outcome, error) {
	diags, err := t.inspector.ReadDiagnostics(errfile)
	if err != nil {
		return Outcome{}, err
	}
	if len(diags) > 0 {
		le.Error("Job has FAILED:\n" + strings.Join(diags, "\n"))
		return Outcome{State: Failed, Diagnostics: diags}, nil
	}

	switch t.inspector.QueryAccounting(id) {
	case sge.VerdictSucceeded:
		le.Info("Job is done")
		return Outcome{State: Succeeded}, nil
	case sge.VerdictFailed:
		le.Error("Job has FAILED per accounting")
		return Outcome{State: Failed}, nil
	default:
		le.Error("No accounting verdict, assuming FAILED")
		return Outcome{State: Failed}, nil
	}
}

// runLocal executes the command on this host, streams into the usual
// job.out/job.err files, and classifies by exit code.
func (t *Tracker) runLocal(desc sge.JobDescriptor) (Outcome, error) {
	le := log.WithFields(log.Fields{"trackID": t.trackID, "task": t.spec.TaskID})
	le.WithFields(log.Fields{"command": desc.Command}).Info("Running job locally")

	outf, err := os.Create(desc.Outfile)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "creating output file")
	}
	defer outf.Close()
	errf, err := os.Create(desc.Errfile)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "creating error file")
	}

	st, execErr := t.exec.Exec(execer.Command{
		Argv:   []string{"/bin/sh", "-c", desc.Command},
		Stdout: outf,
		Stderr: errf,
	})
	errf.Close()
	if execErr != nil {
		return Outcome{}, execErr
	}
	if st.ExitCode == 0 {
		le.Info("Job is done")
		return Outcome{State: Succeeded}, nil
	}
	diags, err := t.inspector.ReadDiagnostics(desc.Errfile)
	if err != nil {
		return Outcome{}, err
	}
	le.WithFields(log.Fields{"exitCode": st.ExitCode}).
		Error("Job has FAILED:\n" + strings.Join(diags, "\n"))
	return Outcome{State: Failed, Diagnostics: diags}, nil
}

// interval draws the next sleep from [Interval-Wobble/2, Interval+Wobble/2),
// clamped to the configured floor. No wobble means exactly Interval.
func (t *Tracker) interval() time.Duration {
	base, wobble := t.cfg.Poll.Interval, t.cfg.Poll.Wobble
	if wobble <= 0 {
		return base
	}
	d := base - wobble/2 + time.Duration(t.rng.Int63n(int64(wobble)))
	if d < t.cfg.Poll.MinInterval {
		d = t.cfg.Poll.MinInterval
	}
	return d
}

func (t *Tracker) jobName() string {
	if t.spec.JobName != "" {
		return t.spec.JobName
	}
	return t.spec.TaskID
}
