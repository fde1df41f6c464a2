package tracker

import (
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hpctools/gridtrack/common/log/hooks"
	"github.com/hpctools/gridtrack/execer/execers"
	"github.com/hpctools/gridtrack/sge"
	"github.com/hpctools/gridtrack/staging"
)

func init() {
	log.AddHook(hooks.NewContextHook())
	log.SetLevel(log.DebugLevel)
}

const submitOK = `Your job 777 ("sim") has been submitted` + "\n"

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// listing renders a one-row qstat table for job 777 in the given state.
// An empty state renders an empty listing, which reads as job-not-found.
func listing(state string) execers.Result {
	if state == "" {
		return execers.Result{Stdout: ""}
	}
	out := "job-ID  prior   name  user  state\n" +
		"-------------------------------------\n" +
		"777 0.55500 sim alice " + state + " 08/31/2026 10:00:00 all.q 1\n"
	return execers.Result{Stdout: out}
}

type testEnv struct {
	fake    *execers.FakeExecer
	base    string
	sleeps  []time.Duration
	errfile string // written into the staging dir by the WorkFunc, if set
}

func (e *testEnv) cleanup() { os.RemoveAll(e.base) }

func (e *testEnv) newTracker(t *testing.T, cfg Config) *Tracker {
	base, err := ioutil.TempDir("", "gridtrack-tracker-")
	if err != nil {
		t.Fatal(err)
	}
	e.base = base
	cfg.SharedTmpDir = base
	cfg.Poll.LockPath = filepath.Join(base, "qstat.lock")
	cfg.Poll.Interval = 5 * time.Second
	cfg.Poll.AcctRetries = 2
	cfg.Poll.AcctDelay = time.Millisecond

	work := func(dir *staging.Dir) (string, error) {
		if e.errfile != "" {
			if err := ioutil.WriteFile(dir.Errfile(), []byte(e.errfile), 0644); err != nil {
				return "", err
			}
		}
		return "./sim --seed 7", nil
	}
	tr := New(JobSpec{TaskID: "sim", ParallelEnv: "smp", Slots: 1}, cfg, work, e.fake, nil)
	tr.sleep = func(d time.Duration) { e.sleeps = append(e.sleeps, d) }
	return tr
}

func TestSequenceToAccountingSuccess(t *testing.T) {
	env := &testEnv{fake: execers.NewFakeExecer()}
	env.fake.Returns("qsub", execers.Result{Stdout: submitOK})
	env.fake.Returns("qstat", listing("qw"), listing("r"), listing("r"), listing("t"))
	env.fake.Returns("qacct", execers.Result{Stdout: "failed       0\nexit_status  0\n"})
	env.fake.Returns("rm", execers.Result{})

	tr := env.newTracker(t, Config{})
	defer env.cleanup()

	outcome, err := tr.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.State != Succeeded {
		t.Fatalf("state: %v", outcome.State)
	}
	if got := env.fake.Ran("qstat"); got != 4 {
		t.Fatalf("qstat ran %d times, want 4", got)
	}
	if len(env.sleeps) != 4 {
		t.Fatalf("slept %d times, want once per poll", len(env.sleeps))
	}
	if env.fake.Ran("rm") != 1 {
		t.Fatal("staging dir not reclaimed after success")
	}
}

func TestErroredShortCircuits(t *testing.T) {
	env := &testEnv{fake: execers.NewFakeExecer(), errfile: "stdin: is not a tty\nsegfault\n"}
	env.fake.Returns("qsub", execers.Result{Stdout: submitOK})
	env.fake.Returns("qstat", listing("r"), listing("Eqw"))
	env.fake.Returns("rm", execers.Result{})

	tr := env.newTracker(t, Config{})
	defer env.cleanup()

	outcome, err := tr.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.State != Failed {
		t.Fatalf("state: %v", outcome.State)
	}
	if len(outcome.Diagnostics) != 1 || outcome.Diagnostics[0] != "segfault" {
		t.Fatalf("diagnostics: %v", outcome.Diagnostics)
	}
	if env.fake.Ran("qacct") != 0 {
		t.Fatal("accounting must not be queried for an explicit error state")
	}
}

func TestAmbiguousWithDiagnosticsSkipsAccounting(t *testing.T) {
	env := &testEnv{fake: execers.NewFakeExecer(), errfile: "Traceback (most recent call last):\nValueError\n"}
	env.fake.Returns("qsub", execers.Result{Stdout: submitOK})
	env.fake.Returns("qstat", listing("t"))
	env.fake.Returns("rm", execers.Result{})

	tr := env.newTracker(t, Config{})
	defer env.cleanup()

	outcome, err := tr.Run()
	if err != nil {
		t.Fatal(err)
	}
	if outcome.State != Failed {
		t.Fatalf("state: %v", outcome.State)
	}
	if len(outcome.Diagnostics) != 2 {
		t.Fatalf("diagnostics: %v", outcome.Diagnostics)
	}
	if env.fake.Ran("qacct") != 0 {
		t.Fatal("accounting must not be queried when diagnostics are present")
	}
}

func TestMissingFromListingClassifies(t *testing.T) {
	env := &testEnv{fake: execers.NewFakeExecer()}
	env.fake.Returns("qsub", execers.Result{Stdout: submitOK})
	env.fake.Returns("qstat", listing("")) // empty listing reads as unknown
	env.fake.Returns("qacct", execers.Result{Stdout: "failed       0\nexit_status  0\n"})
	env.fake.Returns("rm", execers.Result{})

	tr := env.newTracker(t, Config{})
	defer env.cleanup()

	outcome, err := tr.Run()
	if err != nil {
		t.Fatal(err)
	}
	if outcome.State != Succeeded {
		t.Fatalf("state: %v", outcome.State)
	}
}

func TestAccountingExhaustionDefaultsToFailed(t *testing.T) {
	env := &testEnv{fake: execers.NewFakeExecer()}
	env.fake.Returns("qsub", execers.Result{Stdout: submitOK})
	env.fake.Returns("qstat", listing("t"))
	miss := execers.Result{Stderr: "error: job id 777 not found\n", ExitCode: 1}
	env.fake.Returns("qacct", miss, miss, miss)
	env.fake.Returns("rm", execers.Result{})

	tr := env.newTracker(t, Config{})
	defer env.cleanup()

	outcome, err := tr.Run()
	if err != nil {
		t.Fatal(err)
	}
	if outcome.State != Failed {
		t.Fatalf("indeterminate accounting must classify as Failed, got %v", outcome.State)
	}
	if len(outcome.Diagnostics) != 0 {
		t.Fatalf("diagnostics should be empty for inferred failure: %v", outcome.Diagnostics)
	}
}

func TestUnrecognizedStatusIsFatal(t *testing.T) {
	env := &testEnv{fake: execers.NewFakeExecer()}
	env.fake.Returns("qsub", execers.Result{Stdout: submitOK})
	env.fake.Returns("qstat", listing("x"))

	tr := env.newTracker(t, Config{})
	defer env.cleanup()

	_, err := tr.Run()
	if err == nil {
		t.Fatal("expected protocol violation")
	}
	if _, ok := err.(*sge.ProtocolViolationError); !ok {
		t.Fatalf("expected ProtocolViolationError, got %T: %v", err, err)
	}
	if got := env.fake.Ran("qstat"); got != 1 {
		t.Fatalf("loop polled %d times after fatal status, want 1", got)
	}
	if env.fake.Ran("rm") != 0 {
		t.Fatal("staging dir must be left in place after a fatal error")
	}
}

func TestRetentionKeepOnFailure(t *testing.T) {
	run := func(t *testing.T, states []string, errfile string, qacct []execers.Result) (*testEnv, Outcome) {
		env := &testEnv{fake: execers.NewFakeExecer(), errfile: errfile}
		env.fake.Returns("qsub", execers.Result{Stdout: submitOK})
		results := []execers.Result{}
		for _, s := range states {
			results = append(results, listing(s))
		}
		env.fake.Returns("qstat", results...)
		env.fake.Returns("qacct", qacct...)
		env.fake.Returns("rm", execers.Result{})

		tr := env.newTracker(t, Config{Retention: staging.KeepOnFailure})
		outcome, err := tr.Run()
		if err != nil {
			t.Fatal(err)
		}
		return env, outcome
	}

	acctOK := []execers.Result{{Stdout: "failed       0\nexit_status  0\n"}}

	env, outcome := run(t, []string{"t"}, "boom\n", nil)
	defer env.cleanup()
	if outcome.State != Failed {
		t.Fatalf("state: %v", outcome.State)
	}
	if env.fake.Ran("rm") != 0 {
		t.Fatal("failed outcome with keep-on-failure must retain the staging dir")
	}

	env2, outcome2 := run(t, []string{"t"}, "", acctOK)
	defer env2.cleanup()
	if outcome2.State != Succeeded {
		t.Fatalf("state: %v", outcome2.State)
	}
	if env2.fake.Ran("rm") != 1 {
		t.Fatal("succeeded outcome with keep-on-failure must remove the staging dir")
	}
}

func TestIntervalWobbleBounds(t *testing.T) {
	tr := &Tracker{cfg: Config{Poll: PollConfig{
		Interval: 5 * time.Second,
		Wobble:   4 * time.Second,
	}}.withDefaults()}
	tr.rng = newTestRand()

	lo := 3 * time.Second // base - wobble/2
	hi := 7 * time.Second // base + wobble/2
	for i := 0; i < 1000; i++ {
		d := tr.interval()
		if d < lo || d >= hi {
			t.Fatalf("interval %v outside [%v, %v)", d, lo, hi)
		}
	}
}

func TestIntervalClampedToFloor(t *testing.T) {
	tr := &Tracker{cfg: Config{Poll: PollConfig{
		Interval: 2500 * time.Millisecond,
		Wobble:   4 * time.Second,
	}}.withDefaults()}
	tr.rng = newTestRand()

	for i := 0; i < 1000; i++ {
		if d := tr.interval(); d < MinInterval {
			t.Fatalf("interval %v below floor %v", d, MinInterval)
		}
	}
}

func TestIntervalNoWobbleIsExact(t *testing.T) {
	tr := &Tracker{cfg: Config{Poll: PollConfig{Interval: 9 * time.Second}}.withDefaults()}
	for i := 0; i < 10; i++ {
		if d := tr.interval(); d != 9*time.Second {
			t.Fatalf("interval %v, want exactly 9s", d)
		}
	}
}

func TestRunLocally(t *testing.T) {
	env := &testEnv{fake: execers.NewFakeExecer()}
	env.fake.Returns("/bin/sh", execers.Result{})
	env.fake.Returns("rm", execers.Result{})

	tr := env.newTracker(t, Config{RunLocally: true})
	defer env.cleanup()

	outcome, err := tr.Run()
	if err != nil {
		t.Fatal(err)
	}
	if outcome.State != Succeeded {
		t.Fatalf("state: %v", outcome.State)
	}
	if env.fake.Ran("qsub") != 0 || env.fake.Ran("qstat") != 0 {
		t.Fatal("local run must not touch the scheduler")
	}
}

func TestRunLocallyFailure(t *testing.T) {
	env := &testEnv{fake: execers.NewFakeExecer()}
	env.fake.Returns("/bin/sh", execers.Result{Stderr: "sh: ./sim: not found\n", ExitCode: 127})
	env.fake.Returns("rm", execers.Result{})

	tr := env.newTracker(t, Config{RunLocally: true})
	defer env.cleanup()

	outcome, err := tr.Run()
	if err != nil {
		t.Fatal(err)
	}
	if outcome.State != Failed {
		t.Fatalf("state: %v", outcome.State)
	}
	if len(outcome.Diagnostics) != 1 {
		t.Fatalf("diagnostics: %v", outcome.Diagnostics)
	}
}
