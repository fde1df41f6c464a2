package sge

import (
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hpctools/gridtrack/common/stats"
	"github.com/hpctools/gridtrack/execer"
)

// qsub writes this to the job's error stream when the submission was fed
// through a pipe. It is noise, not a job failure.
const pipeArtifact = "stdin: is not a tty"

// Verdict is the accounting subsystem's answer about a finished job.
type Verdict int

const (
	// No accounting record was available within the retry budget.
	VerdictUnknown Verdict = iota
	VerdictSucceeded
	VerdictFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictSucceeded:
		return "SUCCEEDED"
	case VerdictFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// FailureInspector disambiguates a job that left the queue: it reads the
// captured error stream, and consults the qacct accounting records for an
// authoritative exit verdict when the error stream says nothing.
type FailureInspector struct {
	exec    execer.Execer
	stat    stats.StatsReceiver
	retries int
	delay   time.Duration
}

func NewFailureInspector(e execer.Execer, stat stats.StatsReceiver, retries int, delay time.Duration) *FailureInspector {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &FailureInspector{exec: e, stat: stat, retries: retries, delay: delay}
}

// ReadDiagnostics returns the job's captured error lines. A missing file is
// evidence of no failure, not an error, and yields an empty result. A
// leading pipe-submission artifact line is dropped; the rest is verbatim.
func (f *FailureInspector) ReadDiagnostics(errfile string) ([]string, error) {
	data, err := ioutil.ReadFile(errfile)
	if os.IsNotExist(err) {
		log.WithFields(log.Fields{"errfile": errfile}).Info("No error file")
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading error file %s", errfile)
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if strings.HasPrefix(lines[0], pipeArtifact) {
		lines = lines[1:]
	}
	return lines, nil
}

// QueryAccounting asks qacct for id's final verdict. One query per attempt,
// a fixed delay between attempts, a bounded number of attempts. The first
// attempt whose output carries a failed/exit_status field settles it; an
// exhausted budget returns VerdictUnknown and the caller decides what that
// means.
func (f *FailureInspector) QueryAccounting(id JobID) Verdict {
	verdict := VerdictUnknown
	attempt := func() error {
		f.stat.Counter(stats.AcctQueries).Inc(1)
		out, st, err := execer.Output(f.exec, execer.Command{
			Argv: []string{"qacct", "-j", strconv.Itoa(int(id))},
		})
		if err != nil {
			log.WithFields(log.Fields{"jobID": id, "error": err}).Info("Accounting query failed")
			return err
		}
		if st.ExitCode != 0 {
			// The record often lags the job's exit; retry.
			return errors.Errorf("qacct exited %d", st.ExitCode)
		}
		v, found := parseQacct(out)
		if !found {
			return errors.New("no accounting record yet")
		}
		verdict = v
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(f.delay), uint64(f.retries))
	if err := backoff.Retry(attempt, b); err != nil {
		f.stat.Counter(stats.AcctExhausted).Inc(1)
		log.WithFields(log.Fields{"jobID": id, "retries": f.retries}).
			Warn("Accounting retry budget exhausted without a verdict")
		return VerdictUnknown
	}
	log.WithFields(log.Fields{"jobID": id, "verdict": verdict}).Info("Accounting verdict")
	return verdict
}

// parseQacct scans accounting output for `failed` and `exit_status` keyed
// lines. A value of 0 for either is success. found is false when neither
// key is present, which usually means the record isn't written yet.
func parseQacct(out string) (verdict Verdict, found bool) {
	verdict = VerdictFailed
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] != "failed" && fields[0] != "exit_status" {
			continue
		}
		found = true
		if fields[1] == "0" {
			return VerdictSucceeded, true
		}
	}
	if !found {
		return VerdictUnknown, false
	}
	return verdict, true
}
