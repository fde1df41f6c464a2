package sge

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hpctools/gridtrack/common/stats"
	"github.com/hpctools/gridtrack/execer"
)

// SubmitClient submits jobs and parses the scheduler's confirmation.
type SubmitClient struct {
	exec execer.Execer
	stat stats.StatsReceiver
}

func NewSubmitClient(e execer.Execer, stat stats.StatsReceiver) *SubmitClient {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &SubmitClient{exec: e, stat: stat}
}

// Submit runs the invocation and returns the scheduler-assigned job id.
// Spawns exactly one process; submission failures are not retried.
func (c *SubmitClient) Submit(inv Invocation) (JobID, error) {
	log.WithFields(log.Fields{"invocation": inv.String()}).Info("Submitting job")
	c.stat.Counter(stats.JobSubmits).Inc(1)

	var stderr bytes.Buffer
	out, st, err := execer.Output(c.exec, execer.Command{
		Argv:   inv.Argv,
		Stdin:  inv.Stdin,
		Stderr: &stderr,
	})
	if err != nil {
		return 0, errors.Wrap(err, "running submit command")
	}
	if st.ExitCode != 0 {
		return 0, errors.Errorf("submit command exited %d: %s", st.ExitCode, stderr.String())
	}

	id, err := ParseSubmitResponse(out)
	if err != nil {
		c.stat.Counter(stats.JobSubmitParseFailures).Inc(1)
		return 0, err
	}
	log.WithFields(log.Fields{"jobID": id}).Info("Job submitted")
	return id, nil
}

// ParseSubmitResponse extracts the job id from the scheduler's confirmation
// text. The format is fixed: the third whitespace token is the numeric id,
// as in `Your job 12345 ("name") has been submitted`.
func ParseSubmitResponse(out string) (JobID, error) {
	tokens := strings.Fields(out)
	if len(tokens) < 3 {
		return 0, &ParseError{Output: out, Reason: "submission confirmation has fewer than 3 tokens"}
	}
	id, err := strconv.Atoi(tokens[2])
	if err != nil {
		return 0, &ParseError{Output: out, Reason: "third token is not a numeric job id"}
	}
	return JobID(id), nil
}
