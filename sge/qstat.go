package sge

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hpctools/gridtrack/common/stats"
	"github.com/hpctools/gridtrack/execer"
	"github.com/hpctools/gridtrack/lock"
)

// StatusPoller reads one job's state out of the cluster-wide qstat listing.
// The listing is the one resource shared by every tracker in a deployment,
// so each call runs under the lease lock. The lock covers only the listing
// call itself; parsing happens after release.
type StatusPoller struct {
	exec execer.Execer
	lock lock.Lock
	stat stats.StatsReceiver
}

func NewStatusPoller(e execer.Execer, l lock.Lock, stat stats.StatsReceiver) *StatusPoller {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &StatusPoller{exec: e, lock: l, stat: stat}
}

func (p *StatusPoller) Poll(id JobID) (StatusCode, error) {
	if err := p.lock.Acquire(); err != nil {
		return "", errors.Wrap(err, "acquiring status lock")
	}
	latency := p.stat.Latency(stats.StatusListLatency).Time()
	out, st, execErr := execer.Output(p.exec, execer.Command{Argv: []string{"qstat"}})
	latency.Stop()
	if err := p.lock.Release(); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Error releasing status lock")
	}

	if execErr != nil {
		return "", errors.Wrap(execErr, "running qstat")
	}
	if st.ExitCode != 0 {
		return "", errors.Errorf("qstat exited %d", st.ExitCode)
	}

	p.stat.Counter(stats.StatusPolls).Inc(1)
	code, err := ParseQstat(out, id)
	if err != nil {
		return "", err
	}
	if code == StatusUnknown {
		p.stat.Counter(stats.StatusPollsUnknown).Inc(1)
	}
	return code, nil
}

// ParseQstat finds id's state in a qstat listing. Empty output means the
// queue is empty and returns StatusUnknown. Otherwise the header block, up
// to and including the first line starting with a dashed separator, is
// skipped; data rows are whitespace-tokenized as
// `jobID prior name user state ...` and the state of the first row matching
// id is returned. No matching row returns StatusUnknown.
func ParseQstat(out string, id JobID) (StatusCode, error) {
	if strings.TrimSpace(out) == "" {
		return StatusUnknown, nil
	}

	lines := strings.Split(out, "\n")
	i := 0
	for ; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "---") {
			i++
			break
		}
	}
	if i >= len(lines) && !strings.HasPrefix(lines[len(lines)-1], "---") {
		return "", &ParseError{Output: out, Reason: "qstat listing has no header separator"}
	}

	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			return "", &ParseError{Output: line, Reason: "qstat row has fewer than 5 fields"}
		}
		rowID, err := strconv.Atoi(fields[0])
		if err != nil {
			return "", &ParseError{Output: line, Reason: "qstat row job id is not numeric"}
		}
		if JobID(rowID) == id {
			return StatusCode(fields[4]), nil
		}
	}
	return StatusUnknown, nil
}
