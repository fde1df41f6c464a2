// Package staging manages per-job scratch directories on shared storage.
// Each tracked job exclusively owns one directory holding its captured
// output and error streams; reclamation after the job's terminal
// classification is advisory, never fatal.
package staging

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hpctools/gridtrack/common/stats"
	"github.com/hpctools/gridtrack/execer"
)

// Policy directs what happens to a staging directory once the job's outcome
// is known.
type Policy int

const (
	RemoveAlways Policy = iota
	KeepAlways
	KeepOnFailure
)

// NAME_MAX on the filesystems we care about.
const maxNameLen = 255

const (
	OutfileName = "job.out"
	ErrfileName = "job.err"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Dir is one job's exclusive scratch workspace.
type Dir struct {
	Path string
}

func (d *Dir) Outfile() string { return filepath.Join(d.Path, OutfileName) }
func (d *Dir) Errfile() string { return filepath.Join(d.Path, ErrfileName) }

// Allocate creates `<baseDir>/<taskID>-<16 hex digits>`, with taskID
// sanitized to filename-safe characters and the directory name truncated to
// the filesystem's maximum. Creation failures are not retried.
func Allocate(baseDir, taskID string) (*Dir, error) {
	name := fmt.Sprintf("%s-%s", unsafeChars.ReplaceAllString(taskID, "_"), randomSuffix())
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if err := os.MkdirAll(baseDir, 0777); err != nil {
		return nil, errors.Wrapf(err, "creating staging base %s", baseDir)
	}
	path := filepath.Join(baseDir, name)
	if err := os.Mkdir(path, 0777); err != nil {
		return nil, errors.Wrapf(err, "creating staging dir %s", path)
	}
	log.WithFields(log.Fields{"dir": path}).Info("Allocated staging directory")
	return &Dir{Path: path}, nil
}

// Reclaim removes the directory unless policy retains it. Removal runs
// `rm -rf` through the execer on the assumption the directory lives on
// shared storage where local unlinking can be unreliable. Failures are
// logged, not returned.
func Reclaim(e execer.Execer, stat stats.StatsReceiver, d *Dir, failed bool, policy Policy) {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	if policy == KeepAlways || (policy == KeepOnFailure && failed) {
		log.WithFields(log.Fields{"dir": d.Path}).Info("Retaining staging directory")
		return
	}
	log.WithFields(log.Fields{"dir": d.Path}).Info("Removing staging directory")
	st, err := e.Exec(execer.Command{Argv: []string{"rm", "-rf", d.Path}})
	if err != nil || st.ExitCode != 0 {
		log.WithFields(log.Fields{
			"dir":      d.Path,
			"error":    err,
			"exitCode": st.ExitCode,
		}).Warn("Failed to remove staging directory")
		return
	}
	stat.Counter(stats.StagingReclaims).Inc(1)
}

func randomSuffix() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
