package lock

import (
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const pollInterval = 100 * time.Millisecond

// FileLock implements Lock with an exclusively-created file at a fixed path
// on storage shared by all contenders. The file's mtime marks the start of
// the holder's lease; a contender that finds the file older than the lease
// removes it and retries, on the assumption the holder died.
type FileLock struct {
	path  string
	lease time.Duration
}

func NewFileLock(path string, lease time.Duration) *FileLock {
	return &FileLock{path: path, lease: lease}
}

func (l *FileLock) Acquire() error {
	for {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().Format(time.RFC3339))
			return errors.Wrapf(f.Close(), "writing lock file %s", l.path)
		}
		if !os.IsExist(err) {
			return errors.Wrapf(err, "creating lock file %s", l.path)
		}

		info, err := os.Stat(l.path)
		if os.IsNotExist(err) {
			// Holder released between our open and stat.
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "statting lock file %s", l.path)
		}
		if age := time.Since(info.ModTime()); age > l.lease {
			holder, _ := ioutil.ReadFile(l.path)
			log.WithFields(log.Fields{
				"path":   l.path,
				"age":    age,
				"holder": string(holder),
			}).Warn("Lock lease expired, overtaking")
			// Best effort. If another contender removes it first, the
			// next create attempt sorts out who won.
			os.Remove(l.path)
			continue
		}
		time.Sleep(pollInterval)
	}
}

func (l *FileLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing lock file %s", l.path)
	}
	return nil
}
