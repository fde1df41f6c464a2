package tracker

import (
	"time"

	"github.com/hpctools/gridtrack/staging"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultWobble      = 2 * time.Second
	DefaultLockPath    = "/tmp/gridtrack-qstat.lock"
	DefaultLockLease   = 5 * time.Second
	DefaultAcctRetries = 6
	DefaultAcctDelay   = 5 * time.Second

	// Floor for the poll interval, so a small base and a large wobble can't
	// produce a tight loop against the shared scheduler interface.
	MinInterval = 2 * time.Second
)

// PollConfig paces the tracking loop and scopes its shared resources.
type PollConfig struct {
	// Base sleep between polls.
	Interval time.Duration
	// Symmetric jitter applied to Interval, desynchronizing concurrent
	// trackers. Zero disables jitter.
	Wobble time.Duration
	// Floor for the jittered interval. Defaults to MinInterval.
	MinInterval time.Duration
	// Path of the lock file serializing qstat across all trackers in a
	// deployment. Must be the same path for every tracker.
	LockPath string
	// Lease lifetime on that lock. Kept strictly shorter than typical poll
	// intervals so a crashed holder self-heals.
	LockLease time.Duration
	// Accounting query retry budget and inter-retry delay.
	AcctRetries int
	AcctDelay   time.Duration
}

// Config carries everything a Tracker needs besides the job itself.
type Config struct {
	Poll PollConfig
	// Base directory on shared storage for staging directories.
	SharedTmpDir string
	// What to do with the staging directory once the outcome is known.
	Retention staging.Policy
	// Run the command directly on this host instead of submitting it,
	// classifying by exit code. For debugging on machines without a cluster.
	RunLocally bool
}

func (c Config) withDefaults() Config {
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = DefaultInterval
	}
	if c.Poll.MinInterval <= 0 {
		c.Poll.MinInterval = MinInterval
	}
	if c.Poll.LockPath == "" {
		c.Poll.LockPath = DefaultLockPath
	}
	if c.Poll.LockLease <= 0 {
		c.Poll.LockLease = DefaultLockLease
	}
	if c.Poll.AcctRetries <= 0 {
		c.Poll.AcctRetries = DefaultAcctRetries
	}
	if c.Poll.AcctDelay <= 0 {
		c.Poll.AcctDelay = DefaultAcctDelay
	}
	if c.SharedTmpDir == "" {
		c.SharedTmpDir = "/tmp"
	}
	return c
}
