package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hpctools/gridtrack/staging"
)

const sampleConfig = `
shared_tmp_dir: /shared/tmp
parallel_env: smp
slots: 8
poll_interval: 30s
wobble: 10s
lock_path: /shared/locks/qstat.lock
lock_lease: 5s
acct_retries: 4
acct_delay: 10s
retention: keep-on-failure
`

func writeConfig(t *testing.T, content string) (string, func()) {
	dir, err := ioutil.TempDir("", "gridtrack-config-")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "gridtrack.yaml")
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path, func() { os.RemoveAll(dir) }
}

func TestLoad(t *testing.T) {
	path, cleanup := writeConfig(t, sampleConfig)
	defer cleanup()

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tc, err := c.TrackerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if tc.SharedTmpDir != "/shared/tmp" {
		t.Fatalf("shared tmp dir: %q", tc.SharedTmpDir)
	}
	if tc.Poll.Interval != 30*time.Second || tc.Poll.Wobble != 10*time.Second {
		t.Fatalf("pacing: %v %v", tc.Poll.Interval, tc.Poll.Wobble)
	}
	if tc.Poll.LockPath != "/shared/locks/qstat.lock" || tc.Poll.LockLease != 5*time.Second {
		t.Fatalf("lock: %v %v", tc.Poll.LockPath, tc.Poll.LockLease)
	}
	if tc.Poll.AcctRetries != 4 || tc.Poll.AcctDelay != 10*time.Second {
		t.Fatalf("acct: %v %v", tc.Poll.AcctRetries, tc.Poll.AcctDelay)
	}
	if tc.Retention != staging.KeepOnFailure {
		t.Fatalf("retention: %v", tc.Retention)
	}
	if c.ParallelEnv != "smp" || c.Slots != 8 {
		t.Fatalf("resources: %q %d", c.ParallelEnv, c.Slots)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load("/nonexistent/gridtrack.yaml")
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if _, err := c.TrackerConfig(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadBadRetention(t *testing.T) {
	path, cleanup := writeConfig(t, "retention: sometimes\n")
	defer cleanup()
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown retention policy")
	}
}

func TestLoadBadDuration(t *testing.T) {
	path, cleanup := writeConfig(t, "poll_interval: thirty\n")
	defer cleanup()
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparsable duration")
	}
}
