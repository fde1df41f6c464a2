// Package config loads the deployment-wide tracking configuration from a
// YAML file. The zero value of every field has a usable default, so an
// empty or missing file still yields a working setup.
package config

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hpctools/gridtrack/staging"
	"github.com/hpctools/gridtrack/tracker"
)

// Duration parses YAML values like "30s" or "2m" via time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parsing duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	// Shared filesystem base for staging directories.
	SharedTmpDir string `yaml:"shared_tmp_dir"`

	// Scheduler resource request defaults.
	ParallelEnv string `yaml:"parallel_env"`
	Slots       int    `yaml:"slots"`

	// Poll pacing.
	PollInterval Duration `yaml:"poll_interval"`
	Wobble       Duration `yaml:"wobble"`
	MinInterval  Duration `yaml:"min_interval"`

	// Shared status-listing lock.
	LockPath  string   `yaml:"lock_path"`
	LockLease Duration `yaml:"lock_lease"`

	// Accounting check budget.
	AcctRetries int      `yaml:"acct_retries"`
	AcctDelay   Duration `yaml:"acct_delay"`

	// One of "remove", "keep", "keep-on-failure". Default "remove".
	Retention string `yaml:"retention"`
}

// Load reads path, or returns defaults when path is empty or missing.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "parsing config %s", path)
	}
	if _, err := c.RetentionPolicy(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) RetentionPolicy() (staging.Policy, error) {
	switch c.Retention {
	case "", "remove":
		return staging.RemoveAlways, nil
	case "keep":
		return staging.KeepAlways, nil
	case "keep-on-failure":
		return staging.KeepOnFailure, nil
	default:
		return 0, errors.Errorf("unknown retention policy %q", c.Retention)
	}
}

// TrackerConfig maps the file contents onto a tracker Config. Zero-valued
// fields stay zero here; the tracker applies its own defaults.
func (c Config) TrackerConfig() (tracker.Config, error) {
	retention, err := c.RetentionPolicy()
	if err != nil {
		return tracker.Config{}, err
	}
	return tracker.Config{
		Poll: tracker.PollConfig{
			Interval:    time.Duration(c.PollInterval),
			Wobble:      time.Duration(c.Wobble),
			MinInterval: time.Duration(c.MinInterval),
			LockPath:    c.LockPath,
			LockLease:   time.Duration(c.LockLease),
			AcctRetries: c.AcctRetries,
			AcctDelay:   time.Duration(c.AcctDelay),
		},
		SharedTmpDir: c.SharedTmpDir,
		Retention:    retention,
	}, nil
}
