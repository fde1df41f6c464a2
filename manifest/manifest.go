// Package manifest ships a job's work payload to the compute node as an
// explicit file in the staging directory. The submitting side writes the
// manifest, the remote side reads it back and executes it; nothing opaque
// crosses the wire.
package manifest

import (
	"io"
	"io/ioutil"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/hpctools/gridtrack/execer"
)

const FileName = "job-manifest.yaml"

// Manifest describes the work a compute node should run.
type Manifest struct {
	Argv []string          `yaml:"argv"`
	Env  map[string]string `yaml:"env,omitempty"`
}

// Write stores m as the manifest file inside dir.
func Write(dir string, m Manifest) error {
	if len(m.Argv) == 0 {
		return errors.New("manifest requires a non-empty argv")
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return errors.Wrap(err, "marshaling job manifest")
	}
	path := filepath.Join(dir, FileName)
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing job manifest %s", path)
	}
	return nil
}

// Read loads the manifest file from dir.
func Read(dir string) (Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "reading job manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrapf(err, "parsing job manifest %s", path)
	}
	if len(m.Argv) == 0 {
		return Manifest{}, errors.Errorf("job manifest %s has empty argv", path)
	}
	return m, nil
}

// Run reads the manifest in dir and executes it, returning the exit code.
// stdout/stderr pass through to the given writers; under the scheduler those
// are already redirected to the job's capture files.
func Run(e execer.Execer, dir string, stdout, stderr io.Writer) (int, error) {
	m, err := Read(dir)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"dir": dir, "argv": m.Argv}).Info("Running job manifest")
	st, err := e.Exec(execer.Command{
		Argv:    m.Argv,
		EnvVars: m.Env,
		Stdout:  stdout,
		Stderr:  stderr,
	})
	if err != nil {
		return 0, err
	}
	return st.ExitCode, nil
}
