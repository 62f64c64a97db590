package main

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// JobSpec is the toml job-file shape `run --spec` accepts, letting a
// distributed deployment hand the core a file instead of a long flag
// list. Any field also settable by a flag is overridden by a flag set to a
// non-default value (see mergeJobDetails).
type JobSpec struct {
	Job JobDetails `toml:""`
}

type JobDetails struct {
	Mode        string `toml:",omitempty"`
	PMin        uint64 `toml:"p_min,omitempty"`
	PMax        uint64 `toml:"p_max,omitempty"`
	NMin        uint32 `toml:"n_min,omitempty"`
	NMax        uint32 `toml:"n_max,omitempty"`
	ResultsPath string `toml:"results_path,omitempty"`
	CheckpointA string `toml:"checkpoint_a,omitempty"`
	CheckpointB string `toml:"checkpoint_b,omitempty"`
	Workers     int    `toml:",omitempty"`
}

func parseJobSpec(f io.Reader) (*JobSpec, error) {
	var out JobSpec
	_, err := toml.NewDecoder(f).Decode(&out)
	return &out, err
}

// LoadJobSpecFromFile reads and decodes a job spec toml file.
func LoadJobSpecFromFile(path string) (*JobSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseJobSpec(f)
}
