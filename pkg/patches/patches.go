// Package patches locates and validates the per-candidate fix-reverting
// patch artifacts. A candidate without a well-formed patch indicates an
// upstream data integrity problem and aborts the batch before any tool
// runs.
package patches

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/fault-lab/triggeroor/pkg/faults"
)

// Info summarizes a validated patch.
type Info struct {
	Files int
	Hunks int
}

// Path returns the deterministic patch location for one candidate.
func Path(dir, project string, candidateID int) string {
	return filepath.Join(dir, project, strconv.Itoa(candidateID)+".src.patch")
}

// Validate checks that the patch file exists and parses as a unified diff
// touching at least one file. Failures are faults.ConfigError.
func Validate(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &faults.ConfigError{Msg: "missing patch artifact " + path}
		}

		return nil, &faults.ConfigError{Msg: "reading patch artifact " + path, Err: err}
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(string(data))).ReadAllFiles()
	if err != nil {
		return nil, &faults.ConfigError{Msg: "malformed patch artifact " + path, Err: err}
	}

	// Reverting a fix always touches at least one file.
	if len(fileDiffs) == 0 {
		return nil, &faults.ConfigError{Msg: fmt.Sprintf("patch artifact %s contains no file diffs", path)}
	}

	info := &Info{Files: len(fileDiffs)}
	for _, fd := range fileDiffs {
		info.Hunks += len(fd.Hunks)
	}

	return info, nil
}
