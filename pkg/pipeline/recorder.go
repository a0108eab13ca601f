package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/fault-lab/triggeroor/pkg/fsutil"
	"github.com/fault-lab/triggeroor/pkg/store"
)

const (
	triggerTestsDir   = "trigger_tests"
	dependentTestsLog = "dependent_tests"
)

// Recorder persists one outcome row per candidate and writes the derived
// file artifacts. Rows are plain inserts; the selector's exclusion filter,
// not upsert semantics, keeps reruns duplicate-free.
type Recorder interface {
	Record(ctx context.Context, record *store.TriggerRecord) error

	// WriteTriggerArtifact stores the isolation evidence of the surviving
	// triggering tests. Only called when at least one test survived.
	WriteTriggerArtifact(project string, candidateID int, evidence string) error

	// AppendDependent appends one order-dependent test name to the
	// project's append-only dependent-test log.
	AppendDependent(project, test string) error
}

// NewRecorder creates a Recorder writing rows via st and artifacts under
// resultsDir.
func NewRecorder(
	log logrus.FieldLogger,
	st store.Store,
	resultsDir string,
	owner *fsutil.OwnerConfig,
) Recorder {
	return &recorder{
		log:        log.WithField("component", "recorder"),
		store:      st,
		resultsDir: resultsDir,
		owner:      owner,
	}
}

type recorder struct {
	log        logrus.FieldLogger
	store      store.Store
	resultsDir string
	owner      *fsutil.OwnerConfig
}

// Ensure interface compliance.
var _ Recorder = (*recorder)(nil)

func (r *recorder) Record(ctx context.Context, record *store.TriggerRecord) error {
	if err := r.store.CreateTriggerRecord(ctx, record); err != nil {
		return fmt.Errorf("recording candidate %d: %w", record.CandidateID, err)
	}

	r.log.WithFields(logrus.Fields{
		"project":          record.Project,
		"candidate":        record.CandidateID,
		"fail_count_v2":    record.FailCountV2,
		"fail_classes_v1":  record.FailClassesV1,
		"fail_methods_v1":  record.FailMethodsV1,
		"pass_isolated_v2": record.PassIsolatedV2,
		"fail_isolated_v1": record.FailIsolatedV1,
	}).Info("Candidate recorded")

	return nil
}

func (r *recorder) WriteTriggerArtifact(project string, candidateID int, evidence string) error {
	dir := filepath.Join(r.resultsDir, project, triggerTestsDir)
	if err := fsutil.MkdirAll(dir, 0755, r.owner); err != nil {
		return fmt.Errorf("creating trigger artifact directory: %w", err)
	}

	path := filepath.Join(dir, strconv.Itoa(candidateID))
	if err := fsutil.WriteFile(path, []byte(evidence), 0644, r.owner); err != nil {
		return fmt.Errorf("writing trigger artifact %s: %w", path, err)
	}

	return nil
}

func (r *recorder) AppendDependent(project, test string) error {
	dir := filepath.Join(r.resultsDir, project)
	if err := fsutil.MkdirAll(dir, 0755, r.owner); err != nil {
		return fmt.Errorf("creating project results directory: %w", err)
	}

	path := filepath.Join(dir, dependentTestsLog)
	if err := fsutil.AppendLine(path, "--- "+test, r.owner); err != nil {
		return fmt.Errorf("appending to dependent-test log: %w", err)
	}

	return nil
}
