package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fault-lab/triggeroor/pkg/config"
	"github.com/fault-lab/triggeroor/pkg/faults"
	"github.com/fault-lab/triggeroor/pkg/patches"
	"github.com/fault-lab/triggeroor/pkg/pipeline"
	"github.com/fault-lab/triggeroor/pkg/selector"
	"github.com/fault-lab/triggeroor/pkg/store"
	"github.com/fault-lab/triggeroor/pkg/variant"
)

const testPatch = `--- a/src/Foo.java
+++ b/src/Foo.java
@@ -1,3 +1,3 @@
 class Foo {
-    int limit = 10;
+    int limit = 0;
 }
`

// fakeRunner serves scripted suite and single-run outputs per variant
// kind (V2 fixed, V1 buggy) without touching any real build system.
type fakeRunner struct {
	workdir string

	suiteOut  map[string]string            // kind -> suite output
	singleOut map[string]map[string]string // kind -> test -> output

	prepareCalls int
	singleCalls  []string
	cleanupCalls int
}

var _ variant.Runner = (*fakeRunner)(nil)

func (r *fakeRunner) Prepare(ctx context.Context, project string, candidateID int, patchPath string) (*variant.Variant, error) {
	r.prepareCalls++

	return &variant.Variant{
		Project:     project,
		CandidateID: candidateID,
		Buggy:       patchPath != "",
		Workdir:     r.workdir,
	}, nil
}

func (r *fakeRunner) RunSuite(ctx context.Context, v *variant.Variant) (string, error) {
	return r.suiteOut[v.Kind()], nil
}

func (r *fakeRunner) RunSingle(ctx context.Context, v *variant.Variant, test string) (string, error) {
	r.singleCalls = append(r.singleCalls, v.Kind()+":"+test)

	return r.singleOut[v.Kind()][test], nil
}

func (r *fakeRunner) Cleanup(v *variant.Variant) error {
	r.cleanupCalls++

	return nil
}

type fixture struct {
	store      store.Store
	recorder   pipeline.Recorder
	resultsDir string
	patchesDir string
}

func testLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}

	st := store.NewStore(testLog(), cfg)
	require.NoError(t, st.Start(context.Background()))

	t.Cleanup(func() { _ = st.Stop() })

	resultsDir := t.TempDir()

	return &fixture{
		store:      st,
		recorder:   pipeline.NewRecorder(testLog(), st, resultsDir, nil),
		resultsDir: resultsDir,
		patchesDir: t.TempDir(),
	}
}

func writePatch(t *testing.T, patchesDir, project string, candidateID int) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(patchesDir, project), 0755))
	require.NoError(t, os.WriteFile(
		patches.Path(patchesDir, project, candidateID), []byte(testPatch), 0644))
}

func TestProcessCandidate_FullDiscovery(t *testing.T) {
	f := setupFixture(t)
	writePatch(t, f.patchesDir, "Lang", 3)

	runner := &fakeRunner{
		suiteOut: map[string]string{
			"V2": "all tests passed\n",
			"V1": "--- p.T::A\n--- p.T::B\n--- p.T::C\n",
		},
		singleOut: map[string]map[string]string{
			// On the fixed variant, C fails even alone.
			"V2": {
				"p.T::A": "ok\n",
				"p.T::B": "ok\n",
				"p.T::C": "--- p.T::C\n",
			},
			// On the buggy variant, B passes alone.
			"V1": {
				"p.T::A": "--- p.T::A\n",
				"p.T::B": "ok\n",
			},
		},
	}

	orch := pipeline.NewOrchestrator(testLog(), runner, f.recorder, f.patchesDir)
	require.NoError(t, orch.ProcessCandidate(context.Background(), "Lang", 3))

	record, err := f.store.GetTriggerRecord(context.Background(), "Lang", 3)
	require.NoError(t, err)

	assert.Equal(t, "0", record.FailCountV2)
	assert.Equal(t, "0", record.FailClassesV1)
	assert.Equal(t, "3", record.FailMethodsV1)
	assert.Equal(t, "2", record.PassIsolatedV2)
	assert.Equal(t, "1", record.FailIsolatedV1)

	// Only methods that passed in isolation on the fixed variant reach
	// the buggy pass, so C is never run there.
	assert.Equal(t, []string{
		"V2:p.T::A", "V2:p.T::B", "V2:p.T::C",
		"V1:p.T::A", "V1:p.T::B",
	}, runner.singleCalls)

	// Triggering artifact holds the evidence of the surviving method.
	artifact, err := os.ReadFile(filepath.Join(f.resultsDir, "Lang", "trigger_tests", "3"))
	require.NoError(t, err)
	assert.Contains(t, string(artifact), "--- p.T::A")

	// Dependent tests logged exactly once each, in original order.
	depLog, err := os.ReadFile(filepath.Join(f.resultsDir, "Lang", "dependent_tests"))
	require.NoError(t, err)
	assert.Equal(t, "--- p.T::B\n--- p.T::C\n", string(depLog))

	assert.Equal(t, 1, runner.cleanupCalls)
}

func TestProcessCandidate_EarlyExitOnDirtyFixedVariant(t *testing.T) {
	f := setupFixture(t)
	writePatch(t, f.patchesDir, "Lang", 3)

	runner := &fakeRunner{
		suiteOut: map[string]string{
			"V2": "--- p.BrokenTest\n",
		},
	}

	orch := pipeline.NewOrchestrator(testLog(), runner, f.recorder, f.patchesDir)
	require.NoError(t, orch.ProcessCandidate(context.Background(), "Lang", 3))

	record, err := f.store.GetTriggerRecord(context.Background(), "Lang", 3)
	require.NoError(t, err)

	assert.Equal(t, "1", record.FailCountV2)
	assert.Equal(t, store.Sentinel, record.FailClassesV1)
	assert.Equal(t, store.Sentinel, record.FailMethodsV1)
	assert.Equal(t, store.Sentinel, record.PassIsolatedV2)
	assert.Equal(t, store.Sentinel, record.FailIsolatedV1)

	// Only the fixed variant was prepared; no isolation runs happened.
	assert.Equal(t, 1, runner.prepareCalls)
	assert.Empty(t, runner.singleCalls)

	assert.NoFileExists(t, filepath.Join(f.resultsDir, "Lang", "trigger_tests", "3"))
}

func TestProcessCandidate_EarlyExitOnFailingClass(t *testing.T) {
	f := setupFixture(t)
	writePatch(t, f.patchesDir, "Lang", 3)

	runner := &fakeRunner{
		suiteOut: map[string]string{
			"V2": "ok\n",
			"V1": "--- p.WholeClassTest\n--- p.T::A\n",
		},
	}

	orch := pipeline.NewOrchestrator(testLog(), runner, f.recorder, f.patchesDir)
	require.NoError(t, orch.ProcessCandidate(context.Background(), "Lang", 3))

	record, err := f.store.GetTriggerRecord(context.Background(), "Lang", 3)
	require.NoError(t, err)

	assert.Equal(t, "0", record.FailCountV2)
	assert.Equal(t, "1", record.FailClassesV1)
	assert.Equal(t, "1", record.FailMethodsV1)
	assert.Equal(t, store.Sentinel, record.PassIsolatedV2)
	assert.Equal(t, store.Sentinel, record.FailIsolatedV1)

	assert.Empty(t, runner.singleCalls)
}

func TestProcessCandidate_EarlyExitOnNoFailingMethods(t *testing.T) {
	f := setupFixture(t)
	writePatch(t, f.patchesDir, "Lang", 3)

	runner := &fakeRunner{
		suiteOut: map[string]string{
			"V2": "ok\n",
			"V1": "ok\n",
		},
	}

	orch := pipeline.NewOrchestrator(testLog(), runner, f.recorder, f.patchesDir)
	require.NoError(t, orch.ProcessCandidate(context.Background(), "Lang", 3))

	record, err := f.store.GetTriggerRecord(context.Background(), "Lang", 3)
	require.NoError(t, err)

	assert.Equal(t, "0", record.FailClassesV1)
	assert.Equal(t, "0", record.FailMethodsV1)
	assert.Equal(t, store.Sentinel, record.PassIsolatedV2)
}

func TestProcessCandidate_DuplicateFailingTestAbortsBatch(t *testing.T) {
	f := setupFixture(t)
	writePatch(t, f.patchesDir, "Lang", 3)

	runner := &fakeRunner{
		suiteOut: map[string]string{
			"V2": "ok\n",
			"V1": "--- p.T::A\n--- p.T::A\n",
		},
	}

	orch := pipeline.NewOrchestrator(testLog(), runner, f.recorder, f.patchesDir)

	err := orch.ProcessCandidate(context.Background(), "Lang", 3)
	require.Error(t, err)

	var invErr *faults.InvariantError
	require.True(t, errors.As(err, &invErr))

	// No partial row for the aborted candidate.
	count, countErr := f.store.CountRecords(context.Background(), "Lang")
	require.NoError(t, countErr)
	assert.Zero(t, count)
}

func TestProcessCandidate_MissingPatchAbortsBeforeAnyToolRuns(t *testing.T) {
	f := setupFixture(t)

	runner := &fakeRunner{}

	orch := pipeline.NewOrchestrator(testLog(), runner, f.recorder, f.patchesDir)

	err := orch.ProcessCandidate(context.Background(), "Lang", 3)
	require.Error(t, err)

	var cfgErr *faults.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Zero(t, runner.prepareCalls)
	assert.True(t, faults.IsFatal(err))
}

func TestProcessCandidate_NoSurvivorsWritesNoArtifact(t *testing.T) {
	f := setupFixture(t)
	writePatch(t, f.patchesDir, "Lang", 3)

	runner := &fakeRunner{
		suiteOut: map[string]string{
			"V2": "ok\n",
			"V1": "--- p.T::A\n",
		},
		singleOut: map[string]map[string]string{
			"V2": {"p.T::A": "ok\n"},
			// A passes alone on the buggy variant: order-dependent.
			"V1": {"p.T::A": "ok\n"},
		},
	}

	orch := pipeline.NewOrchestrator(testLog(), runner, f.recorder, f.patchesDir)
	require.NoError(t, orch.ProcessCandidate(context.Background(), "Lang", 3))

	record, err := f.store.GetTriggerRecord(context.Background(), "Lang", 3)
	require.NoError(t, err)

	assert.Equal(t, "1", record.PassIsolatedV2)
	assert.Equal(t, "0", record.FailIsolatedV1)

	assert.NoFileExists(t, filepath.Join(f.resultsDir, "Lang", "trigger_tests", "3"))

	depLog, err := os.ReadFile(filepath.Join(f.resultsDir, "Lang", "dependent_tests"))
	require.NoError(t, err)
	assert.Equal(t, "--- p.T::A\n", string(depLog))
}

func TestRunBatch_IdempotentResumption(t *testing.T) {
	f := setupFixture(t)
	writePatch(t, f.patchesDir, "Lang", 3)

	require.NoError(t, f.store.CreateCandidate(context.Background(), &store.Candidate{
		Project:     "Lang",
		CandidateID: 3,
		PrereqOK:    true,
	}))

	runner := &fakeRunner{
		suiteOut: map[string]string{"V2": "--- p.BrokenTest\n"},
	}

	orch := pipeline.NewOrchestrator(testLog(), runner, f.recorder, f.patchesDir)
	sel := selector.NewSelector(testLog(), f.store)

	factory := func(workerID int) (pipeline.Orchestrator, error) { return orch, nil }

	// First run records the candidate.
	ids, err := sel.Select(context.Background(), "Lang", nil)
	require.NoError(t, err)
	require.Equal(t, []int{3}, ids)

	require.NoError(t, pipeline.RunBatch(context.Background(), testLog(), "Lang", ids, 1, factory))

	// Second run selects nothing and records nothing new.
	ids, err = sel.Select(context.Background(), "Lang", nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, pipeline.RunBatch(context.Background(), testLog(), "Lang", ids, 1, factory))

	count, err := f.store.CountRecords(context.Background(), "Lang")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
