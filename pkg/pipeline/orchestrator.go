// Package pipeline drives the per-candidate discovery state machine and
// records its outcomes. One candidate moves through: fixed-variant suite
// check, buggy-variant suite check, isolation on the fixed variant,
// isolation on the buggy variant, classification and recording. Any fatal
// fault aborts the remaining batch; already-recorded candidates are the
// resumability checkpoint.
package pipeline

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/fault-lab/triggeroor/pkg/classifier"
	"github.com/fault-lab/triggeroor/pkg/isolation"
	"github.com/fault-lab/triggeroor/pkg/patches"
	"github.com/fault-lab/triggeroor/pkg/store"
	"github.com/fault-lab/triggeroor/pkg/variant"
)

// Stage names used in logs.
const (
	StageFixedSuite   = "fixed-suite"
	StageBuggySuite   = "buggy-suite"
	StageIsolateFixed = "isolate-fixed"
	StageIsolateBuggy = "isolate-buggy"
	StageRecord       = "record"
)

// Orchestrator runs the discovery state machine for single candidates.
type Orchestrator interface {
	// ProcessCandidate analyzes one candidate and records its outcome.
	// A nil return covers both discovered triggering tests and the
	// expected negative terminal states; an error is always fatal to the
	// batch.
	ProcessCandidate(ctx context.Context, project string, candidateID int) error
}

// NewOrchestrator creates an Orchestrator using the given variant runner
// and recorder, reading patch artifacts from patchesDir.
func NewOrchestrator(
	log logrus.FieldLogger,
	runner variant.Runner,
	recorder Recorder,
	patchesDir string,
) Orchestrator {
	return &orchestrator{
		log:        log.WithField("component", "orchestrator"),
		runner:     runner,
		recorder:   recorder,
		patchesDir: patchesDir,
	}
}

type orchestrator struct {
	log        logrus.FieldLogger
	runner     variant.Runner
	recorder   Recorder
	patchesDir string
}

// Ensure interface compliance.
var _ Orchestrator = (*orchestrator)(nil)

func (o *orchestrator) ProcessCandidate(ctx context.Context, project string, candidateID int) error {
	log := o.log.WithFields(logrus.Fields{
		"project":   project,
		"candidate": candidateID,
	})

	// A missing or malformed patch is an upstream data integrity problem,
	// not a per-candidate outcome.
	patchPath := patches.Path(o.patchesDir, project, candidateID)

	patchInfo, err := patches.Validate(patchPath)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"patch_files": patchInfo.Files,
		"patch_hunks": patchInfo.Hunks,
	}).Debug("Patch artifact validated")

	record := store.NewTriggerRecord(project, candidateID)

	// The same workspace root is reused by every variant of this
	// candidate; clean whatever was prepared last once the candidate
	// completes either way.
	var current *variant.Variant

	defer func() {
		if current == nil {
			return
		}

		if err := o.runner.Cleanup(current); err != nil {
			log.WithError(err).Warn("Failed to clean workspace")
		}
	}()

	// Fixed variant must run its suite clean; any failure there makes the
	// candidate unusable as a fault signature.
	log.WithField("stage", StageFixedSuite).Info("Checking fixed variant")

	fixed, err := o.runner.Prepare(ctx, project, candidateID, "")
	if err != nil {
		return err
	}

	current = fixed

	rawFixed, err := o.runner.RunSuite(ctx, fixed)
	if err != nil {
		return err
	}

	fixedReport, err := classifier.Classify(rawFixed)
	if err != nil {
		return err
	}

	if fixedReport.TotalFailures() > 0 {
		record.FailCountV2 = strconv.Itoa(fixedReport.TotalFailures())

		log.WithField("failures", fixedReport.TotalFailures()).
			Info("Fixed variant has failing tests, skipping candidate")

		return o.recorder.Record(ctx, record)
	}

	record.FailCountV2 = "0"

	// Buggy variant: the reverted fix must break at least one method and
	// no whole class.
	log.WithField("stage", StageBuggySuite).Info("Checking buggy variant")

	buggy, err := o.runner.Prepare(ctx, project, candidateID, patchPath)
	if err != nil {
		return err
	}

	current = buggy

	rawBuggy, err := o.runner.RunSuite(ctx, buggy)
	if err != nil {
		return err
	}

	buggyReport, err := classifier.Classify(rawBuggy)
	if err != nil {
		return err
	}

	record.FailClassesV1 = strconv.Itoa(len(buggyReport.Classes))
	record.FailMethodsV1 = strconv.Itoa(len(buggyReport.Methods))

	if len(buggyReport.Classes) != 0 || len(buggyReport.Methods) == 0 {
		log.WithFields(logrus.Fields{
			"fail_classes": len(buggyReport.Classes),
			"fail_methods": len(buggyReport.Methods),
		}).Info("Buggy variant has unusable failure shape, skipping candidate")

		return o.recorder.Record(ctx, record)
	}

	// Isolation pass 1: each failing method must still pass alone on the
	// fixed variant.
	log.WithField("stage", StageIsolateFixed).Info("Isolating on fixed variant")

	fixedIso, err := o.runner.Prepare(ctx, project, candidateID, "")
	if err != nil {
		return err
	}

	current = fixedIso

	passResult, err := isolation.Filter(
		ctx, o.log, o.runner, fixedIso, buggyReport.Methods, isolation.ExpectPass,
	)
	if err != nil {
		return err
	}

	record.PassIsolatedV2 = strconv.Itoa(len(passResult.Kept))

	// Isolation pass 2: each survivor must still fail alone on the buggy
	// variant.
	log.WithField("stage", StageIsolateBuggy).Info("Isolating on buggy variant")

	buggyIso, err := o.runner.Prepare(ctx, project, candidateID, patchPath)
	if err != nil {
		return err
	}

	current = buggyIso

	failResult, err := isolation.Filter(
		ctx, o.log, o.runner, buggyIso, passResult.Kept, isolation.ExpectFail,
	)
	if err != nil {
		return err
	}

	record.FailIsolatedV1 = strconv.Itoa(len(failResult.Kept))

	// Methods from the original failure report that did not survive both
	// passes are order-dependent; log each once.
	for _, test := range subtract(buggyReport.Methods, failResult.Kept) {
		log.WithField("test", test).Warn("Dependent test excluded from fault signature")

		if err := o.recorder.AppendDependent(project, test); err != nil {
			return err
		}
	}

	if len(failResult.Kept) > 0 {
		evidence := passResult.Evidence + failResult.Evidence

		if err := o.recorder.WriteTriggerArtifact(project, candidateID, evidence); err != nil {
			return err
		}

		log.WithField("triggers", len(failResult.Kept)).
			Info("Triggering tests discovered")
	} else {
		log.Info("No triggering tests survived isolation")
	}

	return o.recorder.Record(ctx, record)
}

// subtract returns the elements of list absent from remove, preserving
// list's order.
func subtract(list, remove []string) []string {
	removed := make(map[string]struct{}, len(remove))
	for _, name := range remove {
		removed[name] = struct{}{}
	}

	result := make([]string, 0, len(list))

	for _, name := range list {
		if _, ok := removed[name]; !ok {
			result = append(result, name)
		}
	}

	return result
}
