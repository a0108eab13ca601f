package variant

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fault-lab/triggeroor/pkg/buildsys"
	"github.com/fault-lab/triggeroor/pkg/classifier"
	"github.com/fault-lab/triggeroor/pkg/faults"
	"github.com/fault-lab/triggeroor/pkg/fsutil"
)

// Runner prepares variants and executes their test suites. All operations
// are blocking; a hung external tool blocks the pipeline, which is
// acceptable for this offline batch workflow.
type Runner interface {
	// Prepare checks out the fixed revision of the candidate into the
	// workspace, applies patchPath when non-empty (producing the buggy
	// variant) and compiles sources and tests. Tool failures are
	// faults.BuildError and never retried.
	Prepare(ctx context.Context, project string, candidateID int, patchPath string) (*Variant, error)

	// RunSuite executes the full test suite once and returns the
	// normalized raw output.
	RunSuite(ctx context.Context, v *Variant) (string, error)

	// RunSingle executes exactly one named test method and returns the
	// normalized raw output.
	RunSingle(ctx context.Context, v *Variant, test string) (string, error)

	// Cleanup removes the variant's workspace contents. The workspace
	// root itself is kept for reuse by the next candidate.
	Cleanup(v *Variant) error
}

// NewRunner creates a Runner that drives the given build system inside
// workspaceRoot.
func NewRunner(log logrus.FieldLogger, spec buildsys.Spec, workspaceRoot string) Runner {
	return &runner{
		log:           log.WithField("component", "variant-runner"),
		spec:          spec,
		workspaceRoot: workspaceRoot,
	}
}

type runner struct {
	log           logrus.FieldLogger
	spec          buildsys.Spec
	workspaceRoot string
}

// Ensure interface compliance.
var _ Runner = (*runner)(nil)

func (r *runner) Prepare(ctx context.Context, project string, candidateID int, patchPath string) (*Variant, error) {
	v := &Variant{
		Project:     project,
		CandidateID: candidateID,
		Buggy:       patchPath != "",
		Workdir:     r.workspaceRoot,
	}

	log := r.log.WithFields(logrus.Fields{
		"project":   project,
		"candidate": candidateID,
		"variant":   v.Kind(),
	})

	// The workspace is reused across stages and candidates; start from an
	// empty tree so a stale checkout cannot leak into this variant.
	if err := fsutil.RemoveContents(r.workspaceRoot); err != nil {
		return nil, &faults.BuildError{
			Candidate: candidateID,
			Stage:     "workspace",
			Err:       err,
		}
	}

	if err := os.MkdirAll(r.workspaceRoot, 0755); err != nil {
		return nil, &faults.BuildError{
			Candidate: candidateID,
			Stage:     "workspace",
			Err:       err,
		}
	}

	log.Debug("Checking out fixed revision")

	if out, err := r.run(ctx, r.spec.Checkout(project, candidateID, r.workspaceRoot)); err != nil {
		return nil, &faults.BuildError{
			Candidate: candidateID,
			Stage:     "checkout",
			Output:    out,
			Err:       err,
		}
	}

	if v.Buggy {
		log.WithField("patch", patchPath).Debug("Applying fix-reverting patch")

		if out, err := r.run(ctx, r.spec.ApplyPatch(r.workspaceRoot, patchPath)); err != nil {
			return nil, &faults.BuildError{
				Candidate: candidateID,
				Stage:     "patch",
				Output:    out,
				Err:       err,
			}
		}
	}

	log.Debug("Compiling sources and tests")

	if out, err := r.run(ctx, r.spec.Compile(r.workspaceRoot)); err != nil {
		return nil, &faults.BuildError{
			Candidate: candidateID,
			Stage:     "compile",
			Output:    out,
			Err:       err,
		}
	}

	log.Debug("Variant prepared")

	return v, nil
}

func (r *runner) RunSuite(ctx context.Context, v *Variant) (string, error) {
	return r.runTests(ctx, v, r.spec.TestSuite(v.Workdir), "suite")
}

func (r *runner) RunSingle(ctx context.Context, v *Variant, test string) (string, error) {
	return r.runTests(ctx, v, r.spec.TestSingle(v.Workdir, test), "single:"+test)
}

func (r *runner) Cleanup(v *Variant) error {
	return fsutil.RemoveContents(v.Workdir)
}

// runTests executes a test command and normalizes its output. Non-zero
// exits are tolerated only for build systems whose test tool fails the
// process on ordinary test failures, and only when failing tests were
// actually reported.
func (r *runner) runTests(ctx context.Context, v *Variant, argv []string, stage string) (string, error) {
	out, err := r.run(ctx, argv)
	normalized := r.normalize(out)

	if err != nil {
		if r.spec.FailureExitOK() {
			if report, cErr := classifier.Classify(normalized); cErr == nil && report.TotalFailures() > 0 {
				return normalized, nil
			}
		}

		return "", &faults.RunError{
			Candidate: v.CandidateID,
			Stage:     stage,
			Output:    tail(out, 20),
			Err:       err,
		}
	}

	return normalized, nil
}

// run executes one external command, returning its combined output.
func (r *runner) run(ctx context.Context, argv []string) (string, error) {
	//nolint:gosec // Command args come from build-system specs, not user input.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("running %q: %w", strings.Join(argv, " "), err)
	}

	return string(output), nil
}

// normalize rewrites the build system's failing-test lines into classifier
// form, leaving everything else untouched.
func (r *runner) normalize(raw string) string {
	prefix := r.spec.FailingTestPrefix()
	if prefix == classifier.FailurePrefix {
		return raw
	}

	var b strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		name := ""
		if strings.HasPrefix(line, prefix) {
			name = strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}

		// Prefixed lines that do not name a test, build-tool chatter
		// sharing the prefix for instance, pass through untouched.
		if classifier.IsTestName(name) {
			b.WriteString(classifier.FailurePrefix + name)
		} else {
			b.WriteString(line)
		}

		b.WriteByte('\n')
	}

	return b.String()
}

// tail returns the last n lines of s for error context.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}

	return strings.Join(lines[len(lines)-n:], "\n")
}
