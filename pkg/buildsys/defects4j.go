package buildsys

import (
	"fmt"
)

// defects4jSpec drives the Defects4J command-line tool. Checkout always
// materializes the fixed revision; the buggy variant is produced by applying
// the fix-reverting patch on top of it.
type defects4jSpec struct{}

// NewDefects4JSpec creates the Defects4J build-system spec.
func NewDefects4JSpec() Spec {
	return &defects4jSpec{}
}

// Ensure interface compliance.
var _ Spec = (*defects4jSpec)(nil)

func (s *defects4jSpec) Type() System {
	return SystemDefects4J
}

func (s *defects4jSpec) Checkout(project string, candidate int, workdir string) []string {
	return []string{
		"defects4j", "checkout",
		"-p", project,
		"-v", fmt.Sprintf("%df", candidate),
		"-w", workdir,
	}
}

func (s *defects4jSpec) ApplyPatch(workdir, patch string) []string {
	return []string{"patch", "-p1", "-d", workdir, "-i", patch}
}

func (s *defects4jSpec) Compile(workdir string) []string {
	return []string{"defects4j", "compile", "-w", workdir}
}

func (s *defects4jSpec) TestSuite(workdir string) []string {
	return []string{"defects4j", "test", "-w", workdir}
}

func (s *defects4jSpec) TestSingle(workdir, test string) []string {
	return []string{"defects4j", "test", "-w", workdir, "-t", test}
}

func (s *defects4jSpec) FailureExitOK() bool {
	// defects4j test exits zero even when tests fail; non-zero means the
	// tool itself broke.
	return false
}

func (s *defects4jSpec) FailingTestPrefix() string {
	return "  - "
}
