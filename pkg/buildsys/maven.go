package buildsys

import (
	"fmt"
	"strings"
)

// mavenSpec drives plain git + Maven projects. The project identifier is a
// local git mirror path and candidates are tagged fixed-<id> in it.
type mavenSpec struct{}

// NewMavenSpec creates the Maven build-system spec.
func NewMavenSpec() Spec {
	return &mavenSpec{}
}

// Ensure interface compliance.
var _ Spec = (*mavenSpec)(nil)

func (s *mavenSpec) Type() System {
	return SystemMaven
}

func (s *mavenSpec) Checkout(project string, candidate int, workdir string) []string {
	return []string{
		"git", "clone",
		"--shared",
		"--branch", fmt.Sprintf("fixed-%d", candidate),
		project, workdir,
	}
}

func (s *mavenSpec) ApplyPatch(workdir, patch string) []string {
	return []string{"git", "-C", workdir, "apply", "--whitespace=nowarn", patch}
}

func (s *mavenSpec) Compile(workdir string) []string {
	return []string{"mvn", "-q", "-f", workdir, "test-compile"}
}

func (s *mavenSpec) TestSuite(workdir string) []string {
	return []string{"mvn", "-q", "-f", workdir, "-Dsurefire.failIfNoSpecifiedTests=false", "test"}
}

func (s *mavenSpec) TestSingle(workdir, test string) []string {
	// Surefire addresses a single method as Class#method.
	return []string{
		"mvn", "-q", "-f", workdir,
		"-Dtest=" + strings.ReplaceAll(test, "::", "#"),
		"-Dsurefire.failIfNoSpecifiedTests=false",
		"test",
	}
}

func (s *mavenSpec) FailureExitOK() bool {
	// mvn exits non-zero whenever a test fails; only treat that exit as a
	// tool fault when no failing tests were reported.
	return true
}

func (s *mavenSpec) FailingTestPrefix() string {
	return "[ERROR]   "
}
