package buildsys

import (
	"strconv"
	"strings"
)

// Placeholders substituted into template arguments.
const (
	PlaceholderProject   = "{project}"
	PlaceholderCandidate = "{candidate}"
	PlaceholderWorkdir   = "{workdir}"
	PlaceholderPatch     = "{patch}"
	PlaceholderTest      = "{test}"
)

// Templates holds the raw argv templates of a config-defined build system.
type Templates struct {
	Checkout          []string
	ApplyPatch        []string
	Compile           []string
	TestSuite         []string
	TestSingle        []string
	FailureExitOK     bool
	FailingTestPrefix string
}

// templateSpec renders config-defined argv templates into commands, so
// operators can plug in build systems the binary does not know about.
type templateSpec struct {
	system    System
	templates Templates
}

// NewTemplateSpec creates a Spec from config-defined command templates.
func NewTemplateSpec(system System, templates Templates) Spec {
	if templates.FailingTestPrefix == "" {
		templates.FailingTestPrefix = "--- "
	}

	return &templateSpec{
		system:    system,
		templates: templates,
	}
}

// Ensure interface compliance.
var _ Spec = (*templateSpec)(nil)

func (s *templateSpec) Type() System {
	return s.system
}

func (s *templateSpec) Checkout(project string, candidate int, workdir string) []string {
	return render(s.templates.Checkout, map[string]string{
		PlaceholderProject:   project,
		PlaceholderCandidate: strconv.Itoa(candidate),
		PlaceholderWorkdir:   workdir,
	})
}

func (s *templateSpec) ApplyPatch(workdir, patch string) []string {
	return render(s.templates.ApplyPatch, map[string]string{
		PlaceholderWorkdir: workdir,
		PlaceholderPatch:   patch,
	})
}

func (s *templateSpec) Compile(workdir string) []string {
	return render(s.templates.Compile, map[string]string{
		PlaceholderWorkdir: workdir,
	})
}

func (s *templateSpec) TestSuite(workdir string) []string {
	return render(s.templates.TestSuite, map[string]string{
		PlaceholderWorkdir: workdir,
	})
}

func (s *templateSpec) TestSingle(workdir, test string) []string {
	return render(s.templates.TestSingle, map[string]string{
		PlaceholderWorkdir: workdir,
		PlaceholderTest:    test,
	})
}

func (s *templateSpec) FailureExitOK() bool {
	return s.templates.FailureExitOK
}

func (s *templateSpec) FailingTestPrefix() string {
	return s.templates.FailingTestPrefix
}

// render substitutes placeholders in each template argument.
func render(args []string, vars map[string]string) []string {
	rendered := make([]string, len(args))

	for i, arg := range args {
		for placeholder, value := range vars {
			arg = strings.ReplaceAll(arg, placeholder, value)
		}

		rendered[i] = arg
	}

	return rendered
}
