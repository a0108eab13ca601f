// Package buildsys provides build-system adapters: the argv recipes for
// checking out, patching, compiling and testing one candidate workspace.
// The orchestrator stays tool-agnostic; adding a build system means adding
// a Spec.
package buildsys

import (
	"fmt"
	"sync"
)

// System identifies a supported build system.
type System string

const (
	SystemDefects4J System = "defects4j"
	SystemMaven     System = "maven"
)

// Spec provides build-system specific command lines. All commands run with
// the candidate workspace as working directory context; paths are absolute.
type Spec interface {
	// Type returns the build system identifier.
	Type() System

	// Checkout returns the argv that materializes the fixed revision of
	// the candidate into workdir.
	Checkout(project string, candidate int, workdir string) []string

	// ApplyPatch returns the argv that applies the fix-reverting patch
	// file to the checked-out tree in workdir.
	ApplyPatch(workdir, patch string) []string

	// Compile returns the argv that compiles sources and tests.
	Compile(workdir string) []string

	// TestSuite returns the argv that runs the whole test suite once.
	TestSuite(workdir string) []string

	// TestSingle returns the argv that runs exactly one test method.
	TestSingle(workdir, test string) []string

	// FailureExitOK reports whether the test commands exit non-zero on
	// ordinary test failures. When false, any non-zero exit is a tool
	// fault.
	FailureExitOK() bool

	// FailingTestPrefix returns the line prefix under which the tool
	// reports failing tests, normalized by the runner into classifier
	// form.
	FailingTestPrefix() string
}

// Registry manages build-system specifications.
type Registry interface {
	Get(system System) (Spec, error)
	Register(spec Spec)
	List() []System
}

// NewRegistry creates a registry with all built-in build systems.
func NewRegistry() Registry {
	r := &registry{
		specs: make(map[System]Spec, 2),
	}

	r.Register(NewDefects4JSpec())
	r.Register(NewMavenSpec())

	return r
}

type registry struct {
	mu    sync.RWMutex
	specs map[System]Spec
}

// Ensure interface compliance.
var _ Registry = (*registry)(nil)

func (r *registry) Get(system System) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[system]
	if !ok {
		return nil, fmt.Errorf("unknown build system: %s", system)
	}

	return spec, nil
}

func (r *registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.specs[spec.Type()] = spec
}

func (r *registry) List() []System {
	r.mu.RLock()
	defer r.mu.RUnlock()

	systems := make([]System, 0, len(r.specs))
	for system := range r.specs {
		systems = append(systems, system)
	}

	return systems
}
