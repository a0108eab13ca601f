// Package classifier parses raw test-run output into a structured failure
// report. Build-system adapters normalize failing tests into lines of the
// form "--- <class>" or "--- <class>::<method>"; everything else in the
// output is ignored.
package classifier

import (
	"bufio"
	"strings"
	"unicode"

	"github.com/fault-lab/triggeroor/pkg/faults"
)

// FailurePrefix marks a failing-test line in normalized test output.
const FailurePrefix = "--- "

// IsTestName reports whether name is a plausible class or method name.
// Tool noise sharing the failure prefix, a unified-diff header or a prose
// message for instance, carries path separators or spaces and is ignored.
func IsTestName(name string) bool {
	if name == "" {
		return false
	}

	for _, r := range name {
		if unicode.IsSpace(r) || r == '/' || r == '\\' {
			return false
		}
	}

	return true
}

// Report holds the distinct failing classes and failing methods of one
// test run, in first-seen order.
type Report struct {
	Classes []string
	Methods []string
}

// TotalFailures returns the combined number of failing classes and methods.
func (r *Report) TotalFailures() int {
	return len(r.Classes) + len(r.Methods)
}

// Classify parses raw test output. Deterministic for identical input.
//
// A failing name containing "::" is a single test method; a bare name is a
// whole failing class. The same name appearing twice within one report means
// the test harness itself is unreliable and yields a faults.InvariantError
// rather than a silently deduplicated report.
func Classify(raw string) (*Report, error) {
	var report Report

	seenClasses := make(map[string]struct{})
	seenMethods := make(map[string]struct{})

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, FailurePrefix) {
			continue
		}

		name := strings.TrimSpace(strings.TrimPrefix(line, FailurePrefix))
		if !IsTestName(name) {
			continue
		}

		if strings.Contains(name, "::") {
			if _, dup := seenMethods[name]; dup {
				return nil, &faults.InvariantError{
					Msg: "duplicate failing test " + name,
				}
			}

			seenMethods[name] = struct{}{}
			report.Methods = append(report.Methods, name)

			continue
		}

		if _, dup := seenClasses[name]; dup {
			return nil, &faults.InvariantError{
				Msg: "duplicate failing class " + name,
			}
		}

		seenClasses[name] = struct{}{}
		report.Classes = append(report.Classes, name)
	}

	// Scanner errors only occur on oversized lines; raw output is
	// line-oriented tool output, so surface it as an invariant problem.
	if err := scanner.Err(); err != nil {
		return nil, &faults.InvariantError{Msg: "unreadable test output: " + err.Error()}
	}

	return &report, nil
}
