// Package isolation re-executes test methods one at a time against a
// variant, keeping only the methods that reproduce an expected outcome.
// Methods that fail to reproduce are order-dependent or flaky and are
// dropped from the fault signature.
package isolation

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fault-lab/triggeroor/pkg/classifier"
	"github.com/fault-lab/triggeroor/pkg/variant"
)

// Outcome is the expectation checked for each isolated run.
type Outcome int

const (
	// ExpectPass keeps methods whose isolated run reports zero failing
	// methods.
	ExpectPass Outcome = iota

	// ExpectFail keeps methods whose isolated run reports exactly one
	// failing method.
	ExpectFail
)

func (o Outcome) String() string {
	if o == ExpectFail {
		return "fail"
	}

	return "pass"
}

// Result partitions an ordered method list after isolation. Kept preserves
// the input order; Evidence accumulates the raw output of every kept run.
type Result struct {
	Kept     []string
	Evidence string
}

// Filter runs each method alone via the runner, classifies the output and
// keeps the method iff it matched the expected outcome. Classifier
// invariant violations and tool faults propagate unchanged; they abort the
// batch upstream.
func Filter(
	ctx context.Context,
	log logrus.FieldLogger,
	runner variant.Runner,
	v *variant.Variant,
	methods []string,
	expected Outcome,
) (*Result, error) {
	log = log.WithFields(logrus.Fields{
		"component": "isolation",
		"candidate": v.CandidateID,
		"variant":   v.Kind(),
		"expected":  expected.String(),
	})

	result := &Result{
		Kept: make([]string, 0, len(methods)),
	}

	var evidence strings.Builder

	for _, method := range methods {
		raw, err := runner.RunSingle(ctx, v, method)
		if err != nil {
			return nil, err
		}

		report, err := classifier.Classify(raw)
		if err != nil {
			return nil, err
		}

		want := 0
		if expected == ExpectFail {
			want = 1
		}

		if len(report.Methods) != want {
			log.WithFields(logrus.Fields{
				"test":     method,
				"failures": len(report.Methods),
			}).Warn("Test did not reproduce in isolation")

			continue
		}

		result.Kept = append(result.Kept, method)
		evidence.WriteString(raw)
	}

	result.Evidence = evidence.String()

	log.WithFields(logrus.Fields{
		"input": len(methods),
		"kept":  len(result.Kept),
	}).Info("Isolation filter complete")

	return result, nil
}
