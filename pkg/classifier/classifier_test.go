package classifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fault-lab/triggeroor/pkg/faults"
)

func TestClassify_SplitsClassesAndMethods(t *testing.T) {
	raw := `Running test suite
--- com.example.FooTest::testAlpha
some tool noise
--- com.example.BarTest
--- com.example.FooTest::testBeta
done
`

	report, err := Classify(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"com.example.FooTest::testAlpha", "com.example.FooTest::testBeta"}, report.Methods)
	assert.Equal(t, []string{"com.example.BarTest"}, report.Classes)
	assert.Equal(t, 3, report.TotalFailures())
}

func TestClassify_PreservesFirstSeenOrder(t *testing.T) {
	raw := "--- z.Test::c\n--- a.Test::a\n--- m.Test::b\n"

	report, err := Classify(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"z.Test::c", "a.Test::a", "m.Test::b"}, report.Methods)
}

func TestClassify_EmptyOutput(t *testing.T) {
	report, err := Classify("BUILD SUCCESSFUL\nall tests passed\n")
	require.NoError(t, err)

	assert.Empty(t, report.Classes)
	assert.Empty(t, report.Methods)
	assert.Zero(t, report.TotalFailures())
}

func TestClassify_DuplicateMethodIsFatal(t *testing.T) {
	raw := "--- com.example.FooTest::testAlpha\n--- com.example.FooTest::testAlpha\n"

	report, err := Classify(raw)
	require.Error(t, err)
	assert.Nil(t, report)

	var invErr *faults.InvariantError
	require.True(t, errors.As(err, &invErr), "expected an invariant violation, got %v", err)
	assert.Contains(t, invErr.Msg, "com.example.FooTest::testAlpha")
}

func TestClassify_DuplicateClassIsFatal(t *testing.T) {
	raw := "--- com.example.FooTest\n--- com.example.FooTest\n"

	_, err := Classify(raw)

	var invErr *faults.InvariantError
	require.True(t, errors.As(err, &invErr))
}

func TestClassify_SameNameAsClassAndMethodIsAllowed(t *testing.T) {
	// A failing class and a failing method are distinct namespaces.
	raw := "--- com.example.FooTest\n--- com.example.FooTest::testAlpha\n"

	report, err := Classify(raw)
	require.NoError(t, err)

	assert.Len(t, report.Classes, 1)
	assert.Len(t, report.Methods, 1)
}

func TestClassify_IgnoresBlankFailureLines(t *testing.T) {
	report, err := Classify("--- \n---    \n")
	require.NoError(t, err)

	assert.Zero(t, report.TotalFailures())
}

func TestClassify_IgnoresPrefixCollisions(t *testing.T) {
	// A patch echoed into the build log shares the failure prefix with
	// its diff headers; prose noise can too. Neither names a test.
	raw := `--- a/src/main/java/Foo.java
+++ b/src/main/java/Foo.java
--- no tests were executed
--- com.example.FooTest::testAlpha
`

	report, err := Classify(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"com.example.FooTest::testAlpha"}, report.Methods)
	assert.Empty(t, report.Classes)
}

func TestIsTestName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "class", input: "com.example.FooTest", want: true},
		{name: "method", input: "com.example.FooTest::testAlpha", want: true},
		{name: "empty", input: "", want: false},
		{name: "diff header", input: "a/src/Foo.java", want: false},
		{name: "prose", input: "no tests were executed", want: false},
		{name: "windows path", input: `a\src\Foo.java`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTestName(tt.input))
		})
	}
}
