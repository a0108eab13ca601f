// Package variant materializes and exercises one side of a candidate
// revision pair: the fixed tree as checked out, or the buggy tree produced
// by applying the fix-reverting patch on top of it.
package variant

// Variant is a checked-out, compiled program state. It carries its own
// workspace path; nothing in the pipeline shares a mutable workspace
// pointer across stages.
type Variant struct {
	Project     string
	CandidateID int

	// Buggy is true when the fix-reverting patch was applied (V1); false
	// for the clean fixed revision (V2).
	Buggy bool

	// Workdir is the workspace root holding this variant's tree.
	Workdir string
}

// Kind returns the conventional variant label: V1 for buggy, V2 for fixed.
func (v *Variant) Kind() string {
	if v.Buggy {
		return "V1"
	}

	return "V2"
}
