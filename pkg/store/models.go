package store

import (
	"time"
)

// Sentinel marks an outcome column the state machine never reached, so a
// recorded zero and "not applicable" stay distinguishable.
const Sentinel = "-"

// Candidate is one row of the read-only candidate source: a revision pair
// nominated upstream, flagged once its prerequisite workflow step completed.
type Candidate struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Project     string `gorm:"uniqueIndex:idx_candidate_key;not null" json:"project"`
	CandidateID int    `gorm:"uniqueIndex:idx_candidate_key;not null" json:"candidate_id"`
	PrereqOK    bool   `gorm:"not null" json:"prereq_ok"`
}

// TriggerRecord is one append-only outcome row per analyzed candidate. Its
// existence is the resumability checkpoint; rows are never updated.
type TriggerRecord struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Project     string `gorm:"uniqueIndex:idx_record_key;not null" json:"project"`
	CandidateID int    `gorm:"uniqueIndex:idx_record_key;not null" json:"candidate_id"`

	// FailCountV2 is the total failure count of the fixed variant's full
	// suite run. Non-zero means the candidate exited early.
	FailCountV2 string `gorm:"not null;default:'-'" json:"fail_count_v2"`

	// FailClassesV1 / FailMethodsV1 describe the buggy variant's failure
	// shape from its full suite run.
	FailClassesV1 string `gorm:"not null;default:'-'" json:"fail_classes_v1"`
	FailMethodsV1 string `gorm:"not null;default:'-'" json:"fail_methods_v1"`

	// PassIsolatedV2 counts methods still passing in isolation on the
	// fixed variant; FailIsolatedV1 counts those still failing in
	// isolation on the buggy variant (the triggering tests).
	PassIsolatedV2 string `gorm:"not null;default:'-'" json:"pass_isolated_v2"`
	FailIsolatedV1 string `gorm:"not null;default:'-'" json:"fail_isolated_v1"`

	CreatedAt time.Time `json:"created_at"`
}

// NewTriggerRecord creates a record with every outcome column sentineled.
func NewTriggerRecord(project string, candidateID int) *TriggerRecord {
	return &TriggerRecord{
		Project:        project,
		CandidateID:    candidateID,
		FailCountV2:    Sentinel,
		FailClassesV1:  Sentinel,
		FailMethodsV1:  Sentinel,
		PassIsolatedV2: Sentinel,
		FailIsolatedV1: Sentinel,
	}
}
