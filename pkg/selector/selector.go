// Package selector enumerates the candidate ids eligible for discovery:
// prerequisite-complete, not yet recorded, optionally restricted to a
// single id or closed interval.
package selector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fault-lab/triggeroor/pkg/faults"
	"github.com/fault-lab/triggeroor/pkg/store"
)

// Range is a closed candidate-id interval. A single id is {id, id}.
type Range struct {
	Min int
	Max int
}

// Contains reports whether id lies in the closed interval.
func (r *Range) Contains(id int) bool {
	return id >= r.Min && id <= r.Max
}

// ParseRange parses "7" or "2:4" into a Range.
func ParseRange(s string) (*Range, error) {
	if s == "" {
		return nil, nil
	}

	lo, hi, found := strings.Cut(s, ":")
	if !found {
		hi = lo
	}

	minID, err := strconv.Atoi(lo)
	if err != nil {
		return nil, fmt.Errorf("invalid candidate id %q: %w", lo, err)
	}

	maxID, err := strconv.Atoi(hi)
	if err != nil {
		return nil, fmt.Errorf("invalid candidate id %q: %w", hi, err)
	}

	if maxID < minID {
		return nil, fmt.Errorf("invalid range %q: max below min", s)
	}

	return &Range{Min: minID, Max: maxID}, nil
}

// Selector picks the candidate ids a discovery batch will process.
type Selector interface {
	// Select returns eligible ids in upstream (ascending id) order. A
	// project with no candidate rows at all is a configuration fault.
	Select(ctx context.Context, project string, rng *Range) ([]int, error)
}

// NewSelector creates a Selector reading from the given store.
func NewSelector(log logrus.FieldLogger, st store.Store) Selector {
	return &selector{
		log:   log.WithField("component", "selector"),
		store: st,
	}
}

type selector struct {
	log   logrus.FieldLogger
	store store.Store
}

// Ensure interface compliance.
var _ Selector = (*selector)(nil)

func (s *selector) Select(ctx context.Context, project string, rng *Range) ([]int, error) {
	known, err := s.store.HasProject(ctx, project)
	if err != nil {
		return nil, err
	}

	if !known {
		return nil, &faults.ConfigError{Msg: "unknown project " + project}
	}

	ids, err := s.store.ListPrereqCompleteIDs(ctx, project)
	if err != nil {
		return nil, err
	}

	recordedIDs, err := s.store.ListRecordedIDs(ctx, project)
	if err != nil {
		return nil, err
	}

	recorded := make(map[int]struct{}, len(recordedIDs))
	for _, id := range recordedIDs {
		recorded[id] = struct{}{}
	}

	selected := make([]int, 0, len(ids))

	for _, id := range ids {
		if rng != nil && !rng.Contains(id) {
			continue
		}

		if _, done := recorded[id]; done {
			continue
		}

		selected = append(selected, id)
	}

	s.log.WithFields(logrus.Fields{
		"project":   project,
		"eligible":  len(ids),
		"recorded":  len(recordedIDs),
		"selected":  len(selected),
		"has_range": rng != nil,
	}).Info("Candidates selected")

	return selected, nil
}
