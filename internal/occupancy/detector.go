package occupancy

import (
	"context"
	"fmt"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
)

// Kind names a class of contended resource.
type Kind string

const (
	KindCourt      Kind = "court"
	KindInstructor Kind = "instructor"
)

// Ref identifies one existing row to leave out of a conflict check, so
// a record being updated does not collide with itself. Source must
// match a registered Source's Name.
type Ref struct {
	Source string
	ID     string
}

// Source reports whether any live (non-cancelled) interval held against
// a resource overlaps iv. One backing table per Source; the detector
// merges them so overlap SQL is never duplicated per caller.
type Source interface {
	Name() string
	Overlapping(ctx context.Context, q db.Querier, resourceID string, iv interval.Interval, excludeID string) (bool, error)
}

// Gate validates that the resource exists and is in an active status.
// When q is a transaction the gate also takes the resource's row lock,
// serializing concurrent conflict checks on the same resource.
type Gate interface {
	LockActive(ctx context.Context, q db.Querier, resourceID string) error
}

// Detector answers "does this interval collide with anything already
// held against this resource", across every table that can occupy it.
type Detector struct {
	gates   map[Kind]Gate
	sources map[Kind][]Source
}

func NewDetector() *Detector {
	return &Detector{
		gates:   make(map[Kind]Gate),
		sources: make(map[Kind][]Source),
	}
}

// RegisterGate sets the active-check/lock gate for a resource kind.
func (d *Detector) RegisterGate(kind Kind, g Gate) {
	d.gates[kind] = g
}

// RegisterSource adds an occupancy table to a resource kind.
func (d *Detector) RegisterSource(kind Kind, s Source) {
	d.sources[kind] = append(d.sources[kind], s)
}

// HasConflict reports whether iv overlaps any live interval for the
// resource. The resource's gate runs first: a missing or inactive
// resource is an error, not a silent false. Excludes skip the row(s)
// currently being updated in their respective source tables.
func (d *Detector) HasConflict(ctx context.Context, q db.Querier, kind Kind, resourceID string, iv interval.Interval, excludes ...Ref) (bool, error) {
	gate, ok := d.gates[kind]
	if !ok {
		return false, fmt.Errorf("occupancy: no gate registered for kind %q", kind)
	}
	if err := gate.LockActive(ctx, q, resourceID); err != nil {
		return false, err
	}

	for _, src := range d.sources[kind] {
		excludeID := ""
		for _, ex := range excludes {
			if ex.Source == src.Name() && ex.ID != "" {
				excludeID = ex.ID
			}
		}

		overlaps, err := src.Overlapping(ctx, q, resourceID, iv, excludeID)
		if err != nil {
			return false, fmt.Errorf("occupancy: source %s: %w", src.Name(), err)
		}
		if overlaps {
			return true, nil
		}
	}

	return false, nil
}
