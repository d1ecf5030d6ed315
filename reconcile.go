package floortrack

import (
	"maps"
	"slices"
	"time"
)

// Reconcile merges a freshly built candidate list with the previously held
// generation, maximising stability: a record whose observable fields are
// unchanged keeps its previous object and version, so downstream consumers
// can treat a version bump (or the emitted event) as the only change signal.
//
// Merge rules per candidate, matched to a previous record by id:
//   - no previous record: install the candidate as-is (new production).
//   - otherwise a changed candidate takes the backend's authoritative fields
//     except that StartTime is kept from the previous record (a displayed
//     start time never regresses due to a backend re-derivation) and the
//     locally estimated PartCount is preserved whenever the previous record
//     had a usable cycle time. Status always takes the candidate's freshly
//     computed value.
//   - fallback-assigned machines are pinned to the previous record's machine
//     so machine-list cardinality changes cannot silently reassign.
func Reconcile(prev, next []*ProductionRecord, now time.Time) ([]*ProductionRecord, []RecordEvent) {
	match := matcher(prev)

	out := make([]*ProductionRecord, 0, len(next))
	var events []RecordEvent

	seen := make(map[string]bool, len(next))
	for i, candidate := range next {
		seen[candidate.ID] = true

		previous := match(i, candidate.ID)
		if previous == nil {
			installed := candidate.clone()
			installed.Version = 1
			out = append(out, installed)
			events = append(events, recordEvent(EventRecordInstalled, installed, now))
			continue
		}

		count := mergedPartCount(previous, candidate)

		if count == previous.PartCount &&
			candidate.Status == previous.Status &&
			candidate.TargetCount == previous.TargetCount &&
			candidate.StartTime.Equal(previous.StartTime) &&
			candidate.Issue == previous.Issue &&
			candidate.PausedAt.Equal(previous.PausedAt) {
			// Nothing a consumer cares about changed: keep the previous
			// object, identity and version included. Display enrichment
			// (telemetry, stage views) still follows the backend.
			out = append(out, refreshDisplayFields(previous, candidate))
			continue
		}

		merged := candidate.clone()
		merged.StartTime = previous.StartTime
		merged.PartCount = count
		if candidate.machineFallback {
			merged.MachineID = previous.MachineID
			merged.MachineName = previous.MachineName
		}
		merged.Version = previous.Version + 1

		out = append(out, merged)
		events = append(events, recordEvent(EventRecordUpdated, merged, now))
	}

	for _, p := range prev {
		if !seen[p.ID] {
			events = append(events, recordEvent(EventRecordRemoved, p, now))
		}
	}

	return out, events
}

// refreshDisplayFields carries the candidate's display-only enrichment (stage
// views, telemetry readings, cycle time and, for explicitly assigned machines,
// the machine fields) onto an otherwise unchanged record. The version is kept
// and no event fires: these fields are not part of the change contract. When
// nothing differs the previous object is returned untouched, identity
// included.
func refreshDisplayFields(previous, candidate *ProductionRecord) *ProductionRecord {
	machineChanged := !candidate.machineFallback &&
		(candidate.MachineID != previous.MachineID || candidate.MachineName != previous.MachineName)

	if candidate.CycleTime == previous.CycleTime &&
		!machineChanged &&
		slices.Equal(candidate.Stages, previous.Stages) &&
		maps.Equal(candidate.Readings, previous.Readings) {
		return previous
	}

	refreshed := previous.clone()
	refreshed.CycleTime = candidate.CycleTime
	refreshed.Stages = slices.Clone(candidate.Stages)
	refreshed.Readings = maps.Clone(candidate.Readings)
	if machineChanged {
		refreshed.MachineID = candidate.MachineID
		refreshed.MachineName = candidate.MachineName
	}
	return refreshed
}

// mergedPartCount applies the "keep client-estimated count" rule: while the
// previous record was extrapolating (or holding a frozen paused/completed
// count) the local value is authoritative; the backend-supplied count only
// wins when the previous record had no usable cycle time.
func mergedPartCount(previous, candidate *ProductionRecord) int {
	switch previous.Status {
	case StatusPaused, StatusCompleted:
		return previous.PartCount
	case StatusActive:
		if previous.CycleTime > 0 {
			return previous.PartCount
		}
	}
	return candidate.PartCount
}

// matcher returns a lookup for previous records. When the previous and next
// id-sets line up positionally the parallel index is used directly; an
// id-keyed map is only consulted on mismatch, avoiding quadratic scans while
// tolerating reordering.
func matcher(prev []*ProductionRecord) func(i int, id string) *ProductionRecord {
	var index map[string]*ProductionRecord

	return func(i int, id string) *ProductionRecord {
		if i < len(prev) && prev[i].ID == id {
			return prev[i]
		}

		if index == nil {
			index = make(map[string]*ProductionRecord, len(prev))
			for _, p := range prev {
				index[p.ID] = p
			}
		}
		return index[id]
	}
}

func recordEvent(typ EventType, r *ProductionRecord, now time.Time) RecordEvent {
	return RecordEvent{
		Type:      typ,
		RecordID:  r.ID,
		Version:   r.Version,
		Status:    r.Status,
		PartCount: r.PartCount,
		At:        now,
	}
}
