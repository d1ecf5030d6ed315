package floortrack

// Status is the derived status of a production record. It is recomputed from
// the owning work order's stages on every build pass and never persisted
// backend-side.
type Status int

const (
	StatusUnknown   Status = 0
	StatusActive    Status = 1
	StatusPaused    Status = 2
	StatusCompleted Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// deriveStatus applies the status invariant: active iff some stage is in
// progress, completed only when every stage is done, else paused.
func deriveStatus(stages []Stage) Status {
	if len(stages) == 0 {
		return StatusUnknown
	}

	var done int
	for _, s := range stages {
		if s.Status == StageInProgress {
			return StatusActive
		}
		if s.Status == StageDone {
			done++
		}
	}

	if done == len(stages) {
		return StatusCompleted
	}

	return StatusPaused
}
