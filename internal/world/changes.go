package world

type ChangeReason string

const (
	ReasonPlaced    ChangeReason = "placed"
	ReasonWater     ChangeReason = "water"
	ReasonCollapse  ChangeReason = "collapse"
	ReasonExplosion ChangeReason = "explosion"
)

var reasonPriority = map[ChangeReason]int{
	ReasonWater:     1,
	ReasonCollapse:  2,
	ReasonPlaced:    3,
	ReasonExplosion: 4,
}

// Change captures the before/after state of a voxel mutation.
type Change struct {
	Loc    AbsoluteLocation
	Before Voxel
	After  Voxel
	Reason ChangeReason
}

// ChangeLog accumulates voxel mutations between drains. Repeated changes to the
// same location collapse into one entry that keeps the earliest Before and the
// most significant reason.
type ChangeLog struct {
	changes map[AbsoluteLocation]int
	entries []Change
	chunks  map[ChunkCoord]struct{}
}

func NewChangeLog() *ChangeLog {
	return &ChangeLog{
		changes: make(map[AbsoluteLocation]int),
		chunks:  make(map[ChunkCoord]struct{}),
	}
}

func (l *ChangeLog) Add(change Change) {
	if l.changes == nil {
		l.changes = make(map[AbsoluteLocation]int)
	}
	if l.chunks == nil {
		l.chunks = make(map[ChunkCoord]struct{})
	}
	l.chunks[ChunkCoordOf(change.Loc)] = struct{}{}
	if idx, ok := l.changes[change.Loc]; ok {
		existing := l.entries[idx]
		change.Before = existing.Before
		if reasonPriority[existing.Reason] > reasonPriority[change.Reason] {
			change.Reason = existing.Reason
		}
		l.entries[idx] = change
		return
	}
	l.changes[change.Loc] = len(l.entries)
	l.entries = append(l.entries, change)
}

func (l *ChangeLog) Len() int { return len(l.entries) }

// Drain returns the accumulated changes in first-touch order and resets the
// log. Entries whose final voxel equals the original are dropped.
func (l *ChangeLog) Drain() []Change {
	if len(l.entries) == 0 {
		return nil
	}
	out := make([]Change, 0, len(l.entries))
	for _, c := range l.entries {
		if c.Before == c.After {
			continue
		}
		out = append(out, c)
	}
	l.entries = nil
	l.changes = make(map[AbsoluteLocation]int)
	l.chunks = make(map[ChunkCoord]struct{})
	return out
}

// DirtyChunks lists the chunks touched since the last drain.
func (l *ChangeLog) DirtyChunks() []ChunkCoord {
	if len(l.chunks) == 0 {
		return nil
	}
	out := make([]ChunkCoord, 0, len(l.chunks))
	for coord := range l.chunks {
		out = append(out, coord)
	}
	return out
}
