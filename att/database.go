package att

import "sort"

// AttributeDatabase is an ordered collection of attribute groupings,
// each occupying a contiguous handle range within
// [rangeStart, rangeEnd]. Groupings are kept sorted by start handle;
// their ranges never overlap, and removal may leave gaps that later
// allocations can reuse.
//
// AttributeDatabase is not safe for concurrent use: every method is
// expected to run on the single GATT dispatcher thread described in
// §5, the same discipline a single-threaded l2cap event loop assumes
// for its connection state.
type AttributeDatabase struct {
	rangeStart Handle
	rangeEnd   Handle
	groupings  []*AttributeGrouping // sorted by StartHandle
}

// NewDatabase creates a database spanning [rangeStart, rangeEnd]
// inclusive. Multiple databases may coexist, segmenting the handle
// space (e.g. 16-bit-UUID services in one range, 128-bit in another)
// as recommended by the GATT spec (Vol 3, Part G, §3.1).
func NewDatabase(rangeStart, rangeEnd Handle) *AttributeDatabase {
	if rangeStart == HandleInvalid {
		rangeStart = HandleMin
	}
	return &AttributeDatabase{rangeStart: rangeStart, rangeEnd: rangeEnd}
}

// RangeStart returns the lowest handle this database may allocate.
func (db *AttributeDatabase) RangeStart() Handle { return db.rangeStart }

// RangeEnd returns the highest handle this database may allocate.
func (db *AttributeDatabase) RangeEnd() Handle { return db.rangeEnd }

// Groupings returns the database's groupings, sorted by start
// handle. The slice is owned by the database; callers must not
// retain it across a mutation.
func (db *AttributeDatabase) Groupings() []*AttributeGrouping { return db.groupings }

// NewGrouping allocates the lowest handle range of size
// (attrCount + 1) that fits between existing groupings and within
// the database's overall range, and returns a pointer to the new,
// not-yet-complete grouping. Returns nil if no gap is large enough.
func (db *AttributeDatabase) NewGrouping(groupType UUID, attrCount int, declValue []byte) *AttributeGrouping {
	size := Handle(attrCount + 1)
	if size == 0 || int(db.rangeStart)+attrCount > int(HandleMax) {
		return nil
	}

	cursor := db.rangeStart
	insertAt := len(db.groupings)
	for i, g := range db.groupings {
		if gapFits(cursor, int(g.StartHandle()), size) {
			insertAt = i
			break
		}
		cursor = g.EndHandle() + 1
	}
	if insertAt == len(db.groupings) {
		// Gap after the last grouping, up to rangeEnd. Computed in int
		// since rangeEnd may be HandleMax, where rangeEnd+1 would wrap
		// a Handle (uint16) to 0.
		if !gapFits(cursor, int(db.rangeEnd)+1, size) {
			return nil
		}
	}

	g := newAttributeGrouping(groupType, cursor, attrCount, declValue)
	db.groupings = append(db.groupings, nil)
	copy(db.groupings[insertAt+1:], db.groupings[insertAt:])
	db.groupings[insertAt] = g
	return g
}

// gapFits reports whether a grouping of the given size can be placed
// starting at cursor without reaching upperBound (exclusive). upperBound
// is an int, not a Handle, since the caller may need to pass
// HandleMax+1 (0x10000) to represent the database's closed range
// [rangeStart, rangeEnd] ending at HandleMax without wrapping.
func gapFits(cursor Handle, upperBound int, size Handle) bool {
	if int(cursor) >= upperBound {
		return false
	}
	return upperBound-int(cursor) >= int(size)
}

// RemoveGrouping erases the grouping whose start handle matches
// exactly. Returns whether one was removed; its handle range becomes
// available for reuse by a later NewGrouping.
func (db *AttributeDatabase) RemoveGrouping(startHandle Handle) bool {
	for i, g := range db.groupings {
		if g.StartHandle() == startHandle {
			db.groupings = append(db.groupings[:i], db.groupings[i+1:]...)
			return true
		}
	}
	return false
}

// FindAttribute returns the attribute at handle, or nil if no
// complete, active grouping contains it.
func (db *AttributeDatabase) FindAttribute(handle Handle) *Attribute {
	i := sort.Search(len(db.groupings), func(i int) bool {
		return db.groupings[i].EndHandle() >= handle
	})
	if i == len(db.groupings) {
		return nil
	}
	g := db.groupings[i]
	if handle < g.StartHandle() || handle > g.EndHandle() {
		return nil
	}
	if !g.Complete() || !g.Active() {
		return nil
	}
	return g.attributeAt(handle)
}

// GetIterator returns a closure that yields successive attributes in
// handle order within [start, end], skipping incomplete or inactive
// groupings. If groupsOnly is set, only declaration attributes
// (index 0 of each grouping) are yielded. If typeFilter is non-nil,
// only attributes whose type equals it are yielded. The returned
// closure reports (nil, false) once exhausted; it must not be used
// after the database is mutated.
func (db *AttributeDatabase) GetIterator(start, end Handle, typeFilter *UUID, groupsOnly bool) func() (*Attribute, bool) {
	groupIdx := 0
	attrIdx := 0
	return func() (*Attribute, bool) {
		for groupIdx < len(db.groupings) {
			g := db.groupings[groupIdx]
			if !g.Complete() || !g.Active() || g.StartHandle() > end || g.EndHandle() < start {
				groupIdx++
				attrIdx = 0
				continue
			}
			for attrIdx < len(g.attrs) {
				idx := attrIdx
				attrIdx++
				if groupsOnly && idx != 0 {
					continue
				}
				a := &g.attrs[idx]
				if a.handle < start || a.handle > end {
					continue
				}
				if typeFilter != nil && !a.typ.Equal(*typeFilter) {
					continue
				}
				return a, true
			}
			groupIdx++
			attrIdx = 0
		}
		return nil, false
	}
}

// WriteCallback reports the outcome of ExecuteWriteQueue. handle is
// meaningless when code is ErrNoError.
type WriteCallback func(handle Handle, code ErrorCode)

// ExecuteWriteQueue commits a PrepareWriteQueue as a single atomic
// transaction, per §4.3:
//
//  1. Snapshot-check every queued entry: it must resolve to an
//     active dynamic attribute that permits writes, whose write
//     requirements are satisfied by security, and whose value length
//     is within bounds.
//  2. If any check fails, report that entry via callback exactly
//     once and drop the rest of the queue without dispatching it.
//  3. Otherwise dispatch every entry to its attribute's write handler
//     in queue order, without waiting for individual responses.
//  4. callback fires once: with ErrNoError once every handler has
//     reported success, or with the first (handle, code) reported by
//     a handler. Late responses after an error are ignored.
func (db *AttributeDatabase) ExecuteWriteQueue(peer PeerID, queue *PrepareWriteQueue, security SecurityProperties, callback WriteCallback) {
	entries := queue.Entries()
	for _, e := range entries {
		a := db.FindAttribute(e.Handle)
		if a == nil || !a.IsDynamic() || !a.writeReqs.Allowed() {
			callback(e.Handle, ErrWriteNotPermitted)
			queue.Clear()
			return
		}
		if code := a.writeReqs.CheckWrite(security); code != ErrNoError {
			callback(e.Handle, code)
			queue.Clear()
			return
		}
		if len(e.Value) > MaxAttributeValueLength {
			callback(e.Handle, ErrInvalidAttrValueLength)
			queue.Clear()
			return
		}
	}

	if len(entries) == 0 {
		queue.Clear()
		callback(HandleInvalid, ErrNoError)
		return
	}

	pending := len(entries)
	done := false
	for _, e := range entries {
		e := e
		a := db.FindAttribute(e.Handle)
		reported := false
		ok := a.WriteAsync(peer, e.Offset, e.Value, func(code ErrorCode) {
			if done || reported {
				return
			}
			reported = true
			pending--
			if code != ErrNoError {
				done = true
				callback(e.Handle, code)
				return
			}
			if pending == 0 {
				done = true
				callback(HandleInvalid, ErrNoError)
			}
		})
		if !ok && !done {
			done = true
			callback(e.Handle, ErrUnlikely)
		}
	}
	queue.Clear()
}
