package att

import "fmt"

// ReadResultFunc is called exactly once by a ReadHandler to report
// the outcome of an asynchronous read.
type ReadResultFunc func(code ErrorCode, value []byte)

// ReadHandler answers an asynchronous read of a dynamic attribute's
// value. It must invoke result exactly once.
type ReadHandler interface {
	ServeRead(peer PeerID, handle Handle, offset int, result ReadResultFunc)
}

// ReadHandlerFunc adapts a plain function to a ReadHandler.
type ReadHandlerFunc func(peer PeerID, handle Handle, offset int, result ReadResultFunc)

func (f ReadHandlerFunc) ServeRead(peer PeerID, handle Handle, offset int, result ReadResultFunc) {
	f(peer, handle, offset, result)
}

// WriteResultFunc is called at most once by a WriteHandler to report
// the outcome of an asynchronous write. For a write command (no
// response expected) the handler receives a nil WriteResultFunc and
// may ignore the outcome entirely.
type WriteResultFunc func(code ErrorCode)

// WriteHandler answers an asynchronous write of a dynamic
// attribute's value.
type WriteHandler interface {
	ServeWrite(peer PeerID, handle Handle, offset int, value []byte, result WriteResultFunc)
}

// WriteHandlerFunc adapts a plain function to a WriteHandler.
type WriteHandlerFunc func(peer PeerID, handle Handle, offset int, value []byte, result WriteResultFunc)

func (f WriteHandlerFunc) ServeWrite(peer PeerID, handle Handle, offset int, value []byte, result WriteResultFunc) {
	f(peer, handle, offset, value, result)
}

// PeerID identifies the remote device on the other end of a bearer.
// This package treats it as an opaque comparable value; connection
// management and pairing live outside this package.
type PeerID string

// Attribute is a handle-keyed record in the database: a type UUID, a
// static or dynamic value, read/write access requirements, and
// optional async handlers supplied by the owner. An attribute is
// either static (a cached value is set, and writes are disallowed)
// or dynamic (no cached value; the value is obtained via a handler).
type Attribute struct {
	group    *AttributeGrouping
	handle   Handle
	typ      UUID
	readReqs AccessRequirements
	writeReqs AccessRequirements

	value []byte // non-nil iff static

	readHandler  ReadHandler
	writeHandler WriteHandler
}

// Handle returns the attribute's handle.
func (a *Attribute) Handle() Handle { return a.handle }

// Type returns the attribute's type UUID.
func (a *Attribute) Type() UUID { return a.typ }

// Group returns the grouping that owns this attribute.
func (a *Attribute) Group() *AttributeGrouping { return a.group }

// ReadRequirements returns the attribute's read access requirements.
func (a *Attribute) ReadRequirements() AccessRequirements { return a.readReqs }

// WriteRequirements returns the attribute's write access requirements.
func (a *Attribute) WriteRequirements() AccessRequirements { return a.writeReqs }

// Value returns the attribute's cached static value, or nil if the
// attribute is dynamic.
func (a *Attribute) Value() []byte { return a.value }

// IsDynamic reports whether reads/writes must go through a handler.
func (a *Attribute) IsDynamic() bool { return a.value == nil }

// SetValue assigns a static value to the attribute. It panics (a
// programming-error contract violation, not a peer-triggerable
// condition) if the attribute permits writes or already has a value.
func (a *Attribute) SetValue(value []byte) {
	if len(value) == 0 || len(value) > MaxAttributeValueLength {
		panic(fmt.Sprintf("att: SetValue: invalid value length %d", len(value)))
	}
	if a.writeReqs.Allowed() {
		panic("att: SetValue: attribute permits writes and cannot have a static value")
	}
	if a.value != nil {
		panic("att: SetValue: attribute already has a static value")
	}
	a.value = append([]byte(nil), value...)
}

// SetReadHandler installs the handler that answers asynchronous
// reads of this (dynamic) attribute's value.
func (a *Attribute) SetReadHandler(h ReadHandler) { a.readHandler = h }

// SetWriteHandler installs the handler that answers asynchronous
// writes of this (dynamic) attribute's value.
func (a *Attribute) SetWriteHandler(h WriteHandler) { a.writeHandler = h }

// ReadAsync initiates an asynchronous read. It returns false without
// calling result if the attribute has a static value, has no read
// handler, or its read requirements forbid all access.
func (a *Attribute) ReadAsync(peer PeerID, offset int, result ReadResultFunc) bool {
	if a.value != nil || a.readHandler == nil || !a.readReqs.Allowed() {
		return false
	}
	a.readHandler.ServeRead(peer, a.handle, offset, result)
	return true
}

// WriteAsync initiates an asynchronous write. It returns false
// without calling result if the attribute has a static value, has no
// write handler, or its write requirements forbid all access. A nil
// result signals a "write command": the handler may ignore it.
func (a *Attribute) WriteAsync(peer PeerID, offset int, value []byte, result WriteResultFunc) bool {
	if a.value != nil || a.writeHandler == nil || !a.writeReqs.Allowed() {
		return false
	}
	a.writeHandler.ServeWrite(peer, a.handle, offset, value, result)
	return true
}
