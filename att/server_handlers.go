package att

import "bytes"

// This file implements the per-opcode request handlers dispatched
// from Deliver, one per PDU type in §6.1. Each either returns a
// complete response PDU directly, or (when the attribute may require
// an asynchronous handler) takes the reply continuation itself.

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// handleExchangeMTU negotiates ATT_MTU: the connection uses the
// smaller of the client's requested rx MTU and this server's
// preferred MTU, floored at MinMTU. The response always reports the
// server's own preferred MTU, regardless of what was negotiated.
func (s *Server) handleExchangeMTU(body []byte) []byte {
	if len(body) != 2 {
		return errorResponse(OpExchangeMTUReq, HandleInvalid, ErrInvalidPDU)
	}
	clientRxMTU := int(readUint16(body, 0))
	s.mtu = max(MinMTU, min(clientRxMTU, s.preferredMTU))

	w := newPDUWriter(3)
	w.WriteByte(byte(OpExchangeMTUResp))
	w.WriteUint16(uint16(s.preferredMTU))
	return w.Bytes()
}

// handleFindInfo returns the (handle, type) pairs in [start, end],
// using the uniform 16-bit or 128-bit format of the first match and
// stopping before any pair that would change that format.
func (s *Server) handleFindInfo(body []byte) []byte {
	if len(body) != 4 {
		return errorResponse(OpFindInfoReq, HandleInvalid, ErrInvalidPDU)
	}
	start := Handle(readUint16(body, 0))
	end := Handle(readUint16(body, 2))
	if start == HandleInvalid || start > end {
		return errorResponse(OpFindInfoReq, start, ErrInvalidHandle)
	}

	next := s.db.GetIterator(start, end, nil, false)
	w := newPDUWriter(s.mtu)
	w.WriteByte(byte(OpFindInfoResp))
	w.WriteByte(0) // patched below once the uniform format is known
	formatByte := -1
	count := 0
	for {
		a, ok := next()
		if !ok {
			break
		}
		uuidLen := a.Type().Len()
		var format int
		switch uuidLen {
		case 2:
			format = 1
		case 16:
			format = 2
		}
		if format == 0 {
			// 32-bit types have no Find Information format code; stop
			// here rather than misreport one as 16-bit.
			break
		}
		if formatByte == -1 {
			formatByte = format
		} else if format != formatByte {
			break
		}
		entryLen := 2 + uuidLen
		if !w.Fits(entryLen) {
			break
		}
		w.WriteUint16(uint16(a.Handle()))
		w.WriteUUID(a.Type())
		count++
	}
	if count == 0 {
		return errorResponse(OpFindInfoReq, start, ErrAttributeNotFound)
	}
	pdu := w.Bytes()
	pdu[1] = byte(formatByte)
	return pdu
}

// handleFindByTypeValue returns (handle, group-end-handle) pairs for
// attributes whose static value equals the requested value and whose
// type equals the requested type. Dynamic values never match, since
// matching would require reading every candidate synchronously.
func (s *Server) handleFindByTypeValue(body []byte) []byte {
	if len(body) < 6 {
		return errorResponse(OpFindByTypeReq, HandleInvalid, ErrInvalidPDU)
	}
	start := Handle(readUint16(body, 0))
	end := Handle(readUint16(body, 2))
	if start == HandleInvalid || start > end {
		return errorResponse(OpFindByTypeReq, start, ErrInvalidHandle)
	}
	typ := uuidFromLE(body[4:6])
	value := body[6:]

	next := s.db.GetIterator(start, end, &typ, false)
	w := newPDUWriter(s.mtu)
	w.WriteByte(byte(OpFindByTypeResp))
	count := 0
	for {
		a, ok := next()
		if !ok {
			break
		}
		if a.IsDynamic() || !bytes.Equal(a.Value(), value) {
			continue
		}
		if !w.Fits(4) {
			break
		}
		w.WriteUint16(uint16(a.Handle()))
		w.WriteUint16(uint16(a.Group().EndHandle()))
		count++
	}
	if count == 0 {
		return errorResponse(OpFindByTypeReq, start, ErrAttributeNotFound)
	}
	return w.Bytes()
}

// handleReadByGroupType returns (start, end, value) triples for
// grouping declarations of the requested group type, restricted to
// PrimaryService and SecondaryService as the only group types this
// database defines.
func (s *Server) handleReadByGroupType(body []byte) []byte {
	start, end, typ, ok := parseHandleRangeType(body)
	if !ok {
		return errorResponse(OpReadByGroupReq, HandleInvalid, ErrInvalidPDU)
	}
	if start == HandleInvalid || start > end {
		return errorResponse(OpReadByGroupReq, start, ErrInvalidHandle)
	}
	if !typ.Equal(UUIDPrimaryService) && !typ.Equal(UUIDSecondaryService) {
		return errorResponse(OpReadByGroupReq, start, ErrUnsupportedGroupType)
	}

	next := s.db.GetIterator(start, end, &typ, true)
	w := newPDUWriter(s.mtu)
	w.WriteByte(byte(OpReadByGroupResp))
	w.WriteByte(0) // patched below once the uniform entry length is known
	valueLen := -1
	count := 0
	for {
		a, ok := next()
		if !ok {
			break
		}
		value := a.Group().DeclarationValue()
		if valueLen == -1 {
			valueLen = len(value)
		} else if len(value) != valueLen {
			break
		}
		entryLen := 4 + valueLen
		if !w.Fits(entryLen) {
			break
		}
		w.WriteUint16(uint16(a.Group().StartHandle()))
		w.WriteUint16(uint16(a.Group().EndHandle()))
		w.WriteBytes(value)
		count++
	}
	if count == 0 {
		return errorResponse(OpReadByGroupReq, start, ErrAttributeNotFound)
	}
	pdu := w.Bytes()
	pdu[1] = byte(valueLen + 4)
	return pdu
}

// handleReadByType returns (handle, value) pairs for attributes of
// the requested type. If the first matching attribute is dynamic, its
// value is fetched through its read handler and returned alone;
// otherwise matching static attributes accumulate until one with a
// different length is found (mirroring the uniform-length rule Read
// By Group Type also follows).
func (s *Server) handleReadByType(body []byte, reply func([]byte)) {
	start, end, typ, ok := parseHandleRangeType(body)
	if !ok {
		reply(errorResponse(OpReadByTypeReq, HandleInvalid, ErrInvalidPDU))
		return
	}
	if start == HandleInvalid || start > end {
		reply(errorResponse(OpReadByTypeReq, start, ErrInvalidHandle))
		return
	}

	sec := s.bearer.Security()
	next := s.db.GetIterator(start, end, &typ, false)

	var entries []readByTypeEntry
	idx := 0
	for {
		a, ok := next()
		if !ok {
			break
		}
		code := a.ReadRequirements().CheckRead(sec)
		if code != ErrNoError {
			if idx == 0 {
				reply(errorResponse(OpReadByTypeReq, start, code))
				return
			}
			break
		}
		if a.IsDynamic() {
			if idx == 0 {
				h := a.Handle()
				peer := s.bearer.Peer()
				if !a.ReadAsync(peer, 0, func(code ErrorCode, value []byte) {
					if code != ErrNoError {
						reply(errorResponse(OpReadByTypeReq, start, code))
						return
					}
					reply(buildReadByTypeResponse([]readByTypeEntry{{h, value}}, s.mtu))
				}) {
					reply(errorResponse(OpReadByTypeReq, start, ErrUnlikely))
				}
				return
			}
			break
		}
		if len(entries) > 0 && len(a.Value()) != len(entries[0].value) {
			break
		}
		entries = append(entries, readByTypeEntry{a.Handle(), a.Value()})
		idx++
	}
	if len(entries) == 0 {
		reply(errorResponse(OpReadByTypeReq, start, ErrAttributeNotFound))
		return
	}
	reply(buildReadByTypeResponse(entries, s.mtu))
}

type readByTypeEntry struct {
	handle Handle
	value  []byte
}

func buildReadByTypeResponse(entries []readByTypeEntry, mtu int) []byte {
	valueLen := len(entries[0].value)
	w := newPDUWriter(mtu)
	w.WriteByte(byte(OpReadByTypeResp))
	w.WriteByte(byte(2 + valueLen))
	for _, e := range entries {
		if !w.Fits(2 + valueLen) {
			break
		}
		w.WriteUint16(uint16(e.handle))
		w.WriteBytes(e.value)
	}
	return w.Bytes()
}

// handleRead answers a Read Request or Read Blob Request.
func (s *Server) handleRead(op Opcode, body []byte, reply func([]byte)) {
	wantLen := 2
	if op == OpReadBlobReq {
		wantLen = 4
	}
	if len(body) != wantLen {
		reply(errorResponse(op, HandleInvalid, ErrInvalidPDU))
		return
	}
	handle := Handle(readUint16(body, 0))
	offset := 0
	if op == OpReadBlobReq {
		offset = int(readUint16(body, 2))
	}
	if handle == HandleInvalid {
		reply(errorResponse(op, handle, ErrInvalidHandle))
		return
	}
	a := s.db.FindAttribute(handle)
	if a == nil {
		reply(errorResponse(op, handle, ErrInvalidHandle))
		return
	}
	if code := a.ReadRequirements().CheckRead(s.bearer.Security()); code != ErrNoError {
		reply(errorResponse(op, handle, code))
		return
	}

	respOp := OpReadResp
	if op == OpReadBlobReq {
		respOp = OpReadBlobResp
	}

	if v := a.Value(); v != nil {
		if op == OpReadBlobReq && offset >= len(v) {
			reply(errorResponse(op, handle, ErrInvalidOffset))
			return
		}
		reply(buildValueResponse(respOp, v[offset:], s.mtu))
		return
	}

	if !a.ReadAsync(s.bearer.Peer(), offset, func(code ErrorCode, value []byte) {
		if code != ErrNoError {
			reply(errorResponse(op, handle, code))
			return
		}
		reply(buildValueResponse(respOp, value, s.mtu))
	}) {
		reply(errorResponse(op, handle, ErrUnlikely))
	}
}

func buildValueResponse(op Opcode, value []byte, mtu int) []byte {
	w := newPDUWriter(mtu)
	w.WriteByte(byte(op))
	w.WriteBytes(value)
	return w.Bytes()
}

// handleWrite answers a Write Request or, when reply is nil, a Write
// Command: the latter never produces a response and drops any error
// silently, per §4.4.2.
func (s *Server) handleWrite(op Opcode, body []byte, reply func([]byte)) {
	noResp := reply == nil
	fail := func(handle Handle, code ErrorCode) {
		if !noResp {
			reply(errorResponse(op, handle, code))
		}
	}
	if len(body) < 2 {
		fail(HandleInvalid, ErrInvalidPDU)
		return
	}
	handle := Handle(readUint16(body, 0))
	value := body[2:]
	if handle == HandleInvalid {
		fail(handle, ErrInvalidHandle)
		return
	}
	if len(value) > MaxAttributeValueLength {
		fail(handle, ErrInvalidAttrValueLength)
		return
	}
	a := s.db.FindAttribute(handle)
	if a == nil {
		fail(handle, ErrInvalidHandle)
		return
	}
	if !a.IsDynamic() {
		fail(handle, ErrWriteNotPermitted)
		return
	}
	if code := a.WriteRequirements().CheckWrite(s.bearer.Security()); code != ErrNoError {
		fail(handle, code)
		return
	}

	var result WriteResultFunc
	if !noResp {
		result = func(code ErrorCode) {
			if code != ErrNoError {
				reply(errorResponse(op, handle, code))
				return
			}
			reply([]byte{byte(OpWriteResp)})
		}
	}
	if !a.WriteAsync(s.bearer.Peer(), 0, value, result) {
		fail(handle, ErrUnlikely)
	}
}

// handlePrepareWrite stages an entry for a later Execute Write
// Request. Validation beyond "does a handle fit in the PDU" is
// deferred to ExecuteWriteQueue, since the database may change
// between the prepare and the execute.
func (s *Server) handlePrepareWrite(body []byte) []byte {
	if len(body) < 4 {
		return errorResponse(OpPrepWriteReq, HandleInvalid, ErrInvalidPDU)
	}
	handle := Handle(readUint16(body, 0))
	offset := int(readUint16(body, 2))
	value := body[4:]
	if handle == HandleInvalid {
		return errorResponse(OpPrepWriteReq, handle, ErrInvalidHandle)
	}
	if !s.prepareQueue.Enqueue(PreparedWrite{Handle: handle, Offset: offset, Value: append([]byte(nil), value...)}) {
		return errorResponse(OpPrepWriteReq, handle, ErrPrepareQueueFull)
	}

	w := newPDUWriter(s.mtu)
	w.WriteByte(byte(OpPrepWriteResp))
	w.WriteUint16(uint16(handle))
	w.WriteUint16(uint16(offset))
	w.WriteBytes(value)
	return w.Bytes()
}

// handleExecuteWrite commits (flag 0x01) or discards (flag 0x00) the
// prepare-write queue.
func (s *Server) handleExecuteWrite(body []byte, reply func([]byte)) {
	if len(body) != 1 {
		reply(errorResponse(OpExecWriteReq, HandleInvalid, ErrInvalidPDU))
		return
	}
	switch body[0] {
	case 0x00:
		s.prepareQueue.Clear()
		reply([]byte{byte(OpExecWriteResp)})
	case 0x01:
		s.db.ExecuteWriteQueue(s.bearer.Peer(), s.prepareQueue, s.bearer.Security(), func(handle Handle, code ErrorCode) {
			if code != ErrNoError {
				reply(errorResponse(OpExecWriteReq, handle, code))
				return
			}
			reply([]byte{byte(OpExecWriteResp)})
		})
	default:
		reply(errorResponse(OpExecWriteReq, HandleInvalid, ErrInvalidPDU))
	}
}

// parseHandleRangeType parses the common
// (start Handle, end Handle, type UUID) prefix shared by Read By Type
// and Read By Group Type requests, where type is either a 16-bit or a
// 128-bit UUID.
func parseHandleRangeType(body []byte) (start, end Handle, typ UUID, ok bool) {
	if len(body) != 6 && len(body) != 20 {
		return 0, 0, UUID{}, false
	}
	start = Handle(readUint16(body, 0))
	end = Handle(readUint16(body, 2))
	typ = uuidFromLE(body[4:])
	return start, end, typ, true
}
