package att

import "encoding/binary"

// pduWriter accumulates an outbound PDU, truncating writes that
// would exceed the negotiated MTU so callers never have to
// double-check capacity themselves. It mirrors the l2capWriter idiom
// (bufio-style "fit" helpers), reworked around a plain byte slice
// since this package has no l2cap shim to size against.
type pduWriter struct {
	mtu int
	buf []byte
}

func newPDUWriter(mtu int) *pduWriter {
	return &pduWriter{mtu: mtu, buf: make([]byte, 0, mtu)}
}

func (w *pduWriter) Len() int { return len(w.buf) }

// Fits reports whether n more bytes would still fit within the MTU.
func (w *pduWriter) Fits(n int) bool { return len(w.buf)+n <= w.mtu }

func (w *pduWriter) WriteByte(b byte) bool {
	if !w.Fits(1) {
		return false
	}
	w.buf = append(w.buf, b)
	return true
}

func (w *pduWriter) WriteUint16(v uint16) bool {
	if !w.Fits(2) {
		return false
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return true
}

func (w *pduWriter) WriteUUID(u UUID) bool {
	b := u.Bytes()
	if !w.Fits(len(b)) {
		return false
	}
	w.buf = append(w.buf, b...)
	return true
}

// WriteBytes appends as much of b as fits and returns the number of
// bytes actually written.
func (w *pduWriter) WriteBytes(b []byte) int {
	avail := w.mtu - len(w.buf)
	if avail <= 0 {
		return 0
	}
	if avail > len(b) {
		avail = len(b)
	}
	w.buf = append(w.buf, b[:avail]...)
	return avail
}

func (w *pduWriter) Bytes() []byte { return w.buf }

// readUint16 reads a little-endian uint16 from b at offset off.
func readUint16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }

func putUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// errorResponse builds an ErrorResponse PDU (opcode 0x01). A code
// outside the defined set (including ErrNoError), such as one reported
// by a handler, is sent as ErrUnlikely.
func errorResponse(reqOpcode Opcode, handle Handle, code ErrorCode) []byte {
	if code == ErrNoError || !code.valid() {
		code = ErrUnlikely
	}
	b := make([]byte, 5)
	b[0] = byte(OpError)
	b[1] = byte(reqOpcode)
	binary.LittleEndian.PutUint16(b[2:], uint16(handle))
	b[4] = byte(code)
	return b
}
