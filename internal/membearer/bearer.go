// Package membearer provides an in-memory att.Bearer pair connected
// by a net.Pipe, standing in for a real L2CAP channel so the att/gatt
// stack can be exercised without BLE hardware. L2CAP itself frames
// PDUs at the channel layer; this package reproduces just enough of
// that framing (a 2-byte little-endian length prefix) to carry whole
// PDUs over the underlying byte stream.
package membearer

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/nabeelsameer/blegatt/att"
)

// Bearer is one end of an in-memory att.Bearer pair.
type Bearer struct {
	conn net.Conn
	self att.PeerID

	mu  sync.Mutex
	sec att.SecurityProperties

	handler att.BearerHandler
}

// NewPair creates two connected bearers: serverSide, whose Peer()
// reports peer (the simulated remote device), and clientSide, whose
// Peer() reports "host". Both start with the given security
// properties; use SetSecurity to simulate pairing completing later.
func NewPair(peer att.PeerID, security att.SecurityProperties) (serverSide, clientSide *Bearer) {
	a, b := net.Pipe()
	serverSide = &Bearer{conn: a, self: peer, sec: security}
	clientSide = &Bearer{conn: b, self: "host", sec: security}
	return serverSide, clientSide
}

// SetHandler installs h as the recipient of inbound PDUs and starts
// the background read loop. It must be called at most once.
func (b *Bearer) SetHandler(h att.BearerHandler) {
	b.handler = h
	go b.readLoop()
}

func (b *Bearer) readLoop() {
	r := bufio.NewReader(b.conn)
	for {
		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return
		}
		pdu := make([]byte, binary.LittleEndian.Uint16(lenBuf[:]))
		if _, err := io.ReadFull(r, pdu); err != nil {
			return
		}
		b.handler.Deliver(pdu)
	}
}

// Send implements att.Bearer.
func (b *Bearer) Send(pdu []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(pdu)))
	if _, err := b.conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := b.conn.Write(pdu)
	return err
}

// Security implements att.Bearer.
func (b *Bearer) Security() att.SecurityProperties {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sec
}

// SetSecurity updates the link's reported security properties, e.g.
// after simulating pairing.
func (b *Bearer) SetSecurity(sec att.SecurityProperties) {
	b.mu.Lock()
	b.sec = sec
	b.mu.Unlock()
}

// Peer implements att.Bearer.
func (b *Bearer) Peer() att.PeerID { return b.self }

// Close tears down the underlying pipe, ending both read loops.
func (b *Bearer) Close() error { return b.conn.Close() }
