package att

// Bearer is the external transport contract this package depends on:
// a byte-oriented PDU channel with a mutable security level. Link
// establishment, pairing, and the L2CAP channel itself are owned by
// the caller; AttServer only needs to send and receive whole PDUs and
// to read the link's current security properties.
type Bearer interface {
	// Send transmits one complete PDU. The caller (AttServer) never
	// sends more than Security().EncryptionKeySize-independent MTU
	// bytes; Send must not fragment or combine PDUs.
	Send(pdu []byte) error

	// Security returns the link's current security properties. The
	// bearer is free to change this over time (e.g. after pairing
	// completes); AttServer reads it fresh on every request.
	Security() SecurityProperties

	// Peer identifies the remote device for this bearer.
	Peer() PeerID
}

// BearerHandler receives PDUs from a Bearer. A transport
// implementation (outside this package's scope) calls Deliver for
// every inbound PDU it reads off the wire, in arrival order.
type BearerHandler interface {
	Deliver(pdu []byte)
}
