package att

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrIndicationTimeout is delivered to an indication's completion
// callback when the peer never sends a Confirmation within
// TransactionTimeout.
var ErrIndicationTimeout = NewError(ErrUnlikely)

// ErrLinkClosed is delivered to any outstanding indication's
// completion callback when the server is closed with requests still
// pending.
var ErrLinkClosed = NewError(ErrUnlikely)

// Server is a per-connection ATT state machine: it consumes inbound
// PDUs delivered via Deliver, authorizes them against the bearer's
// security properties, queries a Database, and emits response,
// notification, and indication PDUs on the bearer. One Server serves
// exactly one Bearer.
//
// Per §5, the dispatcher is logically single-threaded: Deliver is
// expected to be invoked serially from one goroutine. The only
// concurrency this type introduces is the indication-confirmation
// timer, guarded by mu.
type Server struct {
	bearer Bearer
	db     *AttributeDatabase
	log    logrus.FieldLogger

	mtu          int
	preferredMTU int

	prepareQueue *PrepareWriteQueue

	// generation increments on Close, so handler callbacks captured
	// before teardown become no-ops: the "weak self-reference"
	// pattern from §9, reworked as a counter check instead of a
	// reference-counted weak pointer.
	generation int

	mu      sync.Mutex
	ind     indicationState
	indQ    []queuedIndication
	closed  bool
}

type indicationState struct {
	pending  bool
	handle   Handle
	callback func(error)
	timer    *time.Timer
}

type queuedIndication struct {
	handle   Handle
	value    []byte
	callback func(error)
}

// NewServer constructs a Server bound to bearer and db. preferredMTU
// is the server's own rx MTU, reported verbatim in every Exchange
// MTU Response regardless of what the client requests.
func NewServer(bearer Bearer, db *AttributeDatabase, preferredMTU int, log logrus.FieldLogger) *Server {
	if preferredMTU < MinMTU {
		preferredMTU = MinMTU
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		bearer:       bearer,
		db:           db,
		log:          log.WithField("bearer", bearer.Peer()),
		mtu:          MinMTU,
		preferredMTU: preferredMTU,
		prepareQueue: NewPrepareWriteQueue(PrepareQueueMaxCapacity),
	}
}

// MTU returns the currently negotiated ATT_MTU.
func (s *Server) MTU() int { return s.mtu }

// Close cancels all pending transactions: an outstanding indication's
// callback fires with ErrLinkClosed, and the prepare-write queue is
// discarded. Handlers already in flight complete normally, but their
// callbacks become no-ops.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.generation++
	cb, timer := s.drainIndicationLocked()
	queued := s.indQ
	s.indQ = nil
	s.prepareQueue.Clear()
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if cb != nil {
		cb(ErrLinkClosed)
	}
	for _, q := range queued {
		if q.callback != nil {
			q.callback(ErrLinkClosed)
		}
	}
}

func (s *Server) drainIndicationLocked() (func(error), *time.Timer) {
	if !s.ind.pending {
		return nil, nil
	}
	cb, timer := s.ind.callback, s.ind.timer
	s.ind = indicationState{}
	return cb, timer
}

// Deliver handles one inbound PDU, per the opcode dispatch described
// in §4.4. It never blocks: reads/writes that require an async
// handler reply later, via reply, in the order their requests were
// received. Nothing later on the same bearer is processed out of
// turn in this implementation since Deliver is called serially.
func (s *Server) Deliver(pdu []byte) {
	if len(pdu) == 0 {
		return
	}
	op := Opcode(pdu[0])
	body := pdu[1:]
	gen := s.generation

	reply := func(b []byte) {
		if b == nil {
			return
		}
		if s.generation != gen {
			return // stale: link torn down since this request arrived
		}
		if err := s.bearer.Send(b); err != nil {
			s.log.WithError(err).Warn("att: failed to send response")
		}
	}

	if op.hasAuthSignature() {
		if !op.isCommand() {
			reply(errorResponse(op, HandleInvalid, ErrRequestNotSupported))
		}
		return
	}

	switch op {
	case OpHandleCnf:
		s.completeIndication(nil)
	case OpExchangeMTUReq:
		reply(s.handleExchangeMTU(body))
	case OpFindInfoReq:
		reply(s.handleFindInfo(body))
	case OpFindByTypeReq:
		reply(s.handleFindByTypeValue(body))
	case OpReadByTypeReq:
		s.handleReadByType(body, reply)
	case OpReadByGroupReq:
		reply(s.handleReadByGroupType(body))
	case OpReadReq, OpReadBlobReq:
		s.handleRead(op, body, reply)
	case OpWriteReq:
		s.handleWrite(op, body, reply)
	case OpWriteCmd:
		s.handleWrite(op, body, nil)
	case OpPrepWriteReq:
		reply(s.handlePrepareWrite(body))
	case OpExecWriteReq:
		s.handleExecuteWrite(body, reply)
	default:
		if op.isCommand() {
			return
		}
		reply(errorResponse(op, HandleInvalid, ErrRequestNotSupported))
	}
}

// SendUpdate emits a Notification (indicate=false) or Indication
// (indicate=true) for handle's current value. For an indication, done
// fires once: on the peer's Confirmation (nil error), on transaction
// timeout (ErrIndicationTimeout), or on Close (ErrLinkClosed). At
// most one indication is outstanding per bearer; additional calls
// queue and are sent in the order received, preserving §4.4.3's
// one-outstanding-indication rule without dropping later callers.
func (s *Server) SendUpdate(handle Handle, value []byte, indicate bool, done func(error)) {
	if !indicate {
		w := newPDUWriter(s.mtu)
		w.WriteByte(byte(OpHandleNotify))
		w.WriteUint16(uint16(handle))
		w.WriteBytes(value)
		if err := s.bearer.Send(w.Bytes()); err != nil {
			s.log.WithError(err).WithField("handle", handle).Warn("att: failed to send notification")
		}
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if done != nil {
			done(ErrLinkClosed)
		}
		return
	}
	if s.ind.pending {
		s.indQ = append(s.indQ, queuedIndication{handle: handle, value: value, callback: done})
		s.mu.Unlock()
		return
	}
	s.startIndicationLocked(handle, value, done)
	s.mu.Unlock()
}

// startIndicationLocked must be called with mu held and no
// indication currently pending.
func (s *Server) startIndicationLocked(handle Handle, value []byte, done func(error)) {
	w := newPDUWriter(s.mtu)
	w.WriteByte(byte(OpHandleInd))
	w.WriteUint16(uint16(handle))
	w.WriteBytes(value)
	pdu := w.Bytes()

	gen := s.generation
	s.ind = indicationState{pending: true, handle: handle, callback: done}
	s.ind.timer = time.AfterFunc(TransactionTimeout, func() {
		s.failIndication(gen, ErrIndicationTimeout)
	})

	if err := s.bearer.Send(pdu); err != nil {
		s.log.WithError(err).WithField("handle", handle).Warn("att: failed to send indication")
		s.ind.timer.Stop()
		s.ind = indicationState{}
		if done != nil {
			go done(err)
		}
		s.advanceIndicationQueueLocked()
	}
}

// completeIndication handles the peer's Confirmation.
func (s *Server) completeIndication(err error) {
	s.mu.Lock()
	if !s.ind.pending {
		s.mu.Unlock()
		return
	}
	cb := s.ind.callback
	s.ind.timer.Stop()
	s.ind = indicationState{}
	s.advanceIndicationQueueLocked()
	s.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}

// failIndication fails the pending indication with err, but only if
// gen still matches: a Close or a just-arrived Confirmation may have
// already resolved it.
func (s *Server) failIndication(gen int, errResult error) {
	s.mu.Lock()
	if s.generation != gen || !s.ind.pending {
		s.mu.Unlock()
		return
	}
	cb := s.ind.callback
	s.ind = indicationState{}
	s.advanceIndicationQueueLocked()
	s.mu.Unlock()

	if cb != nil {
		cb(errResult)
	}
}

// advanceIndicationQueueLocked starts the next queued indication, if
// any. Must be called with mu held and no indication pending.
func (s *Server) advanceIndicationQueueLocked() {
	if s.closed || len(s.indQ) == 0 {
		return
	}
	next := s.indQ[0]
	s.indQ = s.indQ[1:]
	s.startIndicationLocked(next.handle, next.value, next.callback)
}
