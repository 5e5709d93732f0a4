package gatt

import (
	"encoding/binary"

	"github.com/nabeelsameer/blegatt/att"
)

// Low two bits of a CCC value, per spec.md §3.
const (
	cccNotifyFlag   uint16 = 1 << 0
	cccIndicateFlag uint16 = 1 << 1
)

// cccReadHandler answers reads of the synthesized CCC descriptor:
// readable without security, returning the peer's current 16-bit
// value little-endian (zero if the peer has never written it).
func (m *LocalServiceManager) cccReadHandler(rc *registeredCharacteristic) att.ReadHandler {
	return att.ReadHandlerFunc(func(peer att.PeerID, handle att.Handle, offset int, result att.ReadResultFunc) {
		raw := make([]byte, 2)
		binary.LittleEndian.PutUint16(raw, rc.ccc[peer])
		if offset > len(raw) {
			result(att.ErrInvalidOffset, nil)
			return
		}
		result(att.ErrNoError, raw[offset:])
	})
}

// cccWriteHandler answers writes of the synthesized CCC descriptor,
// per spec.md §4.5: exactly 2 bytes at offset 0, high 14 bits zero,
// and notify/indicate bits only set when the characteristic's
// properties actually advertise them. On an actual change it invokes
// the per-service ccc callback.
func (m *LocalServiceManager) cccWriteHandler(svc *registeredService, rc *registeredCharacteristic) att.WriteHandler {
	return att.WriteHandlerFunc(func(peer att.PeerID, handle att.Handle, offset int, value []byte, result att.WriteResultFunc) {
		fail := func(code att.ErrorCode) {
			if result != nil {
				result(code)
			}
		}
		if offset != 0 {
			fail(att.ErrInvalidOffset)
			return
		}
		if len(value) != 2 {
			fail(att.ErrInvalidAttrValueLength)
			return
		}
		v := binary.LittleEndian.Uint16(value)
		if v&^(cccNotifyFlag|cccIndicateFlag) != 0 {
			fail(att.ErrInvalidPDU)
			return
		}
		notify := v&cccNotifyFlag != 0
		indicate := v&cccIndicateFlag != 0
		if notify && !rc.decl.Properties.Has(PropertyNotify) {
			fail(att.ErrWriteNotPermitted)
			return
		}
		if indicate && !rc.decl.Properties.Has(PropertyIndicate) {
			fail(att.ErrWriteNotPermitted)
			return
		}

		old, changed := rc.ccc[peer], false
		if v == 0 {
			if old != 0 {
				changed = true
			}
			delete(rc.ccc, peer)
		} else {
			changed = old != v
			rc.ccc[peer] = v
		}

		if result != nil {
			result(att.ErrNoError)
		}
		if changed && svc.cccCallback != nil {
			svc.cccCallback(svc.id, rc.decl.ID, peer, notify, indicate)
		}
	})
}
