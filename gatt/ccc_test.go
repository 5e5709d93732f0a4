package gatt

import (
	"encoding/binary"
	"testing"

	"github.com/nabeelsameer/blegatt/att"
)

// writeCCC drives the synthesized CCC descriptor's write handler
// directly, the way an AttServer Write Request would. The CCC
// descriptor immediately follows a characteristic's value attribute
// whenever Notify or Indicate is declared: manager.go's
// populateCharacteristic adds it before any Extended Properties or
// caller-supplied descriptor attribute.
func writeCCC(t *testing.T, db *att.AttributeDatabase, valueHandle att.Handle, peer att.PeerID, v uint16) att.ErrorCode {
	t.Helper()
	cccHandle := valueHandle + 1
	a := db.FindAttribute(cccHandle)
	if a == nil {
		t.Fatalf("no attribute at CCC handle %d", cccHandle)
	}
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, v)

	var gotCode att.ErrorCode
	ok := a.WriteAsync(peer, 0, raw, func(code att.ErrorCode) { gotCode = code })
	if !ok {
		t.Fatal("WriteAsync on CCC descriptor returned false")
	}
	return gotCode
}

func TestCCCWriteEnablesNotifyAndFiresCallback(t *testing.T) {
	db := att.NewDatabase(att.HandleMin, att.HandleMax)
	m := NewLocalServiceManager(db, nil, nil)

	var gotPeer att.PeerID
	var gotNotify, gotIndicate bool
	calls := 0

	decl := ServiceDecl{
		Primary: true,
		Type:    att.UUID16(0x180D),
		Characteristics: []CharacteristicDecl{{
			ID: 1, Type: att.UUID16(0x2A37), Properties: PropertyNotify,
			UpdateReqs: att.NewAccessRequirements(false, false, false, 0),
		}},
	}
	id, err := m.RegisterService(decl, nil, nil, func(id IdType, chrcID CharacteristicID, peer att.PeerID, notify, indicate bool) {
		calls++
		gotPeer, gotNotify, gotIndicate = peer, notify, indicate
	})
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	valueHandle, _ := m.ValueHandle(id, 1)
	if code := writeCCC(t, db, valueHandle, "peer-1", cccNotifyFlag); code != att.ErrNoError {
		t.Fatalf("CCC write error = %v, want ErrNoError", code)
	}
	if calls != 1 || gotPeer != "peer-1" || !gotNotify || gotIndicate {
		t.Fatalf("callback(peer=%v notify=%v indicate=%v calls=%d), want (peer-1 true false 1)", gotPeer, gotNotify, gotIndicate, calls)
	}

	_, notify, indicate, ok := m.GetCharacteristicConfig(id, 1, "peer-1")
	if !ok || !notify || indicate {
		t.Fatal("GetCharacteristicConfig did not reflect the enabled notify bit")
	}
}

func TestCCCWriteRejectsIndicateWhenNotDeclared(t *testing.T) {
	db := att.NewDatabase(att.HandleMin, att.HandleMax)
	m := NewLocalServiceManager(db, nil, nil)

	decl := ServiceDecl{
		Primary: true,
		Type:    att.UUID16(0x180D),
		Characteristics: []CharacteristicDecl{{
			ID: 1, Type: att.UUID16(0x2A37), Properties: PropertyNotify,
			UpdateReqs: att.NewAccessRequirements(false, false, false, 0),
		}},
	}
	id, err := m.RegisterService(decl, nil, nil, nil)
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	valueHandle, _ := m.ValueHandle(id, 1)

	if code := writeCCC(t, db, valueHandle, "peer-1", cccIndicateFlag); code != att.ErrWriteNotPermitted {
		t.Fatalf("CCC write (indicate on a notify-only characteristic) = %v, want ErrWriteNotPermitted", code)
	}
}

func TestCCCWriteZeroClearsSubscription(t *testing.T) {
	db := att.NewDatabase(att.HandleMin, att.HandleMax)
	m := NewLocalServiceManager(db, nil, nil)

	decl := ServiceDecl{
		Primary: true,
		Type:    att.UUID16(0x180D),
		Characteristics: []CharacteristicDecl{{
			ID: 1, Type: att.UUID16(0x2A37), Properties: PropertyNotify | PropertyIndicate,
			UpdateReqs: att.NewAccessRequirements(false, false, false, 0),
		}},
	}
	id, err := m.RegisterService(decl, nil, nil, nil)
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	valueHandle, _ := m.ValueHandle(id, 1)

	writeCCC(t, db, valueHandle, "peer-1", cccNotifyFlag|cccIndicateFlag)
	writeCCC(t, db, valueHandle, "peer-1", 0)

	_, notify, indicate, ok := m.GetCharacteristicConfig(id, 1, "peer-1")
	if !ok || notify || indicate {
		t.Fatal("writing 0 to the CCC descriptor must clear both subscription bits")
	}
}
