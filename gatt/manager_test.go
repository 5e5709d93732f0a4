package gatt

import (
	"testing"

	"github.com/nabeelsameer/blegatt/att"
)

func newTestManager() (*LocalServiceManager, *att.AttributeDatabase) {
	db := att.NewDatabase(att.HandleMin, att.HandleMax)
	return NewLocalServiceManager(db, nil, nil), db
}

func TestRegisterServiceAllocatesContiguousHandles(t *testing.T) {
	m, db := newTestManager()

	decl := ServiceDecl{
		Primary: true,
		Type:    att.UUID16(0x180D), // Heart Rate
		Characteristics: []CharacteristicDecl{{
			ID:         1,
			Type:       att.UUID16(0x2A37),
			Properties: PropertyRead | PropertyNotify,
			ReadReqs:   att.NewAccessRequirements(false, false, false, 0),
			UpdateReqs: att.NewAccessRequirements(false, false, false, 0),
			Value:      []byte{0x00, 60},
		}},
	}

	id, err := m.RegisterService(decl, nil, nil, nil)
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	handle, ok := m.ValueHandle(id, 1)
	if !ok {
		t.Fatal("ValueHandle: characteristic not found")
	}
	if handle == att.HandleInvalid {
		t.Fatal("ValueHandle returned HandleInvalid")
	}
	// Service declaration at 1, characteristic declaration at 2,
	// value at 3, CCC descriptor at 4 closing the service's range.
	if handle != att.HandleMin+2 {
		t.Fatalf("value handle = %d, want %d", handle, att.HandleMin+2)
	}
	ccc := db.FindAttribute(handle + 1)
	if ccc == nil || !ccc.Type().Equal(UUIDClientCharacteristicConfig) || ccc.Group().EndHandle() != handle+1 {
		t.Fatal("the CCC descriptor must occupy the handle right after the value, ending the service's range")
	}

	_, notify, indicate, ok := m.GetCharacteristicConfig(id, 1, "peer")
	if !ok {
		t.Fatal("GetCharacteristicConfig: characteristic not found")
	}
	if notify || indicate {
		t.Fatal("a peer with no prior CCC write must read back notify=false, indicate=false")
	}
}

func TestRegisterServiceRejectsDuplicateCharacteristicIDs(t *testing.T) {
	m, _ := newTestManager()

	decl := ServiceDecl{
		Primary: true,
		Type:    att.UUID16(0x1800),
		Characteristics: []CharacteristicDecl{
			{ID: 1, Type: att.UUID16(0x2A00), Properties: PropertyRead, ReadReqs: att.NewAccessRequirements(false, false, false, 0), Value: []byte("a")},
			{ID: 1, Type: att.UUID16(0x2A01), Properties: PropertyRead, ReadReqs: att.NewAccessRequirements(false, false, false, 0), Value: []byte("b")},
		},
	}

	if _, err := m.RegisterService(decl, nil, nil, nil); err != ErrInvalidID {
		t.Fatalf("RegisterService error = %v, want ErrInvalidID", err)
	}
}

func TestRegisterServiceRejectsReservedDescriptorType(t *testing.T) {
	m, _ := newTestManager()

	decl := ServiceDecl{
		Primary: true,
		Type:    att.UUID16(0x1800),
		Characteristics: []CharacteristicDecl{{
			ID:         1,
			Type:       att.UUID16(0x2A00),
			Properties: PropertyRead,
			ReadReqs:   att.NewAccessRequirements(false, false, false, 0),
			Value:      []byte("a"),
			Descriptors: []DescriptorDecl{{
				ID:   1,
				Type: UUIDClientCharacteristicConfig,
			}},
		}},
	}

	if _, err := m.RegisterService(decl, nil, nil, nil); err != ErrReservedDescriptorType {
		t.Fatalf("RegisterService error = %v, want ErrReservedDescriptorType", err)
	}
}

func TestUnregisterServiceFiresServiceChanged(t *testing.T) {
	db := att.NewDatabase(att.HandleMin, att.HandleMax)

	var gotID IdType
	var gotStart, gotEnd att.Handle
	calls := 0
	m := NewLocalServiceManager(db, func(id IdType, start, end att.Handle) {
		calls++
		gotID, gotStart, gotEnd = id, start, end
	}, nil)

	decl := ServiceDecl{
		Primary: true,
		Type:    att.UUID16(0x1800),
		Characteristics: []CharacteristicDecl{{
			ID: 1, Type: att.UUID16(0x2A00), Properties: PropertyRead,
			ReadReqs: att.NewAccessRequirements(false, false, false, 0), Value: []byte("a"),
		}},
	}
	id, err := m.RegisterService(decl, nil, nil, nil)
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	if calls != 1 {
		t.Fatalf("serviceChanged called %d times on register, want 1", calls)
	}

	if err := m.UnregisterService(id); err != nil {
		t.Fatalf("UnregisterService: %v", err)
	}
	if calls != 2 || gotID != id {
		t.Fatalf("serviceChanged after unregister: calls=%d id=%v, want calls=2 id=%v", calls, gotID, id)
	}
	if gotStart == att.HandleInvalid || gotEnd < gotStart {
		t.Fatalf("unregister reported handle range [%d,%d]", gotStart, gotEnd)
	}

	if err := m.UnregisterService(id); err != ErrUnknownService {
		t.Fatalf("double UnregisterService error = %v, want ErrUnknownService", err)
	}
}

func TestDisconnectClientClearsCCCAcrossServices(t *testing.T) {
	m, db := newTestManager()

	decl := ServiceDecl{
		Primary: true,
		Type:    att.UUID16(0x180D),
		Characteristics: []CharacteristicDecl{{
			ID: 1, Type: att.UUID16(0x2A37), Properties: PropertyNotify,
			UpdateReqs: att.NewAccessRequirements(false, false, false, 0),
		}},
	}
	var ids []IdType
	for i := 0; i < 2; i++ {
		id, err := m.RegisterService(decl, nil, nil, nil)
		if err != nil {
			t.Fatalf("RegisterService: %v", err)
		}
		valueHandle, ok := m.ValueHandle(id, 1)
		if !ok {
			t.Fatal("ValueHandle: not found")
		}
		if code := writeCCC(t, db, valueHandle, "peer", cccNotifyFlag); code != att.ErrNoError {
			t.Fatalf("CCC write error = %v, want ErrNoError", code)
		}
		if _, notify, _, _ := m.GetCharacteristicConfig(id, 1, "peer"); !notify {
			t.Fatal("CCC write did not enable notify before DisconnectClient")
		}
		ids = append(ids, id)
	}

	m.DisconnectClient("peer")

	for _, id := range ids {
		_, notify, indicate, ok := m.GetCharacteristicConfig(id, 1, "peer")
		if !ok || notify || indicate {
			t.Fatal("DisconnectClient must leave a clean (zero) CCC entry behind")
		}
	}
}
