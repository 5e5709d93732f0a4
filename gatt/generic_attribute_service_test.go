package gatt

import (
	"testing"

	"github.com/nabeelsameer/blegatt/att"
)

func TestGenericAttributeServiceIndicatesOtherServiceChanges(t *testing.T) {
	db := att.NewDatabase(att.HandleMin, att.HandleMax)

	var gas *GenericAttributeService
	m := NewLocalServiceManager(db, func(id IdType, start, end att.Handle) {
		if gas != nil {
			gas.NotifyServiceChanged(id, start, end)
		}
	}, nil)

	var indicatedPeer att.PeerID
	var indicatedHandle att.Handle
	var indicatedValue []byte
	indicateCalls := 0
	indicate := func(peer att.PeerID, handle att.Handle, value []byte, done func(error)) {
		indicateCalls++
		indicatedPeer, indicatedHandle, indicatedValue = peer, handle, value
		if done != nil {
			done(nil)
		}
	}

	var err error
	gas, err = NewGenericAttributeService(m, indicate, nil, nil)
	if err != nil {
		t.Fatalf("NewGenericAttributeService: %v", err)
	}

	scValueHandle, ok := m.ValueHandle(gas.serviceID, serviceChangedChrcID)
	if !ok {
		t.Fatal("Service Changed value handle not found")
	}
	writeCCC(t, db, scValueHandle, "peer-1", cccIndicateFlag)

	decl := ServiceDecl{
		Primary: true,
		Type:    att.UUID16(0x180D),
		Characteristics: []CharacteristicDecl{{
			ID: 1, Type: att.UUID16(0x2A37), Properties: PropertyRead,
			ReadReqs: att.NewAccessRequirements(false, false, false, 0), Value: []byte{0, 60},
		}},
	}
	id, err := m.RegisterService(decl, nil, nil, nil)
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	if indicateCalls != 1 {
		t.Fatalf("indicate called %d times after registering an unrelated service, want 1", indicateCalls)
	}
	if indicatedPeer != "peer-1" {
		t.Fatalf("indicated peer = %v, want peer-1", indicatedPeer)
	}
	if indicatedHandle != scValueHandle {
		t.Fatalf("indicated handle = %v, want the Service Changed value handle %v", indicatedHandle, scValueHandle)
	}
	if len(indicatedValue) != 4 {
		t.Fatalf("indicated value length = %d, want 4 (start+end handles)", len(indicatedValue))
	}

	if err := m.UnregisterService(id); err != nil {
		t.Fatalf("UnregisterService: %v", err)
	}
	if indicateCalls != 2 {
		t.Fatalf("indicate called %d times after unregistering, want 2", indicateCalls)
	}
}

func TestGenericAttributeServiceSuppressesSelfRemoval(t *testing.T) {
	db := att.NewDatabase(att.HandleMin, att.HandleMax)

	var gas *GenericAttributeService
	m := NewLocalServiceManager(db, func(id IdType, start, end att.Handle) {
		if gas != nil {
			gas.NotifyServiceChanged(id, start, end)
		}
	}, nil)

	indicateCalls := 0
	indicate := func(peer att.PeerID, handle att.Handle, value []byte, done func(error)) {
		indicateCalls++
	}

	var err error
	gas, err = NewGenericAttributeService(m, indicate, nil, nil)
	if err != nil {
		t.Fatalf("NewGenericAttributeService: %v", err)
	}

	scValueHandle, _ := m.ValueHandle(gas.serviceID, serviceChangedChrcID)
	writeCCC(t, db, scValueHandle, "peer-1", cccIndicateFlag)

	if err := m.UnregisterService(gas.serviceID); err != nil {
		t.Fatalf("UnregisterService(self): %v", err)
	}
	if indicateCalls != 0 {
		t.Fatalf("indicate called %d times removing Generic Attribute Service itself, want 0", indicateCalls)
	}
}

func TestGenericAttributeServicePersistsSubscriptionChanges(t *testing.T) {
	db := att.NewDatabase(att.HandleMin, att.HandleMax)
	m := NewLocalServiceManager(db, nil, nil)

	var persistedPeer att.PeerID
	var persistedNotify, persistedIndicate bool
	persistCalls := 0
	persist := func(peer att.PeerID, notify, indicate bool) {
		persistCalls++
		persistedPeer, persistedNotify, persistedIndicate = peer, notify, indicate
	}

	gas, err := NewGenericAttributeService(m, func(att.PeerID, att.Handle, []byte, func(error)) {}, persist, nil)
	if err != nil {
		t.Fatalf("NewGenericAttributeService: %v", err)
	}

	scValueHandle, _ := m.ValueHandle(gas.serviceID, serviceChangedChrcID)
	writeCCC(t, db, scValueHandle, "peer-2", cccIndicateFlag)

	if persistCalls != 1 || persistedPeer != "peer-2" || !persistedIndicate || persistedNotify {
		t.Fatalf("persist(peer=%v notify=%v indicate=%v calls=%d), want (peer-2 false true 1)",
			persistedPeer, persistedNotify, persistedIndicate, persistCalls)
	}
}
