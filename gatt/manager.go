package gatt

import (
	"encoding/binary"
	"sort"

	"github.com/nabeelsameer/blegatt/att"
	"github.com/sirupsen/logrus"
)

// ServiceChangedCallback is fired by RegisterService and
// UnregisterService with the affected handle range, so
// GenericAttributeService can indicate it to subscribed peers.
type ServiceChangedCallback func(id IdType, startHandle, endHandle att.Handle)

// CCCCallback is fired when a peer's CCC write actually changes its
// subscription state for one characteristic.
type CCCCallback func(id IdType, chrcID CharacteristicID, peer att.PeerID, notify, indicate bool)

type registeredDescriptor struct {
	decl   DescriptorDecl
	handle att.Handle
}

type registeredCharacteristic struct {
	decl        CharacteristicDecl
	valueHandle att.Handle
	cccHandle   att.Handle // HandleInvalid if none
	descriptors []registeredDescriptor
	ccc         map[att.PeerID]uint16
}

type registeredService struct {
	id          IdType
	decl        ServiceDecl
	grouping    *att.AttributeGrouping
	chars       []*registeredCharacteristic
	charsByID   map[CharacteristicID]*registeredCharacteristic
	cccCallback CCCCallback
}

// LocalServiceManager builds database groupings from high-level
// service declarations and tracks per-peer CCC subscription state, as
// described in spec.md §4.5. It is not safe for concurrent use,
// matching the single dispatcher-thread discipline of §5.
type LocalServiceManager struct {
	db  *att.AttributeDatabase
	log logrus.FieldLogger

	nextID          uint64
	services        map[IdType]*registeredService
	serviceChanged  ServiceChangedCallback
}

// NewLocalServiceManager constructs a manager over db. serviceChanged
// may be nil if the caller has no interest in Service Changed
// indications (tests, or a host without GenericAttributeService).
func NewLocalServiceManager(db *att.AttributeDatabase, serviceChanged ServiceChangedCallback, log logrus.FieldLogger) *LocalServiceManager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LocalServiceManager{
		db:             db,
		log:            log,
		services:       make(map[IdType]*registeredService),
		serviceChanged: serviceChanged,
	}
}

// RegisterService validates decl, allocates a grouping for it,
// populates the declaration/value/descriptor attributes, and returns
// a fresh service id.
func (m *LocalServiceManager) RegisterService(decl ServiceDecl, readHandler att.ReadHandler, writeHandler att.WriteHandler, cccCallback CCCCallback) (IdType, error) {
	if err := validateServiceDecl(decl); err != nil {
		return 0, err
	}

	sorted := make([]CharacteristicDecl, len(decl.Characteristics))
	copy(sorted, decl.Characteristics)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Type.Len() < sorted[j].Type.Len()
	})

	attrCount := decl.attributeCount()
	grouping := m.db.NewGrouping(decl.groupType(), attrCount, decl.Type.Bytes())
	if grouping == nil {
		return 0, ErrNoSpace
	}

	svc := &registeredService{
		decl:        decl,
		grouping:    grouping,
		charsByID:   make(map[CharacteristicID]*registeredCharacteristic),
		cccCallback: cccCallback,
	}

	for _, c := range sorted {
		rc := m.populateCharacteristic(svc, c, readHandler, writeHandler)
		svc.chars = append(svc.chars, rc)
		svc.charsByID[c.ID] = rc
	}

	grouping.SetActive(true)

	m.nextID++
	svc.id = IdType(m.nextID)
	m.services[svc.id] = svc

	if m.serviceChanged != nil {
		m.serviceChanged(svc.id, grouping.StartHandle(), grouping.EndHandle())
	}
	return svc.id, nil
}

// populateCharacteristic appends the declaration, value, and
// descriptor attributes for one characteristic to svc.grouping.
func (m *LocalServiceManager) populateCharacteristic(svc *registeredService, c CharacteristicDecl, readHandler att.ReadHandler, writeHandler att.WriteHandler) *registeredCharacteristic {
	rc := &registeredCharacteristic{decl: c, cccHandle: att.HandleInvalid}

	declAttr := svc.grouping.AddAttribute(att.UUIDCharacteristic,
		att.NewAccessRequirements(false, false, false, 0), att.AccessRequirements{})
	valueHandle := declAttr.Handle() + 1

	valueAttr := svc.grouping.AddAttribute(c.Type, c.ReadReqs, c.WriteReqs)
	rc.valueHandle = valueAttr.Handle()

	declValue := make([]byte, 3+c.Type.Len())
	declValue[0] = byte(c.Properties)
	binary.LittleEndian.PutUint16(declValue[1:3], uint16(valueHandle))
	copy(declValue[3:], c.Type.Bytes())
	declAttr.SetValue(declValue)

	if c.Value != nil {
		valueAttr.SetValue(c.Value)
	} else {
		valueAttr.SetReadHandler(m.wrapReadHandler(c, readHandler))
		valueAttr.SetWriteHandler(m.wrapWriteHandler(c, writeHandler))
	}

	if c.Properties.Has(PropertyNotify) || c.Properties.Has(PropertyIndicate) {
		rc.ccc = make(map[att.PeerID]uint16)
		cccAttr := svc.grouping.AddAttribute(UUIDClientCharacteristicConfig,
			att.NewAccessRequirements(false, false, false, 0), c.UpdateReqs)
		rc.cccHandle = cccAttr.Handle()
		cccAttr.SetReadHandler(m.cccReadHandler(rc))
		cccAttr.SetWriteHandler(m.cccWriteHandler(svc, rc))
	}

	if c.ExtendedProperties != 0 {
		extAttr := svc.grouping.AddAttribute(UUIDCharacteristicExtendedProperties,
			att.NewAccessRequirements(false, false, false, 0), att.AccessRequirements{})
		extValue := make([]byte, 2)
		binary.LittleEndian.PutUint16(extValue, uint16(c.ExtendedProperties))
		extAttr.SetValue(extValue)
	}

	for _, d := range c.Descriptors {
		descAttr := svc.grouping.AddAttribute(d.Type, d.ReadReqs, d.WriteReqs)
		descAttr.SetValue(d.Value)
		rc.descriptors = append(rc.descriptors, registeredDescriptor{decl: d, handle: descAttr.Handle()})
	}

	return rc
}

// wrapReadHandler enforces Property::Read at call time before
// delegating to the caller's handler, per §4.5 step 5.
func (m *LocalServiceManager) wrapReadHandler(c CharacteristicDecl, h att.ReadHandler) att.ReadHandler {
	return att.ReadHandlerFunc(func(peer att.PeerID, handle att.Handle, offset int, result att.ReadResultFunc) {
		if !c.Properties.Has(PropertyRead) {
			result(att.ErrReadNotPermitted, nil)
			return
		}
		if h == nil {
			result(att.ErrUnlikely, nil)
			return
		}
		h.ServeRead(peer, handle, offset, result)
	})
}

// wrapWriteHandler enforces Property::Write / Property::WriteNR at
// call time. A nil result signals the write-without-response path.
func (m *LocalServiceManager) wrapWriteHandler(c CharacteristicDecl, h att.WriteHandler) att.WriteHandler {
	return att.WriteHandlerFunc(func(peer att.PeerID, handle att.Handle, offset int, value []byte, result att.WriteResultFunc) {
		if result == nil {
			if !c.Properties.Has(PropertyWriteNR) {
				return
			}
		} else if !c.Properties.Has(PropertyWrite) {
			result(att.ErrWriteNotPermitted)
			return
		}
		if h == nil {
			if result != nil {
				result(att.ErrUnlikely)
			}
			return
		}
		h.ServeWrite(peer, handle, offset, value, result)
	})
}

// UnregisterService removes a service's grouping and fires the
// service-changed callback with its former range.
func (m *LocalServiceManager) UnregisterService(id IdType) error {
	svc, ok := m.services[id]
	if !ok {
		return ErrUnknownService
	}
	start, end := svc.grouping.StartHandle(), svc.grouping.EndHandle()
	m.db.RemoveGrouping(start)
	delete(m.services, id)

	if m.serviceChanged != nil {
		m.serviceChanged(id, start, end)
	}
	return nil
}

// ValueHandle returns a characteristic's value attribute handle, or
// ok=false if the service or characteristic id is unknown.
func (m *LocalServiceManager) ValueHandle(id IdType, chrcID CharacteristicID) (handle att.Handle, ok bool) {
	svc, exists := m.services[id]
	if !exists {
		return 0, false
	}
	rc, exists := svc.charsByID[chrcID]
	if !exists {
		return 0, false
	}
	return rc.valueHandle, true
}

// GetCharacteristicConfig returns the value handle and current
// notify/indicate bits a peer has set for a characteristic. Absent
// peer entries read as all-zero. ok is false if the service or
// characteristic id is unknown.
func (m *LocalServiceManager) GetCharacteristicConfig(id IdType, chrcID CharacteristicID, peer att.PeerID) (handle att.Handle, notify, indicate, ok bool) {
	svc, exists := m.services[id]
	if !exists {
		return 0, false, false, false
	}
	rc, exists := svc.charsByID[chrcID]
	if !exists {
		return 0, false, false, false
	}
	v := rc.ccc[peer]
	return rc.valueHandle, v&cccNotifyFlag != 0, v&cccIndicateFlag != 0, true
}

// DisconnectClient wipes peer's rows from every characteristic's CCC
// table across every registered service.
func (m *LocalServiceManager) DisconnectClient(peer att.PeerID) {
	for _, svc := range m.services {
		for _, rc := range svc.chars {
			if rc.ccc != nil {
				delete(rc.ccc, peer)
			}
		}
	}
}

func validateServiceDecl(decl ServiceDecl) error {
	seenChars := make(map[CharacteristicID]bool, len(decl.Characteristics))
	for _, c := range decl.Characteristics {
		if seenChars[c.ID] {
			return ErrInvalidID
		}
		seenChars[c.ID] = true

		seenDescs := make(map[DescriptorID]bool, len(c.Descriptors))
		for _, d := range c.Descriptors {
			if seenDescs[d.ID] {
				return ErrInvalidID
			}
			seenDescs[d.ID] = true
			if isReservedDescriptorType(d.Type) {
				return ErrReservedDescriptorType
			}
		}
	}
	return nil
}
