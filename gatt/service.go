package gatt

import "github.com/nabeelsameer/blegatt/att"

// IdType identifies a registered service, assigned monotonically from
// 1 by LocalServiceManager.RegisterService.
type IdType uint64

// CharacteristicID is a caller-assigned identifier, unique among the
// characteristics of one ServiceDecl.
type CharacteristicID uint16

// DescriptorID is a caller-assigned identifier, unique among the
// descriptors of one CharacteristicDecl.
type DescriptorID uint16

// DescriptorDecl is a caller-supplied characteristic descriptor. Its
// Type must not be one of the reserved descriptor types this package
// synthesizes itself: ClientCharacteristicConfiguration,
// CharacteristicExtendedProperties, ServerCharacteristicConfiguration.
// Only a static value is supported; a caller needing a dynamic
// descriptor value models it as a second characteristic instead.
type DescriptorDecl struct {
	ID        DescriptorID
	Type      att.UUID
	ReadReqs  att.AccessRequirements
	WriteReqs att.AccessRequirements
	Value     []byte
}

// CharacteristicDecl is a caller-supplied characteristic. UpdateReqs
// gates writes to the synthesized CCC descriptor when Properties
// includes Notify or Indicate; it is otherwise ignored.
type CharacteristicDecl struct {
	ID                 CharacteristicID
	Type               att.UUID
	Properties         Property
	ExtendedProperties ExtendedProperty
	ReadReqs           att.AccessRequirements
	WriteReqs          att.AccessRequirements
	UpdateReqs         att.AccessRequirements
	Value              []byte // static value; nil means dynamic via ReadHandler/WriteHandler
	Descriptors        []DescriptorDecl
}

// ServiceDecl is the high-level input to RegisterService: a
// primary/secondary flag, a type UUID, and an ordered list of
// characteristics.
type ServiceDecl struct {
	Primary         bool
	Type            att.UUID
	Characteristics []CharacteristicDecl
}

func (s ServiceDecl) groupType() att.UUID {
	if s.Primary {
		return att.UUIDPrimaryService
	}
	return att.UUIDSecondaryService
}

// attributeCount computes the exact number of attributes this
// declaration needs, per the rule in §4.5: 2 per characteristic
// (declaration + value), plus 1 if Notify or Indicate is set (CCC),
// plus 1 if ExtendedProperties is nonzero, plus one per descriptor.
func (s ServiceDecl) attributeCount() int {
	n := 0
	for _, c := range s.Characteristics {
		n += 2
		if c.Properties.Has(PropertyNotify) || c.Properties.Has(PropertyIndicate) {
			n++
		}
		if c.ExtendedProperties != 0 {
			n++
		}
		n += len(c.Descriptors)
	}
	return n
}
