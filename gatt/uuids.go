package gatt

import "github.com/nabeelsameer/blegatt/att"

// Well-known UUIDs used by this package, per spec.md §6.3. The
// primary/secondary-service and characteristic-declaration UUIDs
// live in package att since AttServer's Read By Group Type handler
// needs them too; the rest are GATT-layer-only.
var (
	UUIDClientCharacteristicConfig       = att.UUID16(0x2902)
	UUIDCharacteristicExtendedProperties = att.UUID16(0x2900)
	UUIDServerCharacteristicConfig       = att.UUID16(0x2903)
	UUIDGenericAttributeService          = att.UUID16(0x1801)
	UUIDServiceChanged                   = att.UUID16(0x2A05)
)

func isReservedDescriptorType(u att.UUID) bool {
	return u.Equal(UUIDClientCharacteristicConfig) ||
		u.Equal(UUIDCharacteristicExtendedProperties) ||
		u.Equal(UUIDServerCharacteristicConfig)
}
