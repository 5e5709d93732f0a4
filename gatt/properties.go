// Package gatt layers GATT service/characteristic/descriptor semantics
// on top of package att's attribute database and server.
package gatt

// Property is a GATT characteristic property bit, carried in the
// characteristic declaration's value (spec.md §6.4).
type Property uint8

const (
	PropertyBroadcast   Property = 1 << 0
	PropertyRead        Property = 1 << 1
	PropertyWriteNR     Property = 1 << 2 // write without response
	PropertyWrite       Property = 1 << 3
	PropertyNotify      Property = 1 << 4
	PropertyIndicate    Property = 1 << 5
	PropertyAuthSignedWr Property = 1 << 6
	PropertyExtended    Property = 1 << 7
)

// Has reports whether p includes flag.
func (p Property) Has(flag Property) bool { return p&flag != 0 }

// ExtendedProperty is a bit of the Characteristic Extended Properties
// descriptor (type 0x2900).
type ExtendedProperty uint16

const (
	ExtendedPropertyReliableWrite  ExtendedProperty = 1 << 0
	ExtendedPropertyWritableAux    ExtendedProperty = 1 << 1
)
