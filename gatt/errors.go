package gatt

import "github.com/pkg/errors"

// Local programming-error sentinels for RegisterService: protocol
// errors are reported as att.Error, while local misuse stays a plain
// Go error. Callers that need to distinguish a cause use
// errors.Cause.
var (
	// ErrInvalidID reports a duplicate characteristic or descriptor
	// id within a service declaration.
	ErrInvalidID = errors.New("gatt: duplicate id in service declaration")

	// ErrReservedDescriptorType reports that a caller-supplied
	// descriptor used a type this package synthesizes itself (CCC,
	// Extended Properties, Server Characteristic Configuration).
	ErrReservedDescriptorType = errors.New("gatt: descriptor uses a reserved type")

	// ErrNoSpace reports that the database had no handle range large
	// enough for the service being registered.
	ErrNoSpace = errors.New("gatt: no handle range large enough for service")

	// ErrUnknownService reports a service id not currently registered.
	ErrUnknownService = errors.New("gatt: unknown service id")

	// ErrUnknownCharacteristic reports a characteristic id not found
	// within its service.
	ErrUnknownCharacteristic = errors.New("gatt: unknown characteristic id")
)
