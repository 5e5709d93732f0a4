package gatt

import (
	"encoding/hex"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/nabeelsameer/blegatt/att"
)

// ServiceSpec is the JSON shape accepted by cmd/gattserver's
// --service-file flag: a declarative description of one service,
// decoded into a live ServiceDecl by Build.
type ServiceSpec struct {
	Primary         bool                 `json:"primary"`
	UUID            string               `json:"uuid"`
	Characteristics []CharacteristicSpec `json:"characteristics"`
}

// CharacteristicSpec mirrors CharacteristicDecl in JSON form.
// Properties is a list of names matching the Property constants
// (case-sensitive: "read", "write", "write_nr", "notify", "indicate",
// "broadcast", "auth_signed_write", "extended"). ValueHex, if set,
// becomes the characteristic's static value.
type CharacteristicSpec struct {
	ID          uint16          `json:"id"`
	UUID        string          `json:"uuid"`
	Properties  []string        `json:"properties"`
	ValueHex    string          `json:"value_hex,omitempty"`
	Descriptors []DescriptorSpec `json:"descriptors,omitempty"`
}

// DescriptorSpec mirrors DescriptorDecl in JSON form.
type DescriptorSpec struct {
	ID       uint16 `json:"id"`
	UUID     string `json:"uuid"`
	ValueHex string `json:"value_hex"`
}

var propertyNames = map[string]Property{
	"broadcast":         PropertyBroadcast,
	"read":              PropertyRead,
	"write_nr":          PropertyWriteNR,
	"write":             PropertyWrite,
	"notify":            PropertyNotify,
	"indicate":          PropertyIndicate,
	"auth_signed_write": PropertyAuthSignedWr,
	"extended":          PropertyExtended,
}

// DecodeServiceSpecs reads a JSON array of ServiceSpec values from r,
// using json-iterator for parity with the rest of the retrieved BLE
// corpus's JSON tooling.
func DecodeServiceSpecs(r io.Reader) ([]ServiceSpec, error) {
	var specs []ServiceSpec
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(&specs); err != nil {
		return nil, errors.Wrap(err, "gatt: decoding service spec")
	}
	return specs, nil
}

// Build converts spec into a live ServiceDecl. Access requirements
// are not expressible in this minimal JSON format: a characteristic
// is readable without security if it declares "read", writable
// without security if it declares "write" or "write_nr", and its CCC
// descriptor is writable without security if it declares "notify" or
// "indicate". Every descriptor is readable without security and not
// writable. Finer-grained security policy is left to Go-authored
// declarations instead.
func (spec ServiceSpec) Build() (ServiceDecl, error) {
	uuid, err := att.Parse(spec.UUID)
	if err != nil {
		return ServiceDecl{}, errors.Wrapf(err, "gatt: service uuid %q", spec.UUID)
	}
	decl := ServiceDecl{Primary: spec.Primary, Type: uuid}

	for _, cs := range spec.Characteristics {
		chrcUUID, err := att.Parse(cs.UUID)
		if err != nil {
			return ServiceDecl{}, errors.Wrapf(err, "gatt: characteristic uuid %q", cs.UUID)
		}
		props, err := parseProperties(cs.Properties)
		if err != nil {
			return ServiceDecl{}, err
		}

		cd := CharacteristicDecl{
			ID:         CharacteristicID(cs.ID),
			Type:       chrcUUID,
			Properties: props,
		}
		if props.Has(PropertyRead) {
			cd.ReadReqs = att.NewAccessRequirements(false, false, false, 0)
		}
		if props.Has(PropertyWrite) || props.Has(PropertyWriteNR) {
			cd.WriteReqs = att.NewAccessRequirements(false, false, false, 0)
		}
		if props.Has(PropertyNotify) || props.Has(PropertyIndicate) {
			cd.UpdateReqs = att.NewAccessRequirements(false, false, false, 0)
		}
		if cs.ValueHex != "" {
			value, err := decodeHex(cs.ValueHex)
			if err != nil {
				return ServiceDecl{}, errors.Wrapf(err, "gatt: characteristic value %q", cs.ValueHex)
			}
			cd.Value = value
		}

		for _, ds := range cs.Descriptors {
			descUUID, err := att.Parse(ds.UUID)
			if err != nil {
				return ServiceDecl{}, errors.Wrapf(err, "gatt: descriptor uuid %q", ds.UUID)
			}
			value, err := decodeHex(ds.ValueHex)
			if err != nil {
				return ServiceDecl{}, errors.Wrapf(err, "gatt: descriptor value %q", ds.ValueHex)
			}
			cd.Descriptors = append(cd.Descriptors, DescriptorDecl{
				ID:        DescriptorID(ds.ID),
				Type:      descUUID,
				ReadReqs:  att.NewAccessRequirements(false, false, false, 0),
				WriteReqs: att.AccessRequirements{},
				Value:     value,
			})
		}

		decl.Characteristics = append(decl.Characteristics, cd)
	}
	return decl, nil
}

func parseProperties(names []string) (Property, error) {
	var p Property
	for _, name := range names {
		flag, ok := propertyNames[name]
		if !ok {
			return 0, errors.Errorf("gatt: unknown property %q", name)
		}
		p |= flag
	}
	return p, nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
