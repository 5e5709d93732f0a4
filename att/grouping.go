package att

// AttributeGrouping is a contiguous handle range containing one
// declaration attribute followed by its constituent attributes. The
// type of the declaration attribute (attributes()[0]) determines the
// type of the grouping, e.g. a primary-service declaration.
type AttributeGrouping struct {
	startHandle Handle
	endHandle   Handle
	active      bool
	attrs       []Attribute
}

// newAttributeGrouping reserves storage for attrCount+1 attributes
// and installs the declaration attribute with groupType, read-without-
// security, writes-forbidden permissions, and declValue as its static
// value. It requires startHandle+attrCount <= HandleMax.
func newAttributeGrouping(groupType UUID, startHandle Handle, attrCount int, declValue []byte) *AttributeGrouping {
	if int(startHandle)+attrCount > int(HandleMax) {
		panic("att: grouping would exceed the maximum handle")
	}
	g := &AttributeGrouping{
		startHandle: startHandle,
		endHandle:   startHandle + Handle(attrCount),
		attrs:       make([]Attribute, 0, attrCount+1),
	}
	decl := Attribute{
		group:     g,
		handle:    startHandle,
		typ:       groupType,
		readReqs:  NewAccessRequirements(false, false, false, 0),
		writeReqs: AccessRequirements{}, // disallowed
	}
	decl.SetValue(declValue)
	g.attrs = append(g.attrs, decl)
	return g
}

// StartHandle returns the first handle in the grouping's range.
func (g *AttributeGrouping) StartHandle() Handle { return g.startHandle }

// EndHandle returns the last handle in the grouping's range.
func (g *AttributeGrouping) EndHandle() Handle { return g.endHandle }

// Complete reports whether the attribute count equals
// (end_handle - start_handle + 1): every reserved handle has an
// attribute installed.
func (g *AttributeGrouping) Complete() bool {
	return len(g.attrs) == int(g.endHandle-g.startHandle)+1
}

// Active reports whether the grouping currently participates in
// queries. A grouping only participates when both complete and
// active.
func (g *AttributeGrouping) Active() bool { return g.active }

// SetActive marks the grouping active or inactive. It panics if
// called on an incomplete grouping, mirroring the invariant that a
// grouping must be fully populated before it can serve requests.
func (g *AttributeGrouping) SetActive(active bool) {
	if !g.Complete() {
		panic("att: SetActive called on an incomplete grouping")
	}
	g.active = active
}

// GroupType returns the type of the declaration attribute.
func (g *AttributeGrouping) GroupType() UUID { return g.attrs[0].typ }

// DeclarationValue returns the value of the declaration attribute.
func (g *AttributeGrouping) DeclarationValue() []byte { return g.attrs[0].Value() }

// Attributes returns the grouping's attributes in handle order,
// including the declaration attribute at index 0. The caller must
// not mutate the returned slice's contents via pointers obtained
// elsewhere; treat it as read-only.
func (g *AttributeGrouping) Attributes() []Attribute { return g.attrs }

// AddAttribute appends one attribute with the next consecutive
// handle. It returns nil if the grouping is already complete.
func (g *AttributeGrouping) AddAttribute(typ UUID, readReqs, writeReqs AccessRequirements) *Attribute {
	if g.Complete() {
		return nil
	}
	h := g.startHandle + Handle(len(g.attrs))
	g.attrs = append(g.attrs, Attribute{
		group:     g,
		handle:    h,
		typ:       typ,
		readReqs:  readReqs,
		writeReqs: writeReqs,
	})
	return &g.attrs[len(g.attrs)-1]
}

// attributeAt returns a pointer to the attribute at handle h within
// this grouping, or nil if h is out of range for the grouping's
// currently-populated attributes.
func (g *AttributeGrouping) attributeAt(h Handle) *Attribute {
	if h < g.startHandle {
		return nil
	}
	idx := int(h - g.startHandle)
	if idx >= len(g.attrs) {
		return nil
	}
	return &g.attrs[idx]
}
