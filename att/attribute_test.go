package att

import "testing"

func staticGrouping(t *testing.T, extraAttrs int) (*AttributeDatabase, *AttributeGrouping) {
	t.Helper()
	db := NewDatabase(HandleMin, HandleMax)
	g := db.NewGrouping(UUIDPrimaryService, extraAttrs, UUID16(0x1800).Bytes())
	if g == nil {
		t.Fatal("NewGrouping returned nil")
	}
	return db, g
}

func TestSetValuePanicsWhenWritesAllowed(t *testing.T) {
	_, g := staticGrouping(t, 1)
	a := g.AddAttribute(UUID16(0x2A00), NewAccessRequirements(false, false, false, 0), NewAccessRequirements(false, false, false, 0))

	defer func() {
		if recover() == nil {
			t.Fatal("SetValue on a writable attribute did not panic")
		}
	}()
	a.SetValue([]byte{1})
}

func TestSetValuePanicsOnSecondCall(t *testing.T) {
	_, g := staticGrouping(t, 1)
	a := g.AddAttribute(UUID16(0x2A00), NewAccessRequirements(false, false, false, 0), AccessRequirements{})
	a.SetValue([]byte{1})

	defer func() {
		if recover() == nil {
			t.Fatal("second SetValue did not panic")
		}
	}()
	a.SetValue([]byte{2})
}

func TestReadAsyncRejectsStaticAttribute(t *testing.T) {
	_, g := staticGrouping(t, 1)
	a := g.AddAttribute(UUID16(0x2A00), NewAccessRequirements(false, false, false, 0), AccessRequirements{})
	a.SetValue([]byte{1, 2, 3})

	called := a.ReadAsync("peer", 0, func(code ErrorCode, value []byte) {
		t.Fatal("result callback must not run for a static attribute")
	})
	if called {
		t.Fatal("ReadAsync returned true for a static attribute")
	}
}

func TestReadAsyncDispatchesToHandler(t *testing.T) {
	_, g := staticGrouping(t, 1)
	a := g.AddAttribute(UUID16(0x2A00), NewAccessRequirements(false, false, false, 0), AccessRequirements{})

	a.SetReadHandler(ReadHandlerFunc(func(peer PeerID, handle Handle, offset int, result ReadResultFunc) {
		result(ErrNoError, []byte("dynamic"))
	}))

	var gotValue []byte
	var gotCode ErrorCode
	ok := a.ReadAsync("peer", 0, func(code ErrorCode, value []byte) {
		gotCode, gotValue = code, value
	})
	if !ok {
		t.Fatal("ReadAsync returned false for a dynamic attribute with a handler")
	}
	if gotCode != ErrNoError || string(gotValue) != "dynamic" {
		t.Fatalf("got (%v, %q), want (ErrNoError, \"dynamic\")", gotCode, gotValue)
	}
}

func TestWriteAsyncRejectsAttributeWithoutHandler(t *testing.T) {
	_, g := staticGrouping(t, 1)
	a := g.AddAttribute(UUID16(0x2A00), AccessRequirements{}, NewAccessRequirements(false, false, false, 0))

	ok := a.WriteAsync("peer", 0, []byte{1}, func(code ErrorCode) {
		t.Fatal("result callback must not run without a write handler installed")
	})
	if ok {
		t.Fatal("WriteAsync returned true with no write handler installed")
	}
}
