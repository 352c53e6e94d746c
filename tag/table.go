package tag

import "fmt"

// ErrUnknownName is returned when a Name falls outside the closed,
// enumerated set.
type ErrUnknownName struct{ Name Name }

func (e *ErrUnknownName) Error() string {
	return fmt.Sprintf("tag: unknown name %d", uint8(e.Name))
}

// ErrInvalidValue is returned when a write's Value.Kind does not match the
// tag's declared Kind.
type ErrInvalidValue struct {
	Name     Name
	Got      Kind
	Expected Kind
}

func (e *ErrInvalidValue) Error() string {
	return fmt.Sprintf("tag: %s: got %s value, expected %s", e.Name, e.Got, e.Expected)
}

// Table is a flat, strongly-typed mapping from the closed tag-name set to a
// scalar Value. The zero value is not usable; construct with NewTable.
//
// Table is not safe for concurrent use: the simulation's single-threaded
// scheduling model (physics sub-step calls control scan calls tag writes)
// is the only access pattern the core ever exercises. Observers must treat
// the Table as read-only.
type Table struct {
	values [numNames]Value
}

// NewTable returns a Table with every tag initialized to its documented
// default (false / 0 / 0.0 / "").
func NewTable() *Table {
	t := &Table{}
	for n := Name(1); n < numNames; n++ {
		t.values[n] = zero(n.Kind())
	}
	return t
}

// Read returns the current value of n. Reading an unset tag returns its
// documented default; reading an invalid Name also returns that default,
// since Read has no error return (writers are where invalid names are
// rejected).
func (t *Table) Read(n Name) Value {
	if !n.IsValid() {
		return zero(KindBool)
	}
	return t.values[n]
}

// Write sets n to v, returning an error if n is not a known tag or v's Kind
// does not match n's declared Kind.
func (t *Table) Write(n Name, v Value) error {
	if !n.IsValid() {
		return &ErrUnknownName{Name: n}
	}
	if want := n.Kind(); v.Kind() != want {
		return &ErrInvalidValue{Name: n, Got: v.Kind(), Expected: want}
	}
	t.values[n] = v
	return nil
}

// MustWrite is Write, panicking on error. It exists for call sites (engine
// construction, tests) where the Name/Value pairing is a compile-time
// constant and a failure indicates a programmer error, not bad input.
func (t *Table) MustWrite(n Name, v Value) {
	if err := t.Write(n, v); err != nil {
		panic(err)
	}
}

// ReadBool is a convenience accessor equivalent to Read(n).AsBool().
func (t *Table) ReadBool(n Name) bool { return t.Read(n).AsBool() }

// ReadInt is a convenience accessor equivalent to Read(n).AsInt().
func (t *Table) ReadInt(n Name) int64 { return t.Read(n).AsInt() }

// ReadReal is a convenience accessor equivalent to Read(n).AsReal().
func (t *Table) ReadReal(n Name) float64 { return t.Read(n).AsReal() }

// ReadString is a convenience accessor equivalent to Read(n).AsString().
func (t *Table) ReadString(n Name) string { return t.Read(n).AsString() }

// WriteBool writes a KindBool value, returning the same error Write would.
func (t *Table) WriteBool(n Name, v bool) error { return t.Write(n, Bool(v)) }

// WriteInt writes a KindInt value, returning the same error Write would.
func (t *Table) WriteInt(n Name, v int64) error { return t.Write(n, Int(v)) }

// WriteReal writes a KindReal value, returning the same error Write would.
func (t *Table) WriteReal(n Name, v float64) error { return t.Write(n, Real(v)) }

// WriteString writes a KindString value, returning the same error Write would.
func (t *Table) WriteString(n Name, v string) error { return t.Write(n, String(v)) }

// ConsumeOneShots clears every one-shot command tag to false. Called by the
// control engine at the end of each scan (see package doc and §9 of the
// specification on the consume-on-scan convention).
func (t *Table) ConsumeOneShots() {
	for n := Name(1); n < numNames; n++ {
		if n.IsOneShot() {
			t.values[n] = Bool(false)
		}
	}
}

// Snapshot returns a copy of the table's current values, safe for an
// Observer to retain after the sub-step that produced it returns.
func (t *Table) Snapshot() Table {
	return *t
}
