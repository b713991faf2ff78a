package notebooks

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a node in a notebook document. Objects keep their keys in the
// order they were read so a rewritten notebook diffs cleanly against the
// original.
type Value struct {
	kind    Kind
	b       bool
	s       string // string contents, or the literal text of a number
	items   []*Value
	members []Member
}

// Member is one key/value pair of an object.
type Member struct {
	Key   string
	Value *Value
}

func NullValue() *Value { return &Value{kind: Null} }

func BoolValue(b bool) *Value { return &Value{kind: Bool, b: b} }

// NumberValue wraps a JSON number literal. The literal is kept verbatim.
func NumberValue(n json.Number) *Value { return &Value{kind: Number, s: string(n)} }

func StringValue(s string) *Value { return &Value{kind: String, s: s} }

func ArrayValue(items ...*Value) *Value {
	if items == nil {
		items = []*Value{}
	}
	return &Value{kind: Array, items: items}
}

func ObjectValue(members ...Member) *Value {
	if members == nil {
		members = []Member{}
	}
	return &Value{kind: Object, members: members}
}

func (v *Value) Kind() Kind { return v.kind }

func (v *Value) IsObject() bool { return v != nil && v.kind == Object }

func (v *Value) Bool() bool { return v.b }

func (v *Value) Str() string { return v.s }

func (v *Value) Number() json.Number { return json.Number(v.s) }

// Items returns the elements of an array, or nil for any other kind.
func (v *Value) Items() []*Value { return v.items }

// Members returns the key/value pairs of an object in document order.
func (v *Value) Members() []Member { return v.members }

// Len returns the number of elements of an array or members of an object.
func (v *Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.items)
	case Object:
		return len(v.members)
	}
	return 0
}

// Keys returns the object's keys in document order.
func (v *Value) Keys() []string {
	keys := make([]string, 0, len(v.members))
	for _, m := range v.members {
		keys = append(keys, m.Key)
	}
	return keys
}

// Get looks up key in an object. With duplicate keys the first one wins.
func (v *Value) Get(key string) (*Value, bool) {
	if !v.IsObject() {
		return nil, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Has reports whether an object contains key.
func (v *Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Set replaces the value of an existing key in place, or appends a new member.
// It panics if v is not an object.
func (v *Value) Set(key string, val *Value) {
	if !v.IsObject() {
		panic("notebooks: Set on " + v.kind.String())
	}
	for i := range v.members {
		if v.members[i].Key == key {
			v.members[i].Value = val
			return
		}
	}
	v.members = append(v.members, Member{Key: key, Value: val})
}

// Delete removes every member named key and reports whether any existed.
func (v *Value) Delete(key string) bool {
	if !v.IsObject() {
		return false
	}
	kept := v.members[:0]
	for _, m := range v.members {
		if m.Key != key {
			kept = append(kept, m)
		}
	}
	removed := len(kept) != len(v.members)
	v.members = kept
	return removed
}
