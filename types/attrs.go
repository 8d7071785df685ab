package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// AttrKind identifies which variant an Attr holds.
type AttrKind int

// Attr kinds. AttrInvalid is the zero value and marks an unset Attr.
const (
	AttrInvalid AttrKind = iota
	AttrString
	AttrNumber
	AttrBool
	AttrList
)

// String returns the kind name for logs and error messages.
func (k AttrKind) String() string {
	switch k {
	case AttrString:
		return "string"
	case AttrNumber:
		return "number"
	case AttrBool:
		return "bool"
	case AttrList:
		return "list"
	default:
		return "invalid"
	}
}

// Attr is a closed variant value: a string, a number, a bool, or a flat
// list of those. Producer payloads are maps of named Attrs, which lets
// auto-approval thresholds be evaluated without reflection while producers
// still attach arbitrary named fields. Lists do not nest and objects are
// not representable; a stored document containing either is corrupted.
type Attr struct {
	kind AttrKind
	str  string
	num  float64
	b    bool
	list []Attr
}

// String builds a string Attr.
func String(s string) Attr { return Attr{kind: AttrString, str: s} }

// Number builds a numeric Attr.
func Number(f float64) Attr { return Attr{kind: AttrNumber, num: f} }

// Int builds a numeric Attr from an int.
func Int(i int) Attr { return Attr{kind: AttrNumber, num: float64(i)} }

// Bool builds a boolean Attr.
func Bool(b bool) Attr { return Attr{kind: AttrBool, b: b} }

// StringList builds a list Attr of strings.
func StringList(items []string) Attr {
	list := make([]Attr, len(items))
	for i, s := range items {
		list[i] = String(s)
	}
	return Attr{kind: AttrList, list: list}
}

// NumberList builds a list Attr of numbers.
func NumberList(items []float64) Attr {
	list := make([]Attr, len(items))
	for i, f := range items {
		list[i] = Number(f)
	}
	return Attr{kind: AttrList, list: list}
}

// BoolList builds a list Attr of booleans.
func BoolList(items []bool) Attr {
	list := make([]Attr, len(items))
	for i, b := range items {
		list[i] = Bool(b)
	}
	return Attr{kind: AttrList, list: list}
}

// List builds a list Attr from scalar items. Nested lists and zero Attrs
// are rejected.
func List(items ...Attr) (Attr, error) {
	list := make([]Attr, len(items))
	for i, item := range items {
		switch item.kind {
		case AttrString, AttrNumber, AttrBool:
			list[i] = item
		case AttrList:
			return Attr{}, fmt.Errorf("attr: nested lists are not allowed")
		default:
			return Attr{}, fmt.Errorf("attr: list item %d is unset", i)
		}
	}
	return Attr{kind: AttrList, list: list}, nil
}

// Kind returns which variant the Attr holds.
func (a Attr) Kind() AttrKind { return a.kind }

// IsZero reports whether the Attr is unset.
func (a Attr) IsZero() bool { return a.kind == AttrInvalid }

// AsString returns the string value and whether the Attr holds one.
func (a Attr) AsString() (string, bool) {
	return a.str, a.kind == AttrString
}

// AsNumber returns the numeric value and whether the Attr holds one.
func (a Attr) AsNumber() (float64, bool) {
	return a.num, a.kind == AttrNumber
}

// AsBool returns the boolean value and whether the Attr holds one.
func (a Attr) AsBool() (bool, bool) {
	return a.b, a.kind == AttrBool
}

// AsList returns a copy of the list elements and whether the Attr holds a list.
func (a Attr) AsList() ([]Attr, bool) {
	if a.kind != AttrList {
		return nil, false
	}
	out := make([]Attr, len(a.list))
	copy(out, a.list)
	return out, true
}

// Equal reports deep equality of two Attrs.
func (a Attr) Equal(other Attr) bool {
	if a.kind != other.kind {
		return false
	}
	switch a.kind {
	case AttrString:
		return a.str == other.str
	case AttrNumber:
		return a.num == other.num
	case AttrBool:
		return a.b == other.b
	case AttrList:
		if len(a.list) != len(other.list) {
			return false
		}
		for i := range a.list {
			if !a.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the value for display in reasons and logs. Numbers use the
// shortest representation that round-trips ("0.9", not "0.900000").
func (a Attr) String() string {
	switch a.kind {
	case AttrString:
		return a.str
	case AttrNumber:
		return strconv.FormatFloat(a.num, 'g', -1, 64)
	case AttrBool:
		return strconv.FormatBool(a.b)
	case AttrList:
		out := "["
		for i, item := range a.list {
			if i > 0 {
				out += ", "
			}
			out += item.String()
		}
		return out + "]"
	default:
		return "<unset>"
	}
}

// MarshalJSON renders the Attr as its natural JSON value.
func (a Attr) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AttrString:
		return json.Marshal(a.str)
	case AttrNumber:
		return json.Marshal(a.num)
	case AttrBool:
		return json.Marshal(a.b)
	case AttrList:
		return json.Marshal(a.list)
	default:
		return nil, fmt.Errorf("attr: cannot marshal unset value")
	}
}

// UnmarshalJSON parses a JSON scalar or flat array into the Attr. Objects,
// nested arrays, and null are rejected; such input marks a damaged document.
func (a *Attr) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("attr: %w", err)
	}
	attr, err := fromJSONValue(raw, false)
	if err != nil {
		return err
	}
	*a = attr
	return nil
}

func fromJSONValue(raw any, nested bool) (Attr, error) {
	switch v := raw.(type) {
	case string:
		return String(v), nil
	case float64:
		return Number(v), nil
	case bool:
		return Bool(v), nil
	case []any:
		if nested {
			return Attr{}, fmt.Errorf("attr: nested lists are not allowed")
		}
		list := make([]Attr, len(v))
		for i, item := range v {
			elem, err := fromJSONValue(item, true)
			if err != nil {
				return Attr{}, err
			}
			list[i] = elem
		}
		return Attr{kind: AttrList, list: list}, nil
	case nil:
		return Attr{}, fmt.Errorf("attr: null is not a valid value")
	default:
		return Attr{}, fmt.Errorf("attr: unsupported JSON value of type %T", raw)
	}
}

// Attrs is a named bag of attribute values, the payload shape producers
// attach to checkpoints.
type Attrs map[string]Attr

// Clone returns a deep copy. Cloning nil returns nil.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		if v.kind == AttrList {
			list := make([]Attr, len(v.list))
			copy(list, v.list)
			v.list = list
		}
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order, for deterministic
// evaluation and rendering.
func (a Attrs) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep equality of two bags.
func (a Attrs) Equal(other Attrs) bool {
	if len(a) != len(other) {
		return false
	}
	for k, v := range a {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
