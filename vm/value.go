package vm

import (
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindList
	KindDict
	KindFunction
)

var kindNames = map[Kind]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindList:      "list",
	KindDict:      "dict",
	KindFunction:  "function",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is a runtime value. Numbers, strings, booleans, null and undefined
// are immutable values; lists and dicts are mutable references.
type Value interface {
	Kind() Kind
	// Clone returns a deep copy for containers and the receiver otherwise.
	Clone() Value
}

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

type Number float64

type String string

type Boolean bool

type Null struct{}

type Undefined struct{}

func (Number) Kind() Kind    { return KindNumber }
func (String) Kind() Kind    { return KindString }
func (Boolean) Kind() Kind   { return KindBoolean }
func (Null) Kind() Kind      { return KindNull }
func (Undefined) Kind() Kind { return KindUndefined }

func (n Number) Clone() Value    { return n }
func (s String) Clone() Value    { return s }
func (b Boolean) Clone() Value   { return b }
func (n Null) Clone() Value      { return n }
func (u Undefined) Clone() Value { return u }

// IsInteger reports whether the number has no fractional part.
func (n Number) IsInteger() bool {
	f := float64(n)
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

// FormatNumber renders a number the way ECMAScript's Number::toString does.
// Every dialect prints numbers this way so integral values never carry a
// trailing ".0".
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Go writes e+21 / e-07; ECMAScript writes e+21 / e-7.
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mantissa + "e" + string(sign) + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// List is an ordered, mutable sequence.
type List struct {
	Elements []Value
}

// NewList wraps the given elements without copying.
func NewList(elements ...Value) *List {
	if elements == nil {
		elements = []Value{}
	}
	return &List{Elements: elements}
}

func (l *List) Kind() Kind { return KindList }

func (l *List) Len() int { return len(l.Elements) }

func (l *List) Clone() Value { return NewCloner().Clone(l) }

// ---------------------------------------------------------------------------
// Dict
// ---------------------------------------------------------------------------

// Dict is a string-keyed mutable mapping that remembers insertion order,
// so iteration and rendering are deterministic.
type Dict struct {
	keys   []string
	values map[string]Value
}

func NewDict() *Dict {
	return &Dict{values: make(map[string]Value)}
}

func (d *Dict) Kind() Kind { return KindDict }

func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order. The slice must not be modified.
func (d *Dict) Keys() []string { return d.keys }

func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

func (d *Dict) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

func (d *Dict) Set(key string, v Value) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (d *Dict) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i:i], d.keys[i+1:]...)
			break
		}
	}
}

func (d *Dict) Clone() Value { return NewCloner().Clone(d) }

// ---------------------------------------------------------------------------
// Cloner
// ---------------------------------------------------------------------------

// Cloner deep-copies values. A container reached more than once is copied
// once, so shared and self-referencing structure survives the copy.
type Cloner struct {
	copies map[Value]Value
}

func NewCloner() *Cloner {
	return &Cloner{copies: make(map[Value]Value)}
}

func (c *Cloner) Clone(v Value) Value {
	switch t := v.(type) {
	case nil:
		return nil
	case *List:
		if cp, ok := c.copies[t]; ok {
			return cp
		}
		out := &List{Elements: make([]Value, len(t.Elements))}
		c.copies[t] = out
		for i, e := range t.Elements {
			out.Elements[i] = c.Clone(e)
		}
		return out
	case *Dict:
		if cp, ok := c.copies[t]; ok {
			return cp
		}
		out := &Dict{
			keys:   append([]string(nil), t.keys...),
			values: make(map[string]Value, len(t.values)),
		}
		c.copies[t] = out
		for k, e := range t.values {
			out.values[k] = c.Clone(e)
		}
		return out
	}
	return v.Clone()
}

// ---------------------------------------------------------------------------
// Function
// ---------------------------------------------------------------------------

// NativeFunc is a built-in implemented in Go. Receiver is the bound value
// for methods and nil for free functions.
type NativeFunc func(ctx *ExecutionContext, receiver Value, args []Value) (Value, error)

// Function is a callable value. Exactly one of Decl, Native or External is
// set: Decl holds a dialect's own declaration node for user functions.
type Function struct {
	Name     string
	Arity    Arity
	Decl     any
	Env      *Environment
	Native   NativeFunc
	Receiver Value
	External *ExternalFunction
}

func (f *Function) Kind() Kind { return KindFunction }

func (f *Function) Clone() Value { return f }

// IsUser reports whether the function was declared in interpreted source.
func (f *Function) IsUser() bool { return f.Decl != nil }

// Arity bounds the number of arguments a callable accepts. Max < 0 means
// there is no upper bound.
type Arity struct {
	Min int
	Max int
}

func Exactly(n int) Arity { return Arity{Min: n, Max: n} }

func Between(min, max int) Arity { return Arity{Min: min, Max: max} }

func AtLeast(n int) Arity { return Arity{Min: n, Max: -1} }

func (a Arity) Accepts(n int) bool {
	if n < a.Min {
		return false
	}
	return a.Max < 0 || n <= a.Max
}

func (a Arity) String() string {
	switch {
	case a.Min == a.Max:
		return strconv.Itoa(a.Min)
	case a.Max < 0:
		return "at least " + strconv.Itoa(a.Min)
	default:
		return "between " + strconv.Itoa(a.Min) + " and " + strconv.Itoa(a.Max)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// IsNullish reports whether v is null or undefined.
func IsNullish(v Value) bool {
	k := v.Kind()
	return k == KindNull || k == KindUndefined
}

// DeepEqual compares values structurally: containers by content, scalars by
// kind and value. NaN is not equal to itself. Containers that refer back to
// themselves compare equal when their structure matches.
func DeepEqual(a, b Value) bool {
	return deepEqual(a, b, make(map[[2]Value]bool))
}

func deepEqual(a, b Value, comparing map[[2]Value]bool) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Number:
		return float64(av) == float64(b.(Number))
	case String:
		return av == b.(String)
	case Boolean:
		return av == b.(Boolean)
	case Null, Undefined:
		return true
	case *List:
		bv := b.(*List)
		if av == bv {
			return true
		}
		if len(av.Elements) != len(bv.Elements) {
			return false
		}
		pair := [2]Value{av, bv}
		if comparing[pair] {
			return true
		}
		comparing[pair] = true
		for i := range av.Elements {
			if !deepEqual(av.Elements[i], bv.Elements[i], comparing) {
				return false
			}
		}
		return true
	case *Dict:
		bv, ok := b.(*Dict)
		if !ok {
			return false
		}
		if av == bv {
			return true
		}
		if av.Len() != bv.Len() {
			return false
		}
		pair := [2]Value{av, bv}
		if comparing[pair] {
			return true
		}
		comparing[pair] = true
		for _, k := range av.keys {
			other, ok := bv.values[k]
			if !ok || !deepEqual(av.values[k], other, comparing) {
				return false
			}
		}
		return true
	case *Function:
		return av == b.(*Function)
	}
	return false
}
