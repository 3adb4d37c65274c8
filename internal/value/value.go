// Package value implements tempokv's tagged-union Value type and its
// self-describing binary wire codec: three decode/encode validity tiers
// (arbitrary, collectable, hashable) sharing one recursive element
// dispatch, as required by the type grammar in the wire protocol.
package value

import (
	"container/list"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the Value variants. There are exactly nine; Deque has
// no wire symbol because it can only be created by the QUEUE command, never
// decoded from a client-supplied buffer.
type Kind byte

const (
	KindInt Kind = iota
	KindFloat
	KindBytes
	KindStr
	KindBool
	KindDatetime
	KindTuple
	KindList
	KindDeque
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindStr:
		return "str"
	case KindBool:
		return "bool"
	case KindDatetime:
		return "datetime"
	case KindTuple:
		return "tuple"
	case KindList:
		return "list"
	case KindDeque:
		return "deque"
	default:
		return "unknown"
	}
}

// Value is the sealed tagged union every stored or transmitted datum
// belongs to. Concrete variants implement it by value (scalars, Tuple,
// List) or by pointer (Deque, which has mutable identity).
type Value interface {
	Kind() Kind
}

type Int int64

func (Int) Kind() Kind { return KindInt }

type Float float64

func (Float) Kind() Kind { return KindFloat }

type Bytes []byte

func (Bytes) Kind() Kind { return KindBytes }

type Str string

func (Str) Kind() Kind { return KindStr }

type Bool bool

func (Bool) Kind() Kind { return KindBool }

// DatetimeLayout is the wire/display format: `%Y-%m-%d %H:%M:%S %z`.
const DatetimeLayout = "2006-01-02 15:04:05 -0700"

// Datetime is a wall-clock instant with a fixed timezone offset, formatted
// to the wire as a literal strftime-style string. Subsecond precision is
// dropped on purpose: DatetimeLayout has no fractional-seconds field.
type Datetime struct {
	Time time.Time
}

func (Datetime) Kind() Kind { return KindDatetime }

// String renders the datetime exactly as it is encoded on the wire.
func (d Datetime) String() string {
	return d.Time.Format(DatetimeLayout)
}

// ParseDatetime parses the wire strftime-style representation.
func ParseDatetime(s string) (Datetime, error) {
	t, err := time.Parse(DatetimeLayout, strings.TrimSpace(s))
	if err != nil {
		return Datetime{}, fmt.Errorf("value: bad datetime %q: %w", s, err)
	}
	return Datetime{Time: t}, nil
}

// Tuple is a fixed-length, immutable sequence. It is hashable iff every
// element is itself hashable (which, for these variants, implies
// collectable too).
type Tuple []Value

func (Tuple) Kind() Kind { return KindTuple }

// List is a mutable sequence. It is never hashable and never collectable
// (no collection may nest inside another collection).
type List []Value

func (List) Kind() Kind { return KindList }

// Deque is a double-ended queue, created only by the QUEUE command. It is
// never hashable, never collectable, and has no wire symbol of its own —
// only its popped elements travel the wire.
type Deque struct {
	elems *list.List
}

func (*Deque) Kind() Kind { return KindDeque }

// NewDeque returns a fresh, empty deque.
func NewDeque() *Deque {
	return &Deque{elems: list.New()}
}

// PushBack appends v, which the caller must have already validated as
// collectable.
func (d *Deque) PushBack(v Value) {
	d.elems.PushBack(v)
}

// Len returns the number of elements currently queued.
func (d *Deque) Len() int { return d.elems.Len() }

// Front removes and returns the front element.
func (d *Deque) Front() (Value, bool) {
	e := d.elems.Front()
	if e == nil {
		return nil, false
	}
	d.elems.Remove(e)
	return e.Value.(Value), true
}

// IsHashable reports whether v may legally appear in key position.
func IsHashable(v Value) bool {
	switch x := v.(type) {
	case Int, Float, Bytes, Str:
		return true
	case Tuple:
		for _, e := range x {
			if !IsHashable(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsCollectable reports whether v may legally appear as an element of a
// List, Tuple, or Deque.
func IsCollectable(v Value) bool {
	switch x := v.(type) {
	case Int, Float, Bytes, Str, Bool, Datetime:
		return true
	case Tuple:
		for _, e := range x {
			if !IsCollectable(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Equal performs a deep structural comparison, used by tests and by the
// round-trip properties. Deque is never compared (it has no stable wire
// form and no two decoded Values are ever Deques).
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Int:
		return x == b.(Int)
	case Float:
		return x == b.(Float)
	case Bytes:
		y := b.(Bytes)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case Str:
		return x == b.(Str)
	case Bool:
		return x == b.(Bool)
	case Datetime:
		return x.Time.Equal(b.(Datetime).Time)
	case Tuple:
		y := b.(Tuple)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case List:
		y := b.(List)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
