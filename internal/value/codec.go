package value

import (
	"encoding/binary"
	"strconv"
	"unicode/utf8"

	"github.com/Ap3pp3rs94/tempokv/pkg/statuscode"
)

// mode is the decode/encode validity tier in effect for the current call.
// Collection elements are always decoded at least as collectable; a Tuple
// being validated as a key passes modeHashable down to its elements.
type mode int

const (
	modeAny mode = iota
	modeCollectable
	modeHashable
)

// DecodeAny accepts any variant. buf must be exactly one value's encoding.
// For Bool and collections, trailing or missing bytes are a ClientError;
// Int, Float, Bytes and Str payloads run to the end of buf, so a trailing
// byte there is read as part of the payload.
func DecodeAny(buf []byte) (Value, error) {
	return decodeTop(buf, modeAny)
}

// DecodeCollectable rejects List (and Deque, unreachable on the wire) with
// BadCollection.
func DecodeCollectable(buf []byte) (Value, error) {
	return decodeTop(buf, modeCollectable)
}

// DecodeHashable accepts only Int, Float, Bytes, Str, and Tuple whose every
// element is itself hashable, failing with BadHash on violation.
func DecodeHashable(buf []byte) (Value, error) {
	return decodeTop(buf, modeHashable)
}

func decodeTop(buf []byte, m mode) (Value, error) {
	v, n, err := decode(buf, m)
	if err != nil {
		return nil, err
	}
	if n != len(buf) {
		return nil, newDecodeErr(statuscode.ClientError, "value: trailing bytes after decode")
	}
	return v, nil
}

// decode parses one value starting at buf[0] and returns it plus the
// number of bytes consumed. buf may be longer than the value (used when
// decode is called on a frame which must exactly consume it — checked by
// the caller) or exactly sized (used by collection-element recursion,
// where the length is already fixed by the outer length prefix).
func decode(buf []byte, m mode) (Value, int, error) {
	if len(buf) < 1 {
		return nil, 0, newDecodeErr(statuscode.ClientError, "value: empty buffer")
	}
	sym := buf[0]
	rest := buf[1:]

	switch sym {
	case SymInt:
		return decodeInt(rest)
	case SymFloat:
		return decodeFloat(rest)
	case SymBytes:
		return decodeBytes(rest)
	case SymStr:
		return decodeStr(rest)
	case SymBool:
		if m == modeHashable {
			return nil, 0, newDecodeErr(statuscode.BadHash, "value: bool is not hashable")
		}
		return decodeBool(rest)
	case SymDatetime:
		if m == modeHashable {
			return nil, 0, newDecodeErr(statuscode.BadHash, "value: datetime is not hashable")
		}
		return decodeDatetime(rest)
	case SymList:
		if m == modeHashable {
			return nil, 0, newDecodeErr(statuscode.BadHash, "value: list is not hashable")
		}
		if m == modeCollectable {
			return nil, 0, newDecodeErr(statuscode.BadCollection, "value: list cannot nest inside a collection")
		}
		items, n, err := decodeItems(rest, modeCollectable)
		if err != nil {
			return nil, 0, err
		}
		return List(items), 1 + n, nil
	case SymTuple:
		elemMode := modeCollectable
		if m == modeHashable {
			elemMode = modeHashable
		}
		items, n, err := decodeItems(rest, elemMode)
		if err != nil {
			return nil, 0, err
		}
		return Tuple(items), 1 + n, nil
	default:
		return nil, 0, newDecodeErr(statuscode.BadType, "value: unknown type symbol")
	}
}

func decodeInt(rest []byte) (Value, int, error) {
	n, err := strconv.ParseInt(string(rest), 10, 64)
	if err != nil {
		return nil, 0, newDecodeErr(statuscode.BadType, "value: malformed int")
	}
	return Int(n), 1 + len(rest), nil
}

func decodeFloat(rest []byte) (Value, int, error) {
	f, err := strconv.ParseFloat(string(rest), 64)
	if err != nil {
		return nil, 0, newDecodeErr(statuscode.BadType, "value: malformed float")
	}
	return Float(f), 1 + len(rest), nil
}

func decodeBytes(rest []byte) (Value, int, error) {
	out := make([]byte, len(rest))
	copy(out, rest)
	return Bytes(out), 1 + len(rest), nil
}

func decodeStr(rest []byte) (Value, int, error) {
	if !utf8.Valid(rest) {
		return nil, 0, newDecodeErr(statuscode.BadType, "value: malformed utf-8 string")
	}
	return Str(string(rest)), 1 + len(rest), nil
}

func decodeBool(rest []byte) (Value, int, error) {
	if len(rest) != 1 {
		return nil, 0, newDecodeErr(statuscode.ClientError, "value: bool must be exactly one byte")
	}
	switch rest[0] {
	case '0':
		return Bool(false), 2, nil
	case '1':
		return Bool(true), 2, nil
	default:
		return nil, 0, newDecodeErr(statuscode.BadType, "value: malformed bool")
	}
}

func decodeDatetime(rest []byte) (Value, int, error) {
	dt, err := ParseDatetime(string(rest))
	if err != nil {
		return nil, 0, newDecodeErr(statuscode.BadType, "value: malformed datetime")
	}
	return dt, 1 + len(rest), nil
}

// decodeItems parses a collection body: u16 item count then that many
// length-prefixed items, each decoded under elemMode. Returns bytes
// consumed from the start of buf (i.e. including the count header).
func decodeItems(buf []byte, elemMode mode) ([]Value, int, error) {
	if len(buf) < 2 {
		return nil, 0, newDecodeErr(statuscode.ClientError, "value: truncated item count")
	}
	count := binary.LittleEndian.Uint16(buf[:2])
	pos := 2
	items := make([]Value, 0, count)
	for i := 0; i < int(count); i++ {
		if len(buf)-pos < 2 {
			return nil, 0, newDecodeErr(statuscode.ClientError, "value: truncated item length")
		}
		itemLen := int(binary.LittleEndian.Uint16(buf[pos : pos+2]))
		pos += 2
		if len(buf)-pos < itemLen {
			return nil, 0, newDecodeErr(statuscode.ClientError, "value: truncated item payload")
		}
		item := buf[pos : pos+itemLen]
		pos += itemLen

		v, n, err := decode(item, elemMode)
		if err != nil {
			return nil, 0, err
		}
		if n != len(item) {
			return nil, 0, newDecodeErr(statuscode.ClientError, "value: item length mismatch")
		}
		items = append(items, v)
	}
	return items, pos, nil
}

// EncodeAny encodes any Value. It is the caller's responsibility to only
// pass in-memory Values that already satisfy the structural invariants
// (no nested List/Deque); a violation here is a consistency bug, not a
// client error, and EncodeAny reports it as such.
func EncodeAny(v Value) ([]byte, error) {
	return encode(v, modeAny)
}

// EncodeCollectable encodes v, refusing List (and Deque).
func EncodeCollectable(v Value) ([]byte, error) {
	return encode(v, modeCollectable)
}

// EncodeHashable encodes v, refusing anything not hashable.
func EncodeHashable(v Value) ([]byte, error) {
	return encode(v, modeHashable)
}

func encode(v Value, m mode) ([]byte, error) {
	switch m {
	case modeHashable:
		if !IsHashable(v) {
			return nil, newDecodeErr(statuscode.ServerError, "value: encode_hashable called on non-hashable value")
		}
	case modeCollectable:
		if !IsCollectable(v) {
			return nil, newDecodeErr(statuscode.ServerError, "value: encode_collectable called on non-collectable value")
		}
	}

	switch x := v.(type) {
	case Int:
		return append([]byte{SymInt}, []byte(strconv.FormatInt(int64(x), 10))...), nil
	case Float:
		return append([]byte{SymFloat}, []byte(strconv.FormatFloat(float64(x), 'g', -1, 64))...), nil
	case Bytes:
		out := make([]byte, 0, 1+len(x))
		out = append(out, SymBytes)
		return append(out, x...), nil
	case Str:
		out := make([]byte, 0, 1+len(x))
		out = append(out, SymStr)
		return append(out, x...), nil
	case Bool:
		b := byte('0')
		if x {
			b = '1'
		}
		return []byte{SymBool, b}, nil
	case Datetime:
		return append([]byte{SymDatetime}, []byte(x.String())...), nil
	case List:
		return encodeItems(SymList, []Value(x), modeCollectable)
	case Tuple:
		return encodeItems(SymTuple, []Value(x), modeCollectable)
	default:
		return nil, newDecodeErr(statuscode.ServerError, "value: unencodable value kind")
	}
}

func encodeItems(sym byte, items []Value, elemMode mode) ([]byte, error) {
	out := []byte{sym}
	countBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(countBuf, uint16(len(items)))
	out = append(out, countBuf...)

	for _, item := range items {
		enc, err := encode(item, elemMode)
		if err != nil {
			return nil, err
		}
		lenBuf := make([]byte, 2)
		binary.LittleEndian.PutUint16(lenBuf, uint16(len(enc)))
		out = append(out, lenBuf...)
		out = append(out, enc...)
	}
	return out, nil
}
