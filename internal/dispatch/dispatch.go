// Package dispatch parses request frames and routes them to handlers over
// the shared keyspace and TTL heap, composing a status-plus-payload
// response for every command in the fixed GET/PUT/DEL/QUEUE/PUSH/POP/TTL
// table.
package dispatch

import (
	"encoding/binary"
	"errors"

	"github.com/Ap3pp3rs94/tempokv/internal/keyspace"
	"github.com/Ap3pp3rs94/tempokv/internal/ttlheap"
	"github.com/Ap3pp3rs94/tempokv/internal/value"
	"github.com/Ap3pp3rs94/tempokv/pkg/statuscode"
	"github.com/Ap3pp3rs94/tempokv/pkg/telemetry"
)

// Response is what a Dispatcher produces for one request frame; the
// driver is responsible for serializing it (status byte + payload) onto
// the wire.
type Response struct {
	Status  statuscode.Code
	Payload []byte // nil unless Status == OK and the command returns a value
}

// Dispatcher owns the keyspace and TTL heap and routes parsed command
// frames against them.
type Dispatcher struct {
	keys *keyspace.Keyspace
	heap *ttlheap.Heap
	log  *telemetry.Logger
}

// New returns a Dispatcher over keys and heap.
func New(keys *keyspace.Keyspace, heap *ttlheap.Heap, log *telemetry.Logger) *Dispatcher {
	if log == nil {
		log = telemetry.Nop
	}
	return &Dispatcher{keys: keys, heap: heap, log: log}
}

// Dispatch parses one request frame (u16 nargs, then nargs length-prefixed
// substrings) and executes the resulting command. A framing error never
// panics; it is reported as ClientError.
func (d *Dispatcher) Dispatch(frame []byte) Response {
	args, err := parseFrame(frame)
	if err != nil {
		return Response{Status: statuscode.ClientError}
	}
	if len(args) == 0 {
		return Response{Status: statuscode.BadCommand}
	}

	cmd := string(args[0])
	rest := args[1:]

	switch cmd {
	case "GET":
		return d.doGet(rest)
	case "PUT":
		return d.doPut(rest)
	case "DEL":
		return d.doDel(rest)
	case "QUEUE":
		return d.doQueue(rest)
	case "PUSH":
		return d.doPush(rest)
	case "POP":
		return d.doPop(rest)
	case "TTL":
		return d.doTTL(rest)
	default:
		return Response{Status: statuscode.BadCommand}
	}
}

// parseFrame splits a request frame into its raw substrings. The total
// parsed length must equal len(frame) exactly.
func parseFrame(frame []byte) ([][]byte, error) {
	if len(frame) < 2 {
		return nil, errors.New("dispatch: truncated frame header")
	}
	nargs := int(binary.LittleEndian.Uint16(frame[:2]))
	pos := 2
	args := make([][]byte, 0, nargs)
	for i := 0; i < nargs; i++ {
		if len(frame)-pos < 2 {
			return nil, errors.New("dispatch: truncated argument length")
		}
		argLen := int(binary.LittleEndian.Uint16(frame[pos : pos+2]))
		pos += 2
		if len(frame)-pos < argLen {
			return nil, errors.New("dispatch: truncated argument payload")
		}
		args = append(args, frame[pos:pos+argLen])
		pos += argLen
	}
	if pos != len(frame) {
		return nil, errors.New("dispatch: trailing bytes after frame")
	}
	return args, nil
}

// decodeKey decodes a raw argument as a hashable Value and maps it to the
// keyspace's canonical key representation in one step, so callers never
// handle the two separately.
func decodeKey(raw []byte) (keyspace.Key, statuscode.Code) {
	v, err := value.DecodeHashable(raw)
	if err != nil {
		return "", value.CodeOf(err)
	}
	canon, err := value.EncodeHashable(v)
	if err != nil {
		return "", statuscode.ServerError
	}
	return keyspace.Key(canon), statuscode.OK
}

// decodeTTL decodes a raw TTL argument (an encoded Datetime) into an
// absolute deadline.
func decodeTTL(raw []byte) (value.Datetime, statuscode.Code) {
	v, err := value.DecodeAny(raw)
	if err != nil {
		return value.Datetime{}, value.CodeOf(err)
	}
	dt, ok := v.(value.Datetime)
	if !ok {
		return value.Datetime{}, statuscode.BadType
	}
	return dt, statuscode.OK
}

func (d *Dispatcher) applyTTL(key keyspace.Key, args [][]byte) statuscode.Code {
	if len(args) == 0 {
		d.heap.Invalidate(ttlheap.Key(key))
		return statuscode.OK
	}
	dt, code := decodeTTL(args[0])
	if code != statuscode.OK {
		return code
	}
	d.heap.Put(ttlheap.Key(key), dt.Time)
	return statuscode.OK
}

func (d *Dispatcher) doGet(args [][]byte) Response {
	if len(args) != 1 {
		return Response{Status: statuscode.BadArgs}
	}
	key, code := decodeKey(args[0])
	if code != statuscode.OK {
		return Response{Status: code}
	}
	v, err := d.keys.Get(key)
	if err != nil {
		return Response{Status: statuscode.BadKey}
	}
	payload, err := value.EncodeAny(v)
	if err != nil {
		return Response{Status: statuscode.ServerError}
	}
	return Response{Status: statuscode.OK, Payload: payload}
}

func (d *Dispatcher) doPut(args [][]byte) Response {
	if len(args) != 2 && len(args) != 3 {
		return Response{Status: statuscode.BadArgs}
	}
	key, code := decodeKey(args[0])
	if code != statuscode.OK {
		return Response{Status: code}
	}
	v, err := value.DecodeAny(args[1])
	if err != nil {
		return Response{Status: value.CodeOf(err)}
	}
	d.keys.Set(key, v)

	var ttlArgs [][]byte
	if len(args) == 3 {
		ttlArgs = args[2:]
	}
	if code := d.applyTTL(key, ttlArgs); code != statuscode.OK {
		return Response{Status: code}
	}
	return Response{Status: statuscode.OK}
}

func (d *Dispatcher) doDel(args [][]byte) Response {
	if len(args) != 1 {
		return Response{Status: statuscode.BadArgs}
	}
	key, code := decodeKey(args[0])
	if code != statuscode.OK {
		return Response{Status: code}
	}
	existed := d.keys.Delete(key)
	if !existed {
		return Response{Status: statuscode.BadKey}
	}
	d.heap.Invalidate(ttlheap.Key(key))
	return Response{Status: statuscode.OK}
}

// doQueue creates a fresh empty deque at key. An optional TTL deadline is
// read at position 1 (nargs == 2), matching PUT and TTL's own arity.
func (d *Dispatcher) doQueue(args [][]byte) Response {
	if len(args) != 1 && len(args) != 2 {
		return Response{Status: statuscode.BadArgs}
	}
	key, code := decodeKey(args[0])
	if code != statuscode.OK {
		return Response{Status: code}
	}
	d.keys.PutEmptyDeque(key)

	var ttlArgs [][]byte
	if len(args) == 2 {
		ttlArgs = args[1:]
	}
	if code := d.applyTTL(key, ttlArgs); code != statuscode.OK {
		return Response{Status: code}
	}
	return Response{Status: statuscode.OK}
}

func (d *Dispatcher) doPush(args [][]byte) Response {
	if len(args) != 2 {
		return Response{Status: statuscode.BadArgs}
	}
	key, code := decodeKey(args[0])
	if code != statuscode.OK {
		return Response{Status: code}
	}
	v, err := value.DecodeCollectable(args[1])
	if err != nil {
		return Response{Status: value.CodeOf(err)}
	}

	err = d.keys.WithDequeMut(key, func(dq *value.Deque) error {
		dq.PushBack(v)
		return nil
	})
	switch {
	case errors.Is(err, keyspace.ErrNotFound):
		return Response{Status: statuscode.BadKey}
	case errors.Is(err, keyspace.ErrNotDeque):
		return Response{Status: statuscode.BadOp}
	case err != nil:
		return Response{Status: statuscode.ServerError}
	}
	return Response{Status: statuscode.OK}
}

func (d *Dispatcher) doPop(args [][]byte) Response {
	if len(args) != 1 {
		return Response{Status: statuscode.BadArgs}
	}
	key, code := decodeKey(args[0])
	if code != statuscode.OK {
		return Response{Status: code}
	}

	var popped value.Value
	var empty bool
	err := d.keys.WithDequeMut(key, func(dq *value.Deque) error {
		v, ok := dq.Front()
		if !ok {
			empty = true
			return nil
		}
		popped = v
		return nil
	})
	switch {
	case errors.Is(err, keyspace.ErrNotFound):
		return Response{Status: statuscode.BadKey}
	case errors.Is(err, keyspace.ErrNotDeque):
		return Response{Status: statuscode.BadOp}
	case err != nil:
		return Response{Status: statuscode.ServerError}
	}
	if empty {
		return Response{Status: statuscode.BadIndex}
	}
	payload, err := value.EncodeAny(popped)
	if err != nil {
		return Response{Status: statuscode.ServerError}
	}
	return Response{Status: statuscode.OK, Payload: payload}
}

func (d *Dispatcher) doTTL(args [][]byte) Response {
	if len(args) != 1 && len(args) != 2 {
		return Response{Status: statuscode.BadArgs}
	}
	key, code := decodeKey(args[0])
	if code != statuscode.OK {
		return Response{Status: code}
	}
	if _, err := d.keys.Get(key); err != nil {
		return Response{Status: statuscode.BadKey}
	}
	if code := d.applyTTL(key, args[1:]); code != statuscode.OK {
		return Response{Status: code}
	}
	return Response{Status: statuscode.OK}
}
