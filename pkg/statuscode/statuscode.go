// Package statuscode defines the fixed numeric response codes returned by
// the dispatcher, one byte per response, plus metadata describing each.
package statuscode

import "sort"

// Code is a one-byte response status. The set is closed and wire-stable:
// clients hard-code these numbers, so existing values must never change
// meaning, and a new code only ever gets added, never renumbered.
type Code byte

const (
	OK               Code = 0
	Unknown          Code = 11
	ServerError      Code = 21
	ClientError      Code = 22
	BadCommand       Code = 31
	BadType          Code = 32
	BadKey           Code = 33
	BadArgs          Code = 34
	BadOp            Code = 35
	BadIndex         Code = 36
	BadHash          Code = 37
	BadCollection    Code = 38
)

// Kind buckets a code by who is responsible for the failure, mirroring the
// client/server/security/dependency split used elsewhere in this codebase's
// error taxonomies, narrowed to what a single in-memory store can produce.
type Kind string

const (
	KindNone   Kind = "none"
	KindServer Kind = "server"
	KindClient Kind = "client"
)

// Meta describes one status code.
type Meta struct {
	Kind        Kind   `json:"kind"`
	Retryable   bool   `json:"retryable"`
	Description string `json:"description"`
}

var registry = map[Code]Meta{
	OK:            {Kind: KindNone, Retryable: false, Description: "ok"},
	Unknown:       {Kind: KindServer, Retryable: false, Description: "unknown or catch-all failure"},
	ServerError:   {Kind: KindServer, Retryable: false, Description: "server-side error (corrupted primitive)"},
	ClientError:   {Kind: KindClient, Retryable: false, Description: "client-side framing error"},
	BadCommand:    {Kind: KindClient, Retryable: false, Description: "unknown command"},
	BadType:       {Kind: KindClient, Retryable: false, Description: "bad type: unknown symbol or undecodable payload"},
	BadKey:        {Kind: KindClient, Retryable: false, Description: "missing key"},
	BadArgs:       {Kind: KindClient, Retryable: false, Description: "bad argument count"},
	BadOp:         {Kind: KindClient, Retryable: false, Description: "wrong operation for the value's type"},
	BadIndex:      {Kind: KindClient, Retryable: false, Description: "index out of range"},
	BadHash:       {Kind: KindClient, Retryable: false, Description: "value not hashable in key position"},
	BadCollection: {Kind: KindClient, Retryable: false, Description: "forbidden nested collection"},
}

// Lookup returns metadata for a code, and whether it is known.
func Lookup(c Code) (Meta, bool) {
	m, ok := registry[c]
	return m, ok
}

// Known reports whether c is a recognized status code.
func Known(c Code) bool {
	_, ok := registry[c]
	return ok
}

// All returns every known code, ascending.
func All() []Code {
	out := make([]Code, 0, len(registry))
	for c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c Code) String() string {
	if m, ok := registry[c]; ok {
		return m.Description
	}
	return "unrecognized status code"
}
