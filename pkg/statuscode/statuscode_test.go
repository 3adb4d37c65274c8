package statuscode

import "testing"

func TestAllCodesKnown(t *testing.T) {
	for _, c := range All() {
		if !Known(c) {
			t.Fatalf("code %d from All() not Known", c)
		}
	}
}

func TestLookupUnknownCode(t *testing.T) {
	if _, ok := Lookup(Code(99)); ok {
		t.Fatalf("code 99 should be unknown")
	}
}

func TestOKHasNoneKind(t *testing.T) {
	m, ok := Lookup(OK)
	if !ok || m.Kind != KindNone {
		t.Fatalf("OK: want KindNone, got %+v", m)
	}
}
