package dict

import (
	"errors"
	"testing"

	"github.com/danmuck/watchsync/internal/testutil/testlog"
)

func TestEqualComparesTypeAndBytes(t *testing.T) {
	testlog.Start(t)
	if !Equal(U8(2), U8(2)) {
		t.Fatalf("expected equal u8 values")
	}
	if Equal(U8(2), U16(2)) {
		t.Fatalf("u8 and u16 must differ")
	}
	if Equal(String("58°F"), String("58°F\x00")) {
		t.Fatalf("terminator is part of the stored bytes")
	}
	if Equal(String("a"), nil) || !Equal(nil, nil) {
		t.Fatalf("nil handling mismatch")
	}
}

func TestAsTextTrimsTerminator(t *testing.T) {
	testlog.Start(t)
	got, err := AsText(Text("58°F\x00"))
	if err != nil {
		t.Fatalf("as text: %v", err)
	}
	if got != "58°F" {
		t.Fatalf("unexpected text: %q", got)
	}
	if _, err := AsText(U8(1)); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestAsUint(t *testing.T) {
	testlog.Start(t)
	got, err := AsUint(U16(513))
	if err != nil || got != 513 {
		t.Fatalf("as uint: got=%d err=%v", got, err)
	}
	if _, err := AsUint(String("7")); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestCloneDoesNotShareText(t *testing.T) {
	testlog.Start(t)
	orig := Text("abc")
	cp := Clone(orig).(Text)
	orig[0] = 'z'
	if string(cp) != "abc" {
		t.Fatalf("clone shares memory: %q", string(cp))
	}
}
