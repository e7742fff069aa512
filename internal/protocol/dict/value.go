package dict

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

// Type IDs carried in each entry header.
const (
	TypeUint8  uint8 = 1
	TypeUint16 uint8 = 2
	TypeUint32 uint8 = 3
	TypeText   uint8 = 6
)

// Value is a sealed sum type: only Uint and Text implement it.
type Value interface {
	// Type returns the wire type tag.
	Type() uint8
	// Len returns the payload length in bytes.
	Len() int
	appendPayload(b []byte) []byte
	dictValue()
}

// Uint is an unsigned integer stored in 1, 2 or 4 bytes.
type Uint struct {
	Width uint8
	V     uint32
}

func (Uint) dictValue() {}

func (u Uint) Type() uint8 {
	switch u.Width {
	case 1:
		return TypeUint8
	case 2:
		return TypeUint16
	case 4:
		return TypeUint32
	default:
		return 0
	}
}

func (u Uint) Len() int { return int(u.Width) }

func (u Uint) appendPayload(b []byte) []byte {
	switch u.Width {
	case 1:
		return append(b, byte(u.V))
	case 2:
		return binary.BigEndian.AppendUint16(b, uint16(u.V))
	default:
		return binary.BigEndian.AppendUint32(b, u.V)
	}
}

func (u Uint) String() string {
	return "u" + strconv.Itoa(int(u.Width)*8) + "(" + strconv.FormatUint(uint64(u.V), 10) + ")"
}

func (u Uint) validate() error {
	switch u.Width {
	case 1:
		if u.V > 0xFF {
			return fmt.Errorf("%w: %d overflows u8", ErrInvalidValue, u.V)
		}
	case 2:
		if u.V > 0xFFFF {
			return fmt.Errorf("%w: %d overflows u16", ErrInvalidValue, u.V)
		}
	case 4:
	default:
		return fmt.Errorf("%w: unsupported integer width %d", ErrInvalidValue, u.Width)
	}
	return nil
}

// Text is a length-prefixed UTF-8 byte sequence. A trailing NUL, if present, is
// part of the stored bytes.
type Text []byte

func (Text) dictValue() {}

func (Text) Type() uint8 { return TypeText }

func (t Text) Len() int { return len(t) }

func (t Text) appendPayload(b []byte) []byte { return append(b, t...) }

func (t Text) String() string { return strconv.Quote(string(t)) }

// U8 creates a one byte unsigned value.
func U8(v uint8) Uint { return Uint{Width: 1, V: uint32(v)} }

// U16 creates a two byte unsigned value.
func U16(v uint16) Uint { return Uint{Width: 2, V: uint32(v)} }

// U32 creates a four byte unsigned value.
func U32(v uint32) Uint { return Uint{Width: 4, V: v} }

// String creates a text value from s without a terminator.
func String(s string) Text { return Text(s) }

// Equal reports whether a and b have the same type tag and identical payload bytes.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() || a.Len() != b.Len() {
		return false
	}
	return bytes.Equal(a.appendPayload(nil), b.appendPayload(nil))
}

// Clone returns a copy of v that shares no memory with it.
func Clone(v Value) Value {
	switch tv := v.(type) {
	case Text:
		out := make(Text, len(tv))
		copy(out, tv)
		return out
	case Uint:
		return tv
	default:
		return nil
	}
}

// AsUint returns the integer held by v.
func AsUint(v Value) (uint32, error) {
	switch tv := v.(type) {
	case Uint:
		return tv.V, nil
	case Text:
		return 0, fmt.Errorf("%w: want integer, got text", ErrTypeMismatch)
	default:
		return 0, fmt.Errorf("%w: want integer, got %T", ErrTypeMismatch, v)
	}
}

// AsText returns the text held by v with trailing NUL terminators removed.
func AsText(v Value) (string, error) {
	switch tv := v.(type) {
	case Text:
		return string(bytes.TrimRight(tv, "\x00")), nil
	case Uint:
		return "", fmt.Errorf("%w: want text, got %s", ErrTypeMismatch, tv)
	default:
		return "", fmt.Errorf("%w: want text, got %T", ErrTypeMismatch, v)
	}
}
