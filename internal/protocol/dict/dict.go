// Package dict owns the typed key-value dictionary wire format.
//
// Entry layout (big endian):
//   - key    uint32
//   - type   uint8
//   - length uint16
//   - value  length bytes
package dict

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	HeaderLen       = 7
	DefaultCapacity = 64
)

var (
	ErrCapacityExceeded = errors.New("dict: capacity exceeded")
	ErrMalformedMessage = errors.New("dict: malformed message")
	ErrInvalidValue     = errors.New("dict: invalid value")
	ErrDuplicateKey     = errors.New("dict: duplicate key")
	ErrTypeMismatch     = errors.New("dict: type mismatch")

	ErrShortEntryHeader = errors.New("dict: short entry header")
	ErrShortEntryValue  = errors.New("dict: short entry value")
	ErrUnknownType      = errors.New("dict: unknown type tag")
	ErrWidthMismatch    = errors.New("dict: integer width mismatch")
)

// Key identifies one entry in a dictionary.
type Key uint32

// Entry is one key/value pair of a dictionary message.
type Entry struct {
	Key   Key
	Value Value
}

func (e Entry) String() string {
	return fmt.Sprintf("%d=%v", e.Key, e.Value)
}

// Codec encodes and decodes dictionaries bounded by Capacity bytes.
// The zero value uses DefaultCapacity.
type Codec struct {
	Capacity int
}

func NewCodec(capacity int) Codec {
	return Codec{Capacity: capacity}
}

func (c Codec) capacity() int {
	if c.Capacity <= 0 {
		return DefaultCapacity
	}
	return c.Capacity
}

// EntrySize is the encoded size of one entry holding v.
func EntrySize(v Value) int {
	return HeaderLen + v.Len()
}

// EncodedSize returns the number of bytes entries occupy on the wire.
func EncodedSize(entries []Entry) int {
	total := 0
	for _, e := range entries {
		if e.Value == nil {
			continue
		}
		total += EntrySize(e.Value)
	}
	return total
}

// Encode writes entries in order. Encoding fails without output when the result
// would be larger than the codec capacity.
func (c Codec) Encode(entries []Entry) ([]byte, error) {
	seen := make(map[Key]struct{}, len(entries))
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
		if _, dup := seen[e.Key]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateKey, e.Key)
		}
		seen[e.Key] = struct{}{}
	}
	size := EncodedSize(entries)
	if size > c.capacity() {
		return nil, fmt.Errorf("%w: need %d bytes, capacity %d", ErrCapacityExceeded, size, c.capacity())
	}
	out := make([]byte, 0, size)
	for _, e := range entries {
		out = appendEntry(out, e)
	}
	return out, nil
}

func validateEntry(e Entry) error {
	switch v := e.Value.(type) {
	case Uint:
		if err := v.validate(); err != nil {
			return fmt.Errorf("key %d: %w", e.Key, err)
		}
	case Text:
		if len(v) > 0xFFFF {
			return fmt.Errorf("%w: key %d text length %d", ErrInvalidValue, e.Key, len(v))
		}
	default:
		return fmt.Errorf("%w: key %d has no value", ErrInvalidValue, e.Key)
	}
	return nil
}

func appendEntry(b []byte, e Entry) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(e.Key))
	b = append(b, e.Value.Type())
	b = binary.BigEndian.AppendUint16(b, uint16(e.Value.Len()))
	return e.Value.appendPayload(b)
}

// Decode parses payload in one forward pass. Every declared length is checked
// against the remaining bytes before the value is copied out, so returned
// entries never alias payload.
func (c Codec) Decode(payload []byte) ([]Entry, error) {
	if len(payload) > c.capacity() {
		return nil, fmt.Errorf("%w: payload %d bytes, capacity %d", ErrCapacityExceeded, len(payload), c.capacity())
	}
	entries := make([]Entry, 0, 4)
	seen := make(map[Key]struct{}, 4)
	for offset := 0; offset < len(payload); {
		if len(payload)-offset < HeaderLen {
			return nil, fmt.Errorf("%w: %w at offset %d", ErrMalformedMessage, ErrShortEntryHeader, offset)
		}
		key := Key(binary.BigEndian.Uint32(payload[offset : offset+4]))
		typeID := payload[offset+4]
		length := int(binary.BigEndian.Uint16(payload[offset+5 : offset+7]))
		offset += HeaderLen
		if length > len(payload)-offset {
			return nil, fmt.Errorf("%w: %w: key %d declares %d bytes, %d remain", ErrMalformedMessage, ErrShortEntryValue, key, length, len(payload)-offset)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %w: %d", ErrMalformedMessage, ErrDuplicateKey, key)
		}
		seen[key] = struct{}{}

		raw := payload[offset : offset+length]
		offset += length
		v, err := decodeValue(typeID, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: key %d: %w", ErrMalformedMessage, key, err)
		}
		entries = append(entries, Entry{Key: key, Value: v})
	}
	return entries, nil
}

func decodeValue(typeID uint8, raw []byte) (Value, error) {
	switch typeID {
	case TypeUint8:
		if len(raw) != 1 {
			return nil, fmt.Errorf("%w: u8 with %d bytes", ErrWidthMismatch, len(raw))
		}
		return U8(raw[0]), nil
	case TypeUint16:
		if len(raw) != 2 {
			return nil, fmt.Errorf("%w: u16 with %d bytes", ErrWidthMismatch, len(raw))
		}
		return U16(binary.BigEndian.Uint16(raw)), nil
	case TypeUint32:
		if len(raw) != 4 {
			return nil, fmt.Errorf("%w: u32 with %d bytes", ErrWidthMismatch, len(raw))
		}
		return U32(binary.BigEndian.Uint32(raw)), nil
	case TypeText:
		val := make(Text, len(raw))
		copy(val, raw)
		return val, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, typeID)
	}
}

// Get returns the value stored under key, if present.
func Get(entries []Entry, key Key) (Value, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
