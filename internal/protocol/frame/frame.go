// Package frame wraps one dictionary payload per transport message.
//
// Header layout (big endian, 10 bytes):
//   - magic       uint16 ("WS")
//   - version     uint8
//   - kind        uint8
//   - message_id  uint32
//   - payload_len uint16
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/watchsync/internal/protocol/dict"
)

const (
	HeaderLen        = 10
	Magic     uint16 = 0x5753
	Version   uint8  = 1
)

// Kind says what the payload is for.
type Kind uint8

const (
	KindRequest Kind = 1
	KindUpdate  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindUpdate:
		return "update"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrBadMagic        = errors.New("frame: bad magic")
	ErrBadVersion      = errors.New("frame: unsupported version")
	ErrUnknownKind     = errors.New("frame: unknown kind")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrLengthMismatch  = errors.New("frame: payload length mismatch")
)

// Header is the fixed wire header.
type Header struct {
	Magic      uint16
	Version    uint8
	Kind       Kind
	MessageID  uint32
	PayloadLen uint16
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// New builds a frame with the current magic and version.
func New(kind Kind, id uint32, payload []byte) Frame {
	return Frame{
		Header:  Header{Magic: Magic, Version: Version, Kind: kind, MessageID: id},
		Payload: payload,
	}
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: dict.DefaultCapacity}
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if err := h.check(limits); err != nil {
		return Frame{}, err
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("%w: %w", ErrLengthMismatch, err)
		}
	}
	return Frame{Header: h, Payload: payload}, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	b, err := Marshal(f, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Marshal encodes f into a single buffer, filling in PayloadLen.
func Marshal(f Frame, limits Limits) ([]byte, error) {
	if len(f.Payload) > limits.MaxPayloadBytes || len(f.Payload) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(f.Payload), limits.MaxPayloadBytes)
	}
	h := f.Header
	if h.Magic == 0 {
		h.Magic = Magic
	}
	if h.Version == 0 {
		h.Version = Version
	}
	h.PayloadLen = uint16(len(f.Payload))
	out := make([]byte, 0, HeaderLen+len(f.Payload))
	out = append(out, EncodeHeader(h)...)
	return append(out, f.Payload...), nil
}

// Unmarshal decodes a message that must hold exactly one frame.
func Unmarshal(b []byte, limits Limits) (Frame, error) {
	r := bytes.NewReader(b)
	f, err := ReadFrame(r, limits)
	if err != nil {
		return Frame{}, err
	}
	if r.Len() != 0 {
		return Frame{}, fmt.Errorf("%w: %d trailing bytes", ErrLengthMismatch, r.Len())
	}
	return f, nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], h.Magic)
	buf[2] = h.Version
	buf[3] = uint8(h.Kind)
	binary.BigEndian.PutUint32(buf[4:8], h.MessageID)
	binary.BigEndian.PutUint16(buf[8:10], h.PayloadLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("frame: invalid header length: %d", len(b))
	}
	return Header{
		Magic:      binary.BigEndian.Uint16(b[0:2]),
		Version:    b[2],
		Kind:       Kind(b[3]),
		MessageID:  binary.BigEndian.Uint32(b[4:8]),
		PayloadLen: binary.BigEndian.Uint16(b[8:10]),
	}, nil
}

func (h Header) check(limits Limits) error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: 0x%04x", ErrBadMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}
	if h.Kind != KindRequest && h.Kind != KindUpdate {
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(h.Kind))
	}
	if int(h.PayloadLen) > limits.MaxPayloadBytes {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.PayloadLen, limits.MaxPayloadBytes)
	}
	return nil
}
