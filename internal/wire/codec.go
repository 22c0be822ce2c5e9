package wire

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by Decoder reads that would run past the
// end of the underlying buffer. The control-plane handshake treats it as
// a fatal framing error and terminates the connection; the inbound
// data-plane forwarder drops the datagram.
var ErrShortBuffer = errors.New("wire: read past end of buffer")

// Decoder is a cursor-style reader over a fixed byte slice, used to pull
// out the big-endian primitives that make up a frame.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for sequential primitive reads starting at offset 0.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, ErrShortBuffer
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadUint8 reads a single byte.
func (d *Decoder) ReadUint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a big-endian u16.
func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint32 reads a big-endian u32.
func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadOpcode reads a single byte and maps it to an Opcode.
func (d *Decoder) ReadOpcode() (Opcode, error) {
	b, err := d.ReadUint8()
	if err != nil {
		return Undefined, err
	}
	return OpcodeFromByte(b), nil
}

// ReadString reads a u32 length prefix followed by that many raw bytes.
// A zero length decodes to an empty, non-nil slice.
func (d *Decoder) ReadString() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Encoder is an append-only writer of the same big-endian primitives.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// WriteUint8 appends a single byte.
func (e *Encoder) WriteUint8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

// WriteUint16 appends a big-endian u16.
func (e *Encoder) WriteUint16(v uint16) *Encoder {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// WriteUint32 appends a big-endian u32.
func (e *Encoder) WriteUint32(v uint32) *Encoder {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// WriteOpcode appends the opcode's byte value.
func (e *Encoder) WriteOpcode(op Opcode) *Encoder {
	return e.WriteUint8(byte(op))
}

// WriteString appends a u32 length prefix followed by v.
func (e *Encoder) WriteString(v []byte) *Encoder {
	e.WriteUint32(uint32(len(v)))
	e.buf = append(e.buf, v...)
	return e
}

// Bytes returns the accumulated plaintext envelope.
func (e *Encoder) Bytes() []byte {
	return e.buf
}
