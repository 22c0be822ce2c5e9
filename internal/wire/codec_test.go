package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.WriteOpcode(SignApprove).
		WriteUint16(50000).
		WriteUint32(4).
		WriteString([]byte("abcd"))

	dec := NewDecoder(enc.Bytes())

	op, err := dec.ReadOpcode()
	if err != nil || op != SignApprove {
		t.Fatalf("opcode = %v, %v; want SignApprove, nil", op, err)
	}
	port, err := dec.ReadUint16()
	if err != nil || port != 50000 {
		t.Fatalf("uint16 = %v, %v; want 50000, nil", port, err)
	}
	length, err := dec.ReadUint32()
	if err != nil || length != 4 {
		t.Fatalf("uint32 = %v, %v; want 4, nil", length, err)
	}
	s, err := dec.ReadString()
	if err != nil || string(s) != "abcd" {
		t.Fatalf("string = %q, %v; want abcd, nil", s, err)
	}
}

func TestReadStringEmpty(t *testing.T) {
	enc := NewEncoder().WriteString(nil)
	if len(enc.Bytes()) != 4 {
		t.Fatalf("encoded empty string length = %d, want 4", len(enc.Bytes()))
	}

	dec := NewDecoder(enc.Bytes())
	s, err := dec.ReadString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 0 {
		t.Fatalf("decoded string = %v, want empty", s)
	}
}

func TestDecoderPastEndIsFatal(t *testing.T) {
	dec := NewDecoder([]byte{0x01})
	if _, err := dec.ReadUint32(); err != ErrShortBuffer {
		t.Fatalf("err = %v, want ErrShortBuffer", err)
	}
}

func TestOpcodeFromByteUndefined(t *testing.T) {
	if op := OpcodeFromByte(0x00); op != Undefined {
		t.Fatalf("op = %v, want Undefined", op)
	}
	if op := OpcodeFromByte(byte(Trace)); op != Trace {
		t.Fatalf("op = %v, want Trace", op)
	}
}
