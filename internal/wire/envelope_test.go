package wire

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("hello, tunnel")

	sealed, err := Seal(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if len(sealed) < len(plaintext)+16+NonceSize {
		t.Fatalf("sealed too short: %d bytes", len(sealed))
	}

	opened, err := Open(key, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("opened = %q, want %q", opened, plaintext)
	}
}

func TestOpenTamperedFails(t *testing.T) {
	key := testKey(t)
	sealed, err := Seal(key, []byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed[0] ^= 0xFF

	if _, err := Open(key, sealed); err == nil {
		t.Fatal("expected tampered frame to fail to open")
	}
}

func TestOpenShortFrame(t *testing.T) {
	if _, err := Open(testKey(t), []byte{1, 2, 3}); err != ErrSealedFrameTooShort {
		t.Fatalf("err = %v, want ErrSealedFrameTooShort", err)
	}
}

func TestXORInvolution(t *testing.T) {
	key := []byte("shared-secret")
	data := []byte("obfuscate this DNS payload please")

	encoded := XOR(data, key)
	decoded := XOR(encoded, key)

	if !bytes.Equal(decoded, data) {
		t.Fatalf("decoded = %q, want %q", decoded, data)
	}
	if bytes.Equal(encoded, data) && len(data) > 0 {
		t.Fatal("xor did not change data")
	}
}
