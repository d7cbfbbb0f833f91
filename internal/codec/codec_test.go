package codec

import (
	"bytes"
	"strings"
	"testing"
)

func TestPublicKeyTextRoundTrip(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	pub, err := ParsePublicKey(c.PublicKeyText())
	if err != nil {
		t.Fatalf("parse own key: %v", err)
	}
	if pub.N.Cmp(c.key.PublicKey.N) != 0 {
		t.Fatal("parsed modulus differs from exported key")
	}
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"empty", ""},
		{"base64 but not a key", "aGVsbG8gd29ybGQ="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePublicKey(tt.in); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEncryptDecrypt(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	msg := []byte("small handshake payload")
	enc, err := Encrypt(msg, &c.key.PublicKey)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	dec, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, msg) {
		t.Fatalf("roundtrip mismatch: got %q", dec)
	}
}

func TestEncryptRejectsOversizedPlaintext(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	big := []byte(strings.Repeat("x", 191))
	if _, err := Encrypt(big, &c.key.PublicKey); err != ErrPlaintextTooLarge {
		t.Fatalf("expected ErrPlaintextTooLarge, got %v", err)
	}
	// 190 bytes is exactly the 2048-bit OAEP capacity
	if _, err := Encrypt(big[:190], &c.key.PublicKey); err != nil {
		t.Fatalf("190 bytes should fit: %v", err)
	}
}

func TestSessionKeyWrapUnwrap(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	key, err := NewSessionKey()
	if err != nil {
		t.Fatalf("session key: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(key))
	}
	wrapped, err := WrapKey(key, &c.key.PublicKey)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	got, err := c.UnwrapKey(wrapped)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Fatal("unwrapped key differs")
	}
}

func TestSealOpen(t *testing.T) {
	key, err := NewSessionKey()
	if err != nil {
		t.Fatalf("session key: %v", err)
	}
	// bigger than any single RSA block could carry
	msg := []byte(strings.Repeat("appointment envelope ", 40))
	sealed, err := Seal(key, msg)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	opened, err := Open(key, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, msg) {
		t.Fatal("gcm roundtrip mismatch")
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	k1, _ := NewSessionKey()
	k2, _ := NewSessionKey()
	sealed, err := Seal(k1, []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(k2, sealed); err == nil {
		t.Fatal("expected authentication failure with wrong key")
	}
}

func TestVerifyPeerKey(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if err := VerifyPeerKey(&c.key.PublicKey); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
