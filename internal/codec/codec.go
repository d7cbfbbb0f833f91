// Package codec wraps the asymmetric keypair used for the notification
// handshake. Public keys travel as base64 PKCS#1 DER, the format the console
// clients already speak. Event traffic itself runs under a per-session
// AES-256-GCM key wrapped once with RSA-OAEP, because a 2048-bit OAEP block
// caps plaintext at 190 bytes and a populated appointment envelope does not
// fit.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	keyBits       = 2048
	sessionKeyLen = 32
	oaepOverhead  = 2*sha256.Size + 2
)

var (
	ErrBadPublicKey      = errors.New("malformed public key")
	ErrPlaintextTooLarge = errors.New("plaintext exceeds key capacity")
)

// Codec holds this process's keypair. Safe for concurrent use; nothing is
// mutated after construction.
type Codec struct {
	key *rsa.PrivateKey
}

func New() (*Codec, error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Codec{key: key}, nil
}

// PublicKeyText exports this process's public key for the handshake line.
func (c *Codec) PublicKeyText() string {
	return base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PublicKey(&c.key.PublicKey))
}

// ParsePublicKey decodes a peer's handshake line.
func ParsePublicKey(text string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, ErrBadPublicKey
	}
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, ErrBadPublicKey
	}
	return pub, nil
}

// Encrypt encrypts plain to the recipient key with OAEP-SHA256. The output
// is base64. Plaintext longer than the modulus minus padding overhead fails.
func Encrypt(plain []byte, pub *rsa.PublicKey) (string, error) {
	if len(plain) > pub.Size()-oaepOverhead {
		return "", ErrPlaintextTooLarge
	}
	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plain, nil)
	if err != nil {
		return "", fmt.Errorf("rsa encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decrypts a base64 OAEP ciphertext with this process's private key.
func (c *Codec) Decrypt(text string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("rsa decrypt: %w", err)
	}
	out, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, c.key, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("rsa decrypt: %w", err)
	}
	return out, nil
}

// VerifyPeerKey checks that a peer key is usable by encrypting a random
// nonce to it.
func VerifyPeerKey(pub *rsa.PublicKey) error {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	_, err := Encrypt(nonce, pub)
	return err
}

// NewSessionKey returns a fresh AES-256 key for one raw-socket session.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, sessionKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	return key, nil
}

// WrapKey encrypts a session key to the recipient's public key.
func WrapKey(key []byte, pub *rsa.PublicKey) (string, error) {
	return Encrypt(key, pub)
}

// UnwrapKey recovers a session key wrapped to this process's public key.
// Only used by in-process clients and tests; the server side hands keys out,
// it never receives them.
func (c *Codec) UnwrapKey(text string) ([]byte, error) {
	return c.Decrypt(text)
}

// Seal encrypts plain under a session key. Output is base64 of
// nonce||ciphertext.
func Seal(key, plain []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := gcm.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a Seal output under the same session key.
func Open(key []byte, text string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("open envelope: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("open envelope: short ciphertext")
	}
	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("open envelope: %w", err)
	}
	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
