package ledger

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrSealed is returned when the stored blob and the configured secret disagree:
// a sealed blob with no secret, a plain blob with a secret, or a wrong secret.
var ErrSealed = errors.New("ledger seal mismatch")

var sealMagic = []byte("CBL1")

const (
	saltSize  = 16
	nonceSize = 24
)

// Sealer encrypts ledger blobs with a key derived from a passphrase.
type Sealer struct {
	secret []byte
	rand   io.Reader
}

// NewSealer returns a sealer for the passphrase, or nil when it is empty.
func NewSealer(secret string) *Sealer {
	if secret == "" {
		return nil
	}
	return &Sealer{secret: []byte(secret), rand: rand.Reader}
}

// IsSealed reports whether data carries the sealed-blob header.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}

// Seal encrypts plain into magic | salt | nonce | box.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(s.rand, salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	key := s.deriveKey(salt)
	out := make([]byte, 0, len(sealMagic)+saltSize+nonceSize+len(plain)+secretbox.Overhead)
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, &key), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if !IsSealed(sealed) || len(sealed) < len(sealMagic)+saltSize+nonceSize+secretbox.Overhead {
		return nil, ErrSealed
	}
	body := sealed[len(sealMagic):]
	salt := body[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], body[saltSize:saltSize+nonceSize])
	key := s.deriveKey(salt)
	plain, ok := secretbox.Open(nil, body[saltSize+nonceSize:], &nonce, &key)
	if !ok {
		return nil, ErrSealed
	}
	return plain, nil
}

func (s *Sealer) deriveKey(salt []byte) [32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey(s.secret, salt, 1, 19*1024, 2, 32))
	return key
}
