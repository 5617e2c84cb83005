// Package aead provides authenticated encryption for at-rest namespace files.
//
// The algorithm is chosen per platform: AES-GCM where hardware acceleration
// is available (amd64, arm64), ChaCha20-Poly1305 elsewhere. A random nonce is
// prepended to every ciphertext.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm identifies the AEAD construction in use.
type Algorithm string

const (
	AlgorithmAESGCM   Algorithm = "aes-gcm"
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

// KeySize is the required key length in bytes.
const KeySize = 32

var (
	ErrInvalidKeySize     = errors.New("aead: key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("aead: ciphertext too short")
)

// Cipher seals and opens namespace payloads. The associated data binds a
// ciphertext to its namespace so an encrypted file cannot be copied over
// another namespace's file undetected.
type Cipher struct {
	aead cipher.AEAD
	alg  Algorithm
}

// New creates a cipher, selecting the algorithm for the current platform.
func New(key []byte) (*Cipher, error) {
	if hardwareAES() {
		return NewWithAlgorithm(key, AlgorithmAESGCM)
	}
	return NewWithAlgorithm(key, AlgorithmChaCha20)
}

// NewWithAlgorithm creates a cipher with an explicit algorithm.
func NewWithAlgorithm(key []byte, alg Algorithm) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	switch alg {
	case AlgorithmAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		a, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		return &Cipher{aead: a, alg: alg}, nil

	case AlgorithmChaCha20:
		a, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
		return &Cipher{aead: a, alg: alg}, nil

	default:
		return nil, errors.New("aead: unknown algorithm: " + string(alg))
	}
}

// Algorithm returns the selected algorithm.
func (c *Cipher) Algorithm() Algorithm {
	return c.alg
}

// Seal encrypts plaintext bound to the given associated data.
func (c *Cipher) Seal(plaintext, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Open decrypts a ciphertext produced by Seal with matching associated data.
func (c *Cipher) Open(ciphertext, associatedData []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce := ciphertext[:c.aead.NonceSize()]
	return c.aead.Open(nil, nonce, ciphertext[c.aead.NonceSize():], associatedData)
}

// hardwareAES reports whether Go's AES uses hardware acceleration here.
func hardwareAES() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}
