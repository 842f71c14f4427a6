// Package envelope implements the State Envelope (C7): authenticated
// encryption of opaque agent state, with a key hierarchy (master key wraps
// a fresh per-encryption data key) and a versioned, crypto-agile wire
// format so the algorithm can evolve without breaking old envelopes.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm identifies the AEAD construction an envelope was sealed with.
type Algorithm uint8

const (
	// AlgorithmPassthrough is version 0: no encryption, used only when
	// encryption is disabled. Ciphertext carries the plaintext verbatim.
	AlgorithmPassthrough Algorithm = 0
	// AlgorithmXORPlaceholder is a non-production placeholder kept only
	// for format compatibility testing: XOR stream cipher with a
	// truncated SHA-256 MAC, not an AEAD construction.
	AlgorithmXORPlaceholder Algorithm = 1
	// AlgorithmAES256GCM is the default production algorithm.
	AlgorithmAES256GCM Algorithm = 2
	// AlgorithmChaCha20Poly1305 is the alternate production algorithm,
	// preferable on platforms without AES hardware acceleration.
	AlgorithmChaCha20Poly1305 Algorithm = 3
)

const (
	dekSize   = 32 // 256-bit data encryption key
	nonceSize = 12 // 96-bit nonce
)

// ErrDecryptionFailed is returned whenever ciphertext, nonce, or wrapped
// key integrity cannot be verified. Callers must not retry with the same
// key material.
var ErrDecryptionFailed = errors.New("envelope: decryption failed")

// ErrInvalidEnvelope is returned when an envelope's fields are internally
// inconsistent for its declared version.
var ErrInvalidEnvelope = errors.New("envelope: invalid envelope")

// Envelope is the wire format for one encrypted payload. Ciphertext,
// WrappedDEK and Nonce are base64-encoded so the struct round-trips cleanly
// through JSON/YAML; KeyID is a plain identifier string.
type Envelope struct {
	Version    uint8
	Algorithm  Algorithm
	Ciphertext string
	WrappedDEK string
	Nonce      string
	KeyID      string
}

// IsValid reports whether the envelope's fields are consistent with its
// declared version: version 0 requires only non-empty ciphertext and
// empty wrapped_dek/nonce; version >= 1 requires all three non-empty.
func (e Envelope) IsValid() bool {
	if e.Version == 0 {
		return e.Ciphertext != "" && e.WrappedDEK == "" && e.Nonce == ""
	}
	return e.Ciphertext != "" && e.WrappedDEK != "" && e.Nonce != ""
}

// Engine holds the master key (KEK) and seals/opens Envelopes.
type Engine struct {
	masterKey [32]byte
	keyID     string
	algorithm Algorithm
	enabled   bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithAlgorithm overrides the default algorithm (AES-256-GCM).
func WithAlgorithm(a Algorithm) Option { return func(e *Engine) { e.algorithm = a } }

// WithEncryptionDisabled makes Encrypt produce version-0 passthrough
// envelopes, used only in environments where encryption is explicitly
// turned off.
func WithEncryptionDisabled() Option { return func(e *Engine) { e.enabled = false } }

// NewEngine creates an Engine with a freshly generated master key.
func NewEngine(opts ...Option) (*Engine, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("envelope: generate master key: %w", err)
	}
	return NewEngineWithKey(key, opts...)
}

// NewEngineWithKey creates an Engine from an externally supplied master
// key (e.g. fetched from a KMS).
func NewEngineWithKey(masterKey [32]byte, opts ...Option) (*Engine, error) {
	e := &Engine{
		masterKey: masterKey,
		keyID:     uuid.NewString(),
		algorithm: AlgorithmAES256GCM,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// KeyID returns the engine's current key identifier.
func (e *Engine) KeyID() string { return e.keyID }

// Encrypt seals plaintext into a fresh Envelope. A fresh 256-bit DEK and
// 96-bit nonce are generated for every call, so encrypting the same
// plaintext twice yields different ciphertext each time.
func (e *Engine) Encrypt(plaintext []byte) (Envelope, error) {
	if !e.enabled {
		return Envelope{
			Version:    0,
			Algorithm:  AlgorithmPassthrough,
			Ciphertext: base64.StdEncoding.EncodeToString(plaintext),
			KeyID:      e.keyID,
		}, nil
	}

	dek := make([]byte, dekSize)
	if _, err := rand.Read(dek); err != nil {
		return Envelope{}, fmt.Errorf("envelope: generate dek: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("envelope: generate nonce: %w", err)
	}

	ciphertext, err := sealWithAlgorithm(e.algorithm, dek, nonce, plaintext)
	if err != nil {
		return Envelope{}, err
	}

	wrappedDEK, err := wrapKey(e.masterKey, dek)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Version:    1,
		Algorithm:  e.algorithm,
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		WrappedDEK: base64.StdEncoding.EncodeToString(wrappedDEK),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		KeyID:      e.keyID,
	}, nil
}

// Decrypt opens env, returning the original plaintext. Any tampering with
// ciphertext, nonce, or wrapped key fails closed with ErrDecryptionFailed.
func (e *Engine) Decrypt(env Envelope) ([]byte, error) {
	if !env.IsValid() {
		return nil, ErrInvalidEnvelope
	}

	if env.Version == 0 {
		plaintext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}
		return plaintext, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	wrappedDEK, err := base64.StdEncoding.DecodeString(env.WrappedDEK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	dek, err := unwrapKey(e.masterKey, wrappedDEK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	plaintext, err := openWithAlgorithm(env.Algorithm, dek, nonce, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func sealWithAlgorithm(alg Algorithm, key, nonce, plaintext []byte) ([]byte, error) {
	switch alg {
	case AlgorithmAES256GCM:
		aead, err := newAESGCM(key)
		if err != nil {
			return nil, err
		}
		return aead.Seal(nil, nonce, plaintext, nil), nil
	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("envelope: chacha20poly1305 init: %w", err)
		}
		return aead.Seal(nil, nonce, plaintext, nil), nil
	case AlgorithmXORPlaceholder:
		return xorSealWithMAC(key, nonce, plaintext), nil
	default:
		return nil, fmt.Errorf("envelope: unsupported algorithm %d", alg)
	}
}

func openWithAlgorithm(alg Algorithm, key, nonce, ciphertext []byte) ([]byte, error) {
	switch alg {
	case AlgorithmAES256GCM:
		aead, err := newAESGCM(key)
		if err != nil {
			return nil, err
		}
		return aead.Open(nil, nonce, ciphertext, nil)
	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("envelope: chacha20poly1305 init: %w", err)
		}
		return aead.Open(nil, nonce, ciphertext, nil)
	case AlgorithmXORPlaceholder:
		return xorOpenWithMAC(key, nonce, ciphertext)
	default:
		return nil, fmt.Errorf("envelope: unsupported algorithm %d", alg)
	}
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: aes cipher init: %w", err)
	}
	return cipher.NewGCM(block)
}

// wrapKey wraps a DEK under the KEK using AES-256-GCM with a fresh random
// nonce per wrap, returned as nonce followed by the sealed DEK.
func wrapKey(kek [32]byte, dek []byte) ([]byte, error) {
	aead, err := newAESGCM(kek[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("envelope: wrap nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, dek, nil)
	return append(nonce, sealed...), nil
}

func unwrapKey(kek [32]byte, wrapped []byte) ([]byte, error) {
	if len(wrapped) < nonceSize {
		return nil, errors.New("envelope: wrapped key too short")
	}
	aead, err := newAESGCM(kek[:])
	if err != nil {
		return nil, err
	}
	nonce, sealed := wrapped[:nonceSize], wrapped[nonceSize:]
	return aead.Open(nil, nonce, sealed, nil)
}

// xorSealWithMAC is the placeholder algorithm kept only so version 1
// envelopes created by older deployments can still be decrypted: a
// keystream XOR with a truncated SHA-256 MAC appended, not a true AEAD.
func xorSealWithMAC(key, nonce, plaintext []byte) []byte {
	keystream := deriveKeystream(key, nonce, len(plaintext))
	ciphertext := make([]byte, len(plaintext))
	for i := range plaintext {
		ciphertext[i] = plaintext[i] ^ keystream[i]
	}
	mac := truncatedMAC(key, nonce, ciphertext)
	return append(ciphertext, mac...)
}

func xorOpenWithMAC(key, nonce, sealed []byte) ([]byte, error) {
	const macSize = 16
	if len(sealed) < macSize {
		return nil, errors.New("envelope: sealed data too short")
	}
	ciphertext := sealed[:len(sealed)-macSize]
	gotMAC := sealed[len(sealed)-macSize:]
	wantMAC := truncatedMAC(key, nonce, ciphertext)
	if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
		return nil, errors.New("envelope: mac mismatch")
	}
	keystream := deriveKeystream(key, nonce, len(ciphertext))
	plaintext := make([]byte, len(ciphertext))
	for i := range ciphertext {
		plaintext[i] = ciphertext[i] ^ keystream[i]
	}
	return plaintext, nil
}

func deriveKeystream(key, nonce []byte, length int) []byte {
	out := make([]byte, 0, length+sha256.Size)
	counter := uint32(0)
	for len(out) < length {
		h := sha256.New()
		h.Write(key)
		h.Write(nonce)
		h.Write([]byte{byte(counter), byte(counter >> 8), byte(counter >> 16), byte(counter >> 24)})
		out = append(out, h.Sum(nil)...)
		counter++
	}
	return out[:length]
}

func truncatedMAC(key, nonce, data []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(nonce)
	h.Write(data)
	sum := h.Sum(nil)
	return sum[:16]
}

