package envelope

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	plaintext := []byte("Hello")

	env, err := e.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	got, err := e.Decrypt(env)
	if err != nil {
		t.Fatalf("Decrypt error: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("decrypt(encrypt(x)) = %q, want %q", got, plaintext)
	}
}

func TestEncryptTwiceYieldsDistinctNonceAndCiphertext(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	plaintext := []byte("Hello")

	env1, _ := e.Encrypt(plaintext)
	env2, _ := e.Encrypt(plaintext)

	if env1.Nonce == env2.Nonce {
		t.Error("expected distinct nonces across encryptions")
	}
	if env1.Ciphertext == env2.Ciphertext {
		t.Error("expected distinct ciphertext across encryptions")
	}

	p1, err1 := e.Decrypt(env1)
	p2, err2 := e.Decrypt(env2)
	if err1 != nil || err2 != nil {
		t.Fatalf("both envelopes should decrypt: %v, %v", err1, err2)
	}
	if !bytes.Equal(p1, plaintext) || !bytes.Equal(p2, plaintext) {
		t.Error("expected both decryptions to yield the original plaintext")
	}
}

func TestTamperedCiphertextFailsDecryption(t *testing.T) {
	e, _ := NewEngine()
	env, _ := e.Encrypt([]byte("Hello"))

	raw, _ := base64.StdEncoding.DecodeString(env.Ciphertext)
	raw[0] ^= 0xFF
	env.Ciphertext = base64.StdEncoding.EncodeToString(raw)

	_, err := e.Decrypt(env)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestTamperedNonceFailsDecryption(t *testing.T) {
	e, _ := NewEngine()
	env, _ := e.Encrypt([]byte("Hello"))

	raw, _ := base64.StdEncoding.DecodeString(env.Nonce)
	raw[0] ^= 0xFF
	env.Nonce = base64.StdEncoding.EncodeToString(raw)

	_, err := e.Decrypt(env)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestPassthroughVersionZero(t *testing.T) {
	e, err := NewEngine(WithEncryptionDisabled())
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	env, err := e.Encrypt([]byte("plain"))
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	if env.Version != 0 || env.WrappedDEK != "" || env.Nonce != "" {
		t.Errorf("expected version 0 passthrough with empty wrapped_dek/nonce, got %+v", env)
	}
	got, err := e.Decrypt(env)
	if err != nil {
		t.Fatalf("Decrypt error: %v", err)
	}
	if string(got) != "plain" {
		t.Errorf("decrypt = %q, want %q", got, "plain")
	}
}

func TestChaCha20Poly1305Algorithm(t *testing.T) {
	e, err := NewEngine(WithAlgorithm(AlgorithmChaCha20Poly1305))
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	env, err := e.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	got, err := e.Decrypt(env)
	if err != nil {
		t.Fatalf("Decrypt error: %v", err)
	}
	if string(got) != "secret" {
		t.Errorf("decrypt = %q, want %q", got, "secret")
	}
}

func TestInvalidEnvelopeRejected(t *testing.T) {
	e, _ := NewEngine()
	bad := Envelope{Version: 1, Ciphertext: "x"} // missing wrapped_dek/nonce
	if _, err := e.Decrypt(bad); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
	}
}
