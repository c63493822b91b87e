package crypto

import (
	"bytes"
	"testing"
)

func TestNewAEADCipherInvalidKeySize(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"too short", make([]byte, AEADKeySize-1)},
		{"too long", make([]byte, AEADKeySize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAEADCipher(tt.key); err != ErrInvalidKeyLength {
				t.Errorf("NewAEADCipher(%s) error = %v, want ErrInvalidKeyLength", tt.name, err)
			}
		})
	}
}

func TestAEADEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateAEADKey()
	if err != nil {
		t.Fatalf("GenerateAEADKey failed: %v", err)
	}

	cipher, err := NewAEADCipher(key)
	if err != nil {
		t.Fatalf("NewAEADCipher failed: %v", err)
	}

	plaintext := []byte("Hello, ZKIM!")
	blob, err := cipher.Encrypt(plaintext, nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if len(blob) != AEADNonceSize+len(plaintext)+AEADTagSize {
		t.Errorf("blob len = %v, want %v", len(blob), AEADNonceSize+len(plaintext)+AEADTagSize)
	}

	got, err := cipher.Decrypt(blob, nil)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestAEADTamperDetection(t *testing.T) {
	key, _ := GenerateAEADKey()
	cipher, _ := NewAEADCipher(key)

	blob, err := cipher.Encrypt([]byte("sensitive data"), nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0x01

	if _, err := cipher.Decrypt(tampered, nil); err != ErrDecryptionFailed {
		t.Errorf("Decrypt(tampered) error = %v, want ErrDecryptionFailed", err)
	}
}

func TestAEADWrongKeyRejected(t *testing.T) {
	key1, _ := GenerateAEADKey()
	key2, _ := GenerateAEADKey()

	c1, _ := NewAEADCipher(key1)
	c2, _ := NewAEADCipher(key2)

	blob, _ := c1.Encrypt([]byte("secret"), nil)

	if _, err := c2.Decrypt(blob, nil); err != ErrDecryptionFailed {
		t.Errorf("Decrypt with wrong key error = %v, want ErrDecryptionFailed", err)
	}
}

func TestAEADWrongNonceRejected(t *testing.T) {
	key, _ := GenerateAEADKey()
	cipher, _ := NewAEADCipher(key)

	nonce1, _ := GenerateNonce()
	nonce2, _ := GenerateNonce()

	ciphertext, err := cipher.EncryptWithNonce(nonce1, []byte("payload"), nil)
	if err != nil {
		t.Fatalf("EncryptWithNonce failed: %v", err)
	}

	if _, err := cipher.DecryptWithNonce(nonce2, ciphertext, nil); err != ErrDecryptionFailed {
		t.Errorf("DecryptWithNonce with wrong nonce error = %v, want ErrDecryptionFailed", err)
	}
}

func TestAEADCiphertextTooShort(t *testing.T) {
	key, _ := GenerateAEADKey()
	cipher, _ := NewAEADCipher(key)

	if _, err := cipher.Decrypt(make([]byte, AEADNonceSize), nil); err != ErrCiphertextTooShort {
		t.Errorf("Decrypt(short) error = %v, want ErrCiphertextTooShort", err)
	}
}

func TestGenerateNonceUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		nonce, err := GenerateNonce()
		if err != nil {
			t.Fatalf("GenerateNonce failed: %v", err)
		}
		if len(nonce) != AEADNonceSize {
			t.Fatalf("nonce len = %v, want %v", len(nonce), AEADNonceSize)
		}
		key := string(nonce)
		if seen[key] {
			t.Fatalf("duplicate nonce generated at iteration %d", i)
		}
		seen[key] = true
	}
}

func TestZero(t *testing.T) {
	key, _ := GenerateAEADKey()
	Zero(key)
	for i, b := range key {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %v", i, b)
		}
	}
}

func TestEncryptWithNonceInvalidNonceLength(t *testing.T) {
	key, _ := GenerateAEADKey()
	cipher, _ := NewAEADCipher(key)

	if _, err := cipher.EncryptWithNonce(make([]byte, AEADNonceSize-1), []byte("x"), nil); err != ErrInvalidNonceLength {
		t.Errorf("EncryptWithNonce error = %v, want ErrInvalidNonceLength", err)
	}
}
