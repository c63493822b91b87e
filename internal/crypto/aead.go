package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// AEADKeySize is the key size for XChaCha20-Poly1305.
	AEADKeySize = 32
	// AEADNonceSize is the extended nonce size used by XChaCha20-Poly1305.
	AEADNonceSize = chacha20poly1305.NonceSizeX
	// AEADTagSize is the Poly1305 authentication tag size.
	AEADTagSize = chacha20poly1305.Overhead
)

var (
	// ErrInvalidKeyLength indicates a key is not AEADKeySize bytes.
	ErrInvalidKeyLength = errors.New("invalid key size: must be 32 bytes")
	// ErrInvalidNonceLength indicates a nonce is not AEADNonceSize bytes.
	ErrInvalidNonceLength = errors.New("invalid nonce size: must be 24 bytes")
	// ErrCiphertextTooShort indicates the ciphertext is too short to contain a tag.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	// ErrDecryptionFailed indicates AEAD open failed for any reason.
	// It deliberately does not distinguish wrong key, tampered ciphertext,
	// or wrong nonce, so callers cannot use timing or error shape to
	// learn which of the three applied.
	ErrDecryptionFailed = errors.New("decryption failed: authentication error")
)

// AEADCipher provides three-layer-schedule XChaCha20-Poly1305 encryption.
type AEADCipher struct {
	aead chacha20poly1305.AEAD
}

// NewAEADCipher creates a cipher from a 32-byte key.
func NewAEADCipher(key []byte) (*AEADCipher, error) {
	if len(key) != AEADKeySize {
		return nil, ErrInvalidKeyLength
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create XChaCha20-Poly1305 cipher: %w", err)
	}

	return &AEADCipher{aead: aead}, nil
}

// GenerateNonce draws a fresh random nonce from a CSPRNG.
//
// Nonces must never be derived from fileId, chunkIndex, or any other
// container field — random generation here is mandatory, not an
// implementation convenience.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, AEADNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// Encrypt generates a fresh random nonce, seals plaintext under it, and
// returns nonce||ciphertext||tag.
func (c *AEADCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Decrypt opens a nonce||ciphertext||tag blob produced by Encrypt.
func (c *AEADCipher) Decrypt(blob, additionalData []byte) ([]byte, error) {
	if len(blob) < AEADNonceSize+AEADTagSize {
		return nil, ErrCiphertextTooShort
	}

	nonce := blob[:AEADNonceSize]
	ciphertext := blob[AEADNonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptWithNonce seals plaintext under a caller-supplied nonce, for
// layers whose nonce is generated once and stored separately from the
// ciphertext (content chunks store nonce and encryptedData as distinct
// fields per the wire format).
func (c *AEADCipher) EncryptWithNonce(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != AEADNonceSize {
		return nil, ErrInvalidNonceLength
	}
	return c.aead.Seal(nil, nonce, plaintext, additionalData), nil
}

// DecryptWithNonce opens a ciphertext sealed with EncryptWithNonce.
func (c *AEADCipher) DecryptWithNonce(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != AEADNonceSize {
		return nil, ErrInvalidNonceLength
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// NonceSize returns the required nonce size.
func (c *AEADCipher) NonceSize() int {
	return c.aead.NonceSize()
}

// Overhead returns the authentication tag size.
func (c *AEADCipher) Overhead() int {
	return c.aead.Overhead()
}

// GenerateAEADKey generates a random 32-byte AEAD key (used for the
// per-file content key).
func GenerateAEADKey() ([]byte, error) {
	key := make([]byte, AEADKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Zero overwrites a key buffer in place. Called on cache eviction and
// service cleanup so key material does not linger in memory.
func Zero(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
