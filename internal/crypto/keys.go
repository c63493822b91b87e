package crypto

import (
	"errors"
	"fmt"
)

// Domain-separation contexts for key derivation. Each layer gets its
// own context so platformKey_eff and userKey_eff can never collide
// even if the caller supplies identical platform and user material.
const (
	platformKeyContext = "zkim-platform-key-v1"
	userKeyContext     = "zkim-user-key-v1"
	kemWrapContext     = "zkim-kem-wrap-v1"
)

var (
	// ErrKeyWrapFailed indicates the KEM secret key could not be wrapped.
	ErrKeyWrapFailed = errors.New("KEM secret key wrap failed")
	// ErrKeyUnwrapFailed indicates the wrapped KEM secret key could not
	// be recovered, meaning the supplied user key material is wrong.
	ErrKeyUnwrapFailed = errors.New("KEM secret key unwrap failed")
)

// DeriveEffectiveKey computes platformKey_eff or userKey_eff from the
// per-file KEM shared secret and caller-supplied key material, via a
// BLAKE3 keyed hash domain-separated by context. The shared secret acts
// as the BLAKE3 key; callerMaterial is the hashed message.
func DeriveEffectiveKey(context string, sharedSecret, callerMaterial []byte) []byte {
	return Blake3DeriveKey(context, append(append([]byte{}, sharedSecret...), callerMaterial...), AEADKeySize)
}

// DerivePlatformKey derives platformKey_eff for layer 1.
func DerivePlatformKey(sharedSecret, callerPlatformMaterial []byte) []byte {
	return DeriveEffectiveKey(platformKeyContext, sharedSecret, callerPlatformMaterial)
}

// DeriveUserKey derives userKey_eff for layer 2 and for wrapping the
// KEM secret key.
func DeriveUserKey(sharedSecret, callerUserMaterial []byte) []byte {
	return DeriveEffectiveKey(userKeyContext, sharedSecret, callerUserMaterial)
}

// WrapKEMSecretKey seals the KEM private key under userKey_eff so that
// decryption later requires only the user-derived key material, never
// a separately stored copy of the KEM secret key.
func WrapKEMSecretKey(userKeyEff, kemPrivateKeyBytes []byte) ([]byte, error) {
	cipher, err := NewAEADCipher(userKeyEff)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyWrapFailed, err)
	}
	return cipher.Encrypt(kemPrivateKeyBytes, []byte(kemWrapContext))
}

// UnwrapKEMSecretKey recovers the KEM private key bytes given the
// re-derived userKey_eff. A failure here means the supplied user key
// material does not match the key used at creation time.
func UnwrapKEMSecretKey(userKeyEff, wrapped []byte) ([]byte, error) {
	cipher, err := NewAEADCipher(userKeyEff)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnwrapFailed, err)
	}
	plaintext, err := cipher.Decrypt(wrapped, []byte(kemWrapContext))
	if err != nil {
		return nil, ErrKeyUnwrapFailed
	}
	return plaintext, nil
}
