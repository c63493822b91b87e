package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// ML-DSA-65 constants. SignatureSize is fixed at 3309 bytes; the wire
// format relies on this to lay out signature blocks without a length
// prefix.
const (
	MLDSAPublicKeySize  = mldsa65.PublicKeySize
	MLDSAPrivateKeySize = mldsa65.PrivateKeySize
	MLDSASignatureSize  = mldsa65.SignatureSize
)

var (
	// ErrMLDSAKeyGeneration indicates key generation failure.
	ErrMLDSAKeyGeneration = errors.New("ML-DSA key generation failed")
	// ErrMLDSASigning indicates signing failure.
	ErrMLDSASigning = errors.New("ML-DSA signing failed")
	// ErrInvalidSignature indicates signature verification failed.
	ErrInvalidSignature = errors.New("ML-DSA signature verification failed")
	// ErrInvalidMLDSAPublicKey indicates a malformed public key.
	ErrInvalidMLDSAPublicKey = errors.New("invalid ML-DSA public key")
	// ErrInvalidMLDSAPrivateKey indicates a malformed private key.
	ErrInvalidMLDSAPrivateKey = errors.New("invalid ML-DSA private key")
)

// MLDSAKeyPair holds an ML-DSA-65 signing key pair.
type MLDSAKeyPair struct {
	PublicKey  *mldsa65.PublicKey
	PrivateKey *mldsa65.PrivateKey
}

// GenerateMLDSAKeyPair generates a new ML-DSA-65 key pair.
func GenerateMLDSAKeyPair() (*MLDSAKeyPair, error) {
	pub, priv, err := mldsa65.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMLDSAKeyGeneration, err)
	}
	return &MLDSAKeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// PublicKeyBytes returns the public key as bytes.
func (kp *MLDSAKeyPair) PublicKeyBytes() []byte {
	var buf [MLDSAPublicKeySize]byte
	kp.PublicKey.Pack(&buf)
	return buf[:]
}

// PrivateKeyBytes returns the private key as bytes.
func (kp *MLDSAKeyPair) PrivateKeyBytes() []byte {
	var buf [MLDSAPrivateKeySize]byte
	kp.PrivateKey.Pack(&buf)
	return buf[:]
}

// MLDSASign signs a message under a private key, producing a fixed
// MLDSASignatureSize-byte signature. ctx is a domain-separation string
// bound into the signature (the three wire-format signature blocks each
// use a distinct ctx so a signature for one cannot be replayed as
// another).
func MLDSASign(priv *mldsa65.PrivateKey, msg []byte, ctx string) ([]byte, error) {
	if len(ctx) > 255 {
		return nil, fmt.Errorf("%w: context too long", ErrMLDSASigning)
	}
	sig := make([]byte, MLDSASignatureSize)
	if err := mldsa65.SignTo(priv, msg, ctx, false, sig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMLDSASigning, err)
	}
	return sig, nil
}

// MLDSAVerify verifies a signature produced by MLDSASign against a
// public key, message, and the same ctx used at signing time.
func MLDSAVerify(pub *mldsa65.PublicKey, msg []byte, ctx string, sig []byte) error {
	if len(sig) != MLDSASignatureSize {
		return ErrInvalidSignature
	}
	if !mldsa65.Verify(pub, msg, ctx, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// MLDSAPublicKeyFromBytes parses a public key from bytes.
func MLDSAPublicKeyFromBytes(data []byte) (*mldsa65.PublicKey, error) {
	if len(data) != MLDSAPublicKeySize {
		return nil, ErrInvalidMLDSAPublicKey
	}
	pub := new(mldsa65.PublicKey)
	if err := pub.Unpack(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMLDSAPublicKey, err)
	}
	return pub, nil
}

// expandReader deterministically expands a seed into an arbitrary-length
// byte stream via counter-mode BLAKE3, so a domain-separated seed can
// stand in for a fresh CSPRNG draw when a signing identity must be
// re-derivable later rather than generated once and stored.
type expandReader struct {
	seed    []byte
	counter uint64
	buf     []byte
}

func newExpandReader(seed []byte) *expandReader {
	return &expandReader{seed: seed}
}

func (r *expandReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.buf) == 0 {
			var ctr [8]byte
			binary.LittleEndian.PutUint64(ctr[:], r.counter)
			r.counter++
			block := append(append([]byte{}, r.seed...), ctr[:]...)
			r.buf = Blake3HashSize(block, 64)
		}
		c := copy(p[n:], r.buf)
		r.buf = r.buf[c:]
		n += c
	}
	return n, nil
}

// DeterministicMLDSAKeyPair derives an ML-DSA-65 key pair from seed via
// a counter-mode BLAKE3 expansion instead of a fresh CSPRNG draw, so
// three distinct domain-separated seeds yield three independent but
// reproducible signing identities (used for the container's platform,
// user, and content signature blocks).
func DeterministicMLDSAKeyPair(seed []byte) (*MLDSAKeyPair, error) {
	pub, priv, err := mldsa65.GenerateKey(newExpandReader(seed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMLDSAKeyGeneration, err)
	}
	return &MLDSAKeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// MLDSAPrivateKeyFromBytes parses a private key from bytes.
func MLDSAPrivateKeyFromBytes(data []byte) (*mldsa65.PrivateKey, error) {
	if len(data) != MLDSAPrivateKeySize {
		return nil, ErrInvalidMLDSAPrivateKey
	}
	priv := new(mldsa65.PrivateKey)
	if err := priv.Unpack(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMLDSAPrivateKey, err)
	}
	return priv, nil
}
