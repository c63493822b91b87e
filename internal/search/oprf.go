package search

import (
	"crypto/rand"
	"errors"

	"github.com/cloudflare/circl/group"
)

// oprfGroup fixes the prime-order group used for trapdoor evaluation,
// resolving the specification's group-agnostic open question.
var oprfGroup = group.Ristretto255

// oprfDST is the domain-separation tag bound into every hash-to-group
// call, so trapdoors computed here can never collide with trapdoors
// from an unrelated protocol built on the same curve.
const oprfDST = "ZKIM-OPRF-v1-RISTRETTO255_XMD:SHA-512"

// ErrInvalidOPRFKey indicates a malformed serialized OPRF key.
var ErrInvalidOPRFKey = errors.New("invalid OPRF key")

// OPRFKey is the server-side scalar key. The holder can evaluate the
// function on tokens it never has to see anyone else's evaluation of,
// and the plaintext token never leaves the process that computed the
// trapdoor.
type OPRFKey struct {
	scalar group.Scalar
}

// NewOPRFKey generates a fresh random OPRF key.
func NewOPRFKey() (*OPRFKey, error) {
	scalar := oprfGroup.RandomNonZeroScalar(rand.Reader)
	return &OPRFKey{scalar: scalar}, nil
}

// Bytes serializes the key for storage.
func (k *OPRFKey) Bytes() ([]byte, error) {
	return k.scalar.MarshalBinary()
}

// OPRFKeyFromBytes deserializes a previously stored key.
func OPRFKeyFromBytes(data []byte) (*OPRFKey, error) {
	scalar := oprfGroup.NewScalar()
	if err := scalar.UnmarshalBinary(data); err != nil {
		return nil, ErrInvalidOPRFKey
	}
	return &OPRFKey{scalar: scalar}, nil
}

// Evaluate computes the trapdoor H(token)^k for token under key,
// returning the encoded group element bytes. Equal tokens under the
// same key always produce equal trapdoor bytes; the token itself is
// never recoverable from the trapdoor.
func (k *OPRFKey) Evaluate(token string) ([]byte, error) {
	element := oprfGroup.HashToElement([]byte(token), []byte(oprfDST))
	result := oprfGroup.NewElement().Mul(element, k.scalar)
	return result.MarshalBinary()
}
