package wire

import "errors"

var (
	// ErrInvalidMagic indicates the first 4 bytes are not "ZKIM".
	ErrInvalidMagic = errors.New("wire: invalid magic bytes")
	// ErrUnsupportedVersion indicates a version other than the single supported value.
	ErrUnsupportedVersion = errors.New("wire: unsupported container version")
	// ErrInvalidEnum indicates an unrecognized compressionType, encryptionType,
	// hashType, or signatureType value.
	ErrInvalidEnum = errors.New("wire: invalid enum value")
	// ErrUnsupportedAlgorithm indicates a recognized-but-unimplemented algorithm enum.
	ErrUnsupportedAlgorithm = errors.New("wire: unsupported algorithm")
	// ErrInvalidInput indicates the container violates a data-model invariant
	// (chunk size sum, duplicate/missing chunk index, etc.) and cannot be encoded.
	ErrInvalidInput = errors.New("wire: invalid container")
)
