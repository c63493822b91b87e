package wire

import (
	"bytes"
	"fmt"
)

// Magic is the 4-byte container prefix "ZKIM".
var Magic = [4]byte{0x5A, 0x4B, 0x49, 0x4D}

// Version is the single supported container version.
const Version uint16 = 1

// SignatureSize is fixed by signatureType=ML-DSA-65.
const SignatureSize = 3309

// Container is the full in-memory representation of a file container
// (§3). MetadataCiphertext is the layer-1 (platform) AEAD output over
// {metadata, searchableText}; the plaintext Metadata type lives above
// this package, in the Encryption Engine / service layer.
type Container struct {
	Version    uint16
	Flags      uint16
	Header     Header
	MetadataCT []byte
	KEMCT      []byte
	Chunks     []EncryptedChunk

	PlatformSig [SignatureSize]byte
	UserSig     [SignatureSize]byte
	ContentSig  [SignatureSize]byte
}

// Encode produces the deterministic byte layout:
// MAGIC | VERSION | FLAGS | HEADER_TLV | METADATA_TLV | KEM_TLV |
// CHUNK_TLV* | PLATFORM_SIG | USER_SIG | CONTENT_SIG.
func Encode(c *Container) ([]byte, error) {
	if err := validateContainer(c); err != nil {
		return nil, err
	}

	headerPayload, err := EncodeHeader(&c.Header)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(Magic[:])
	writeU16LE(&buf, c.Version)
	writeU16LE(&buf, c.Flags)

	buf.Write(encodeTLV(tlvHeader, headerPayload))
	buf.Write(encodeTLV(tlvMetadata, c.MetadataCT))
	buf.Write(encodeTLV(tlvKEMCiphertext, c.KEMCT))

	for i := range c.Chunks {
		buf.Write(encodeTLV(tlvChunk, EncodeChunk(&c.Chunks[i])))
	}

	buf.Write(c.PlatformSig[:])
	buf.Write(c.UserSig[:])
	buf.Write(c.ContentSig[:])

	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode, enforcing the TLV ordering
// and multiplicity rules from §4.1.
func Decode(data []byte) (*Container, error) {
	if len(data) < 8 {
		return nil, ErrTruncated
	}
	if !bytes.Equal(data[0:4], Magic[:]) {
		return nil, ErrInvalidMagic
	}

	version := readU16LE(data[4:6])
	if version != Version {
		return nil, ErrUnsupportedVersion
	}
	flags := readU16LE(data[6:8])

	c := &Container{Version: version, Flags: flags}
	offset := 8

	// HEADER_TLV
	t, payload, n, err := decodeTLV(data[offset:])
	if err != nil {
		return nil, err
	}
	if t != tlvHeader {
		return nil, fmt.Errorf("%w: expected header, got tag %d", ErrInvalidInput, t)
	}
	header, err := DecodeHeader(payload)
	if err != nil {
		return nil, err
	}
	c.Header = *header
	offset += n

	// METADATA_TLV
	t, payload, n, err = decodeTLV(data[offset:])
	if err != nil {
		return nil, err
	}
	if t != tlvMetadata {
		return nil, fmt.Errorf("%w: expected metadata, got tag %d", ErrInvalidInput, t)
	}
	c.MetadataCT = append([]byte(nil), payload...)
	offset += n

	// KEM_CIPHERTEXT_TLV
	t, payload, n, err = decodeTLV(data[offset:])
	if err != nil {
		return nil, err
	}
	if t != tlvKEMCiphertext {
		return nil, fmt.Errorf("%w: expected KEM ciphertext, got tag %d", ErrInvalidInput, t)
	}
	c.KEMCT = append([]byte(nil), payload...)
	offset += n

	// CHUNK_TLV*, until exactly the three trailing signature blocks remain.
	seenIndex := make(map[uint32]bool)
	for len(data)-offset > SignatureSize*3 {
		t, payload, n, err = decodeTLV(data[offset:])
		if err != nil {
			return nil, err
		}
		if t != tlvChunk {
			return nil, fmt.Errorf("%w: expected chunk, got tag %d", ErrInvalidInput, t)
		}
		chunk, err := DecodeChunk(payload)
		if err != nil {
			return nil, err
		}
		if seenIndex[chunk.ChunkIndex] {
			return nil, ErrDuplicateFrame
		}
		seenIndex[chunk.ChunkIndex] = true
		c.Chunks = append(c.Chunks, *chunk)
		offset += n
	}

	if len(data)-offset != SignatureSize*3 {
		return nil, ErrTruncated
	}

	copy(c.PlatformSig[:], data[offset:offset+SignatureSize])
	offset += SignatureSize
	copy(c.UserSig[:], data[offset:offset+SignatureSize])
	offset += SignatureSize
	copy(c.ContentSig[:], data[offset:offset+SignatureSize])
	offset += SignatureSize

	if offset != len(data) {
		return nil, ErrTruncated
	}

	if err := validateContainer(c); err != nil {
		return nil, err
	}

	return c, nil
}

func validateContainer(c *Container) error {
	if uint32(len(c.Chunks)) != c.Header.ChunkCount && !(len(c.Chunks) == 0 && c.Header.ChunkCount == 0) {
		return fmt.Errorf("%w: chunkCount mismatch", ErrInvalidInput)
	}

	seen := make(map[uint32]bool, len(c.Chunks))
	for _, chunk := range c.Chunks {
		if seen[chunk.ChunkIndex] {
			return fmt.Errorf("%w: duplicate chunkIndex %d", ErrInvalidInput, chunk.ChunkIndex)
		}
		seen[chunk.ChunkIndex] = true
		if chunk.ChunkIndex >= c.Header.ChunkCount {
			return fmt.Errorf("%w: chunkIndex %d out of [0, chunkCount)", ErrInvalidInput, chunk.ChunkIndex)
		}
	}

	return nil
}

func writeU16LE(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}

func readU16LE(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
