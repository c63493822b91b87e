package wire

import (
	"encoding/binary"
	"fmt"
)

// Enum values fixed by the wire format. Unknown values render the
// container unreadable rather than being silently ignored.
const (
	CompressionNone   byte = 0
	CompressionBrotli byte = 1
	CompressionGzip   byte = 2

	EncryptionXChaCha20Poly1305 byte = 1

	HashBlake3_256 byte = 1

	SignatureMLDSA65 byte = 1
)

// Header mirrors the Header data model from §3: fileId/userId/
// platformKeyId identify the container and its key material;
// totalSize/chunkCount describe the chunk layout; the four enums
// pin the algorithms used for the rest of the container.
//
// CompressedSize is the size of the payload actually split into chunks
// (post-compression, pre-chunking) — distinct from TotalSize, which is
// always the original pre-compression plaintext length. The sum of the
// chunks' declared ChunkSize values equals CompressedSize, never
// TotalSize, whenever compression changes the payload size.
type Header struct {
	FileID          [16]byte
	UserID          []byte
	PlatformKeyID   []byte
	TotalSize       uint64
	CompressedSize  uint64
	ChunkCount      uint32
	CreatedAt       int64 // unix seconds
	CompressionType byte
	EncryptionType  byte
	HashType        byte
	SignatureType   byte
}

func validEnum(v byte, allowed ...byte) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// EncodeHeader serializes h into a HEADER_TLV payload.
func EncodeHeader(h *Header) ([]byte, error) {
	if !validEnum(h.CompressionType, CompressionNone, CompressionBrotli, CompressionGzip) {
		return nil, fmt.Errorf("%w: compressionType", ErrInvalidEnum)
	}
	if !validEnum(h.EncryptionType, EncryptionXChaCha20Poly1305) {
		return nil, fmt.Errorf("%w: encryptionType", ErrInvalidEnum)
	}
	if !validEnum(h.HashType, HashBlake3_256) {
		return nil, fmt.Errorf("%w: hashType", ErrInvalidEnum)
	}
	if !validEnum(h.SignatureType, SignatureMLDSA65) {
		return nil, fmt.Errorf("%w: signatureType", ErrInvalidEnum)
	}

	buf := make([]byte, 0, 16+2+len(h.UserID)+2+len(h.PlatformKeyID)+8+8+4+8+4)
	buf = append(buf, h.FileID[:]...)

	buf = appendLenPrefixed(buf, h.UserID)
	buf = appendLenPrefixed(buf, h.PlatformKeyID)

	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], h.TotalSize)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], h.CompressedSize)
	buf = append(buf, tmp[:]...)

	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], h.ChunkCount)
	buf = append(buf, tmp4[:]...)

	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], uint64(h.CreatedAt))
	buf = append(buf, tmp8[:]...)

	buf = append(buf, h.CompressionType, h.EncryptionType, h.HashType, h.SignatureType)

	return buf, nil
}

// DecodeHeader parses a HEADER_TLV payload produced by EncodeHeader.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < 16+2+2+8+8+4+8+4 {
		return nil, ErrTruncated
	}

	h := &Header{}
	copy(h.FileID[:], buf[:16])
	offset := 16

	userID, n, err := readLenPrefixed(buf[offset:])
	if err != nil {
		return nil, err
	}
	h.UserID = userID
	offset += n

	platformKeyID, n, err := readLenPrefixed(buf[offset:])
	if err != nil {
		return nil, err
	}
	h.PlatformKeyID = platformKeyID
	offset += n

	if len(buf)-offset < 8+8+4+8+4 {
		return nil, ErrTruncated
	}

	h.TotalSize = binary.LittleEndian.Uint64(buf[offset:])
	offset += 8
	h.CompressedSize = binary.LittleEndian.Uint64(buf[offset:])
	offset += 8
	h.ChunkCount = binary.LittleEndian.Uint32(buf[offset:])
	offset += 4
	h.CreatedAt = int64(binary.LittleEndian.Uint64(buf[offset:]))
	offset += 8

	h.CompressionType = buf[offset]
	h.EncryptionType = buf[offset+1]
	h.HashType = buf[offset+2]
	h.SignatureType = buf[offset+3]

	if !validEnum(h.CompressionType, CompressionNone, CompressionBrotli, CompressionGzip) {
		return nil, fmt.Errorf("%w: compressionType", ErrInvalidEnum)
	}
	if !validEnum(h.EncryptionType, EncryptionXChaCha20Poly1305) {
		return nil, fmt.Errorf("%w: encryptionType", ErrInvalidEnum)
	}
	if !validEnum(h.HashType, HashBlake3_256) {
		return nil, fmt.Errorf("%w: hashType", ErrInvalidEnum)
	}
	if !validEnum(h.SignatureType, SignatureMLDSA65) {
		return nil, fmt.Errorf("%w: signatureType", ErrInvalidEnum)
	}

	return h, nil
}

func appendLenPrefixed(buf, data []byte) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(data)))
	buf = append(buf, tmp[:]...)
	return append(buf, data...)
}

func readLenPrefixed(buf []byte) ([]byte, int, error) {
	if len(buf) < 4 {
		return nil, 0, ErrTruncated
	}
	length := binary.LittleEndian.Uint32(buf)
	if len(buf) < 4+int(length) {
		return nil, 0, ErrTruncated
	}
	data := make([]byte, length)
	copy(data, buf[4:4+length])
	return data, 4 + int(length), nil
}
