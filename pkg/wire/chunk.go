package wire

import "encoding/binary"

// NonceSize and TagSize are fixed by encryptionType=XChaCha20-Poly1305.
const (
	NonceSize        = 24
	IntegrityHashSize = 32
)

// EncryptedChunk mirrors the Chunk data model from §3. EncryptedData
// already has the AEAD tag appended (encryptedSize == len(EncryptedData)).
type EncryptedChunk struct {
	ChunkIndex     uint32
	ChunkSize      uint32 // plaintext size before padding
	CompressedSize uint32
	Nonce          [NonceSize]byte
	EncryptedData  []byte
	IntegrityHash  [IntegrityHashSize]byte
}

// EncodeChunk serializes one chunk into a CHUNK_TLV payload:
// chunkIndex(u32-LE) | chunkSize(u32-LE) | compressedSize(u32-LE) |
// encryptedSize(u32-LE) | nonce(24) | integrityHash(32) | encryptedData.
func EncodeChunk(c *EncryptedChunk) []byte {
	buf := make([]byte, 0, 4+4+4+4+NonceSize+IntegrityHashSize+len(c.EncryptedData))

	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], c.ChunkIndex)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], c.ChunkSize)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], c.CompressedSize)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(c.EncryptedData)))
	buf = append(buf, tmp[:]...)

	buf = append(buf, c.Nonce[:]...)
	buf = append(buf, c.IntegrityHash[:]...)
	buf = append(buf, c.EncryptedData...)

	return buf
}

// DecodeChunk parses a CHUNK_TLV payload produced by EncodeChunk.
func DecodeChunk(buf []byte) (*EncryptedChunk, error) {
	const fixedLen = 4 + 4 + 4 + 4 + NonceSize + IntegrityHashSize
	if len(buf) < fixedLen {
		return nil, ErrTruncated
	}

	c := &EncryptedChunk{}
	c.ChunkIndex = binary.LittleEndian.Uint32(buf[0:4])
	c.ChunkSize = binary.LittleEndian.Uint32(buf[4:8])
	c.CompressedSize = binary.LittleEndian.Uint32(buf[8:12])
	encryptedSize := binary.LittleEndian.Uint32(buf[12:16])

	offset := 16
	copy(c.Nonce[:], buf[offset:offset+NonceSize])
	offset += NonceSize
	copy(c.IntegrityHash[:], buf[offset:offset+IntegrityHashSize])
	offset += IntegrityHashSize

	if len(buf)-offset < int(encryptedSize) {
		return nil, ErrTruncated
	}
	c.EncryptedData = make([]byte, encryptedSize)
	copy(c.EncryptedData, buf[offset:offset+int(encryptedSize)])

	return c, nil
}
