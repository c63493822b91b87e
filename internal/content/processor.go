package content

import (
	"bytes"
	"errors"

	"github.com/zkimio/zkim-core/internal/bucket"
	"github.com/zkimio/zkim-core/internal/crypto"
)

// ErrIntegrityMismatch indicates a reassembled chunk's plaintext does
// not hash to its stored integrityHash.
var ErrIntegrityMismatch = errors.New("chunk integrity hash mismatch")

// Chunk is a single plaintext chunk prepared for the Encryption Engine,
// plus the bookkeeping the Wire Codec needs to reverse padding.
type Chunk struct {
	Index         uint32
	Plaintext     []byte // padded to the nearest bucket
	PlaintextSize int    // true size before padding, stored as chunkSize on the wire
	IntegrityHash []byte // 32 bytes, computed over the unpadded plaintext
}

// ProcessResult is the Content Processor's output for a write.
type ProcessResult struct {
	Chunks          []Chunk
	CompressionType CompressionType
	CompressedSize  int
	OriginalSize    int
}

// Processor drives compression, chunking, integrity hashing, and
// bucket padding ahead of encryption.
type Processor struct {
	codec     Codec
	chunkSize int
	level     int
}

// NewProcessor builds a Processor. A nil codec or enableCompression=false
// should be expressed by passing NoopCodec{} so Process always has a
// concrete codec to drive.
func NewProcessor(codec Codec, chunkSize, level int) *Processor {
	if codec == nil {
		codec = NoopCodec{}
	}
	return &Processor{codec: codec, chunkSize: chunkSize, level: level}
}

// Process compresses plaintext (falling back to none on codec failure),
// splits it into chunks, hashes each chunk, and pads each to the
// nearest bucket.
func (p *Processor) Process(plaintext []byte) (*ProcessResult, error) {
	compressionType := p.codec.Type()
	payload := plaintext

	compressed, err := p.codec.Compress(plaintext, p.level)
	if err != nil {
		// Compression failure must not fail the write: emit the
		// original bytes tagged compressionType=none instead.
		compressionType = CompressionNone
		payload = plaintext
	} else {
		payload = compressed
	}

	chunker, err := NewChunker(payload, p.chunkSize)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, chunker.NumChunks())
	for {
		data, index, err := chunker.Next()
		if err != nil {
			break
		}

		hash := crypto.Blake3Hash(data)
		padded := bucket.PadTo(bucket.ContentSizes, data)

		chunks = append(chunks, Chunk{
			Index:         index,
			Plaintext:     padded,
			PlaintextSize: len(data),
			IntegrityHash: hash,
		})
	}

	return &ProcessResult{
		Chunks:          chunks,
		CompressionType: compressionType,
		CompressedSize:  len(payload),
		OriginalSize:    len(plaintext),
	}, nil
}

// Reassemble joins decrypted, unpadded chunks in index order, verifies
// each against its stored integrity hash, and decompresses according
// to compressionType.
func (p *Processor) Reassemble(compressionType CompressionType, chunks []Chunk) ([]byte, error) {
	codec, err := codecFor(compressionType, p.codec)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, c := range chunks {
		total += c.PlaintextSize
	}

	joined := make([]byte, 0, total)
	for _, c := range chunks {
		unpadded := c.Plaintext[:c.PlaintextSize]
		if !bytes.Equal(crypto.Blake3Hash(unpadded), c.IntegrityHash) {
			return nil, ErrIntegrityMismatch
		}
		joined = append(joined, unpadded...)
	}

	return codec.Decompress(joined, -1)
}

func codecFor(t CompressionType, fallback Codec) (Codec, error) {
	if fallback != nil && fallback.Type() == t {
		return fallback, nil
	}
	switch t {
	case CompressionNone:
		return NoopCodec{}, nil
	case CompressionGzip:
		return GzipCodec{}, nil
	default:
		return nil, ErrUnsupportedCompression
	}
}
