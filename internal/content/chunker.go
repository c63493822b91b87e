// Package content implements the Content Processor: chunking,
// compression, per-chunk integrity hashing, and bucket padding applied
// to plaintext before it reaches the Encryption Engine.
package content

import (
	"errors"
	"io"
)

// DefaultChunkSize is used when the caller does not configure one.
const DefaultChunkSize = 512 * 1024

// MinChunkSize and MaxChunkSize are the hard bounds on chunkSize.
const (
	MinChunkSize = 1024
	MaxChunkSize = 1024 * 1024
)

var (
	// ErrChunkOutOfRange indicates an invalid chunk index.
	ErrChunkOutOfRange = errors.New("chunk index out of range")
	// ErrInvalidChunkSize indicates a chunkSize outside [MinChunkSize, MaxChunkSize].
	ErrInvalidChunkSize = errors.New("invalid chunk size")
)

// Chunker splits an in-memory payload into fixed-size chunks.
type Chunker struct {
	data      []byte
	chunkSize int
	numChunks uint32
	current   uint32
}

// NewChunker creates a Chunker over data. chunkSize of 0 selects
// DefaultChunkSize; any other value outside [MinChunkSize, MaxChunkSize]
// is rejected.
func NewChunker(data []byte, chunkSize int) (*Chunker, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return nil, ErrInvalidChunkSize
	}

	numChunks := uint32((len(data) + chunkSize - 1) / chunkSize)
	if len(data) == 0 {
		numChunks = 1
	}

	return &Chunker{
		data:      data,
		chunkSize: chunkSize,
		numChunks: numChunks,
	}, nil
}

// Size returns the total payload size.
func (c *Chunker) Size() int {
	return len(c.data)
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// NumChunks returns the total number of chunks.
func (c *Chunker) NumChunks() uint32 {
	return c.numChunks
}

// ReadChunk returns chunk index's plaintext bytes.
func (c *Chunker) ReadChunk(index uint32) ([]byte, error) {
	if index >= c.numChunks {
		return nil, ErrChunkOutOfRange
	}

	offset := int(index) * c.chunkSize
	if offset >= len(c.data) {
		return []byte{}, nil
	}

	end := offset + c.chunkSize
	if end > len(c.data) {
		end = len(c.data)
	}

	chunk := make([]byte, end-offset)
	copy(chunk, c.data[offset:end])
	return chunk, nil
}

// Next returns the next chunk in order, or io.EOF once exhausted.
func (c *Chunker) Next() ([]byte, uint32, error) {
	if c.current >= c.numChunks {
		return nil, 0, io.EOF
	}

	chunk, err := c.ReadChunk(c.current)
	if err != nil {
		return nil, 0, err
	}

	index := c.current
	c.current++
	return chunk, index, nil
}

// Reset rewinds the chunker to the first chunk.
func (c *Chunker) Reset() {
	c.current = 0
}

// ChunkWriter reassembles chunks into a contiguous in-memory buffer.
type ChunkWriter struct {
	buf       []byte
	chunkSize int
	received  []bool
}

// NewChunkWriter creates a ChunkWriter expecting numChunks chunks of
// chunkSize each (the last chunk may be shorter). totalSize bounds the
// final buffer so trailing chunk padding is not mistaken for content.
func NewChunkWriter(numChunks uint32, chunkSize int, totalSize int) *ChunkWriter {
	return &ChunkWriter{
		buf:       make([]byte, totalSize),
		chunkSize: chunkSize,
		received:  make([]bool, numChunks),
	}
}

// WriteChunk places data at the position implied by index.
func (w *ChunkWriter) WriteChunk(index uint32, data []byte) error {
	if int(index) >= len(w.received) {
		return ErrChunkOutOfRange
	}

	offset := int(index) * w.chunkSize
	end := offset + len(data)
	if end > len(w.buf) {
		end = len(w.buf)
	}
	if offset < end {
		copy(w.buf[offset:end], data[:end-offset])
	}

	w.received[index] = true
	return nil
}

// MissingChunks returns the indices not yet written.
func (w *ChunkWriter) MissingChunks() []uint32 {
	missing := make([]uint32, 0)
	for i, received := range w.received {
		if !received {
			missing = append(missing, uint32(i))
		}
	}
	return missing
}

// IsComplete reports whether every chunk has been written.
func (w *ChunkWriter) IsComplete() bool {
	for _, received := range w.received {
		if !received {
			return false
		}
	}
	return true
}

// Progress returns completion as a percentage in [0, 100].
func (w *ChunkWriter) Progress() float64 {
	if len(w.received) == 0 {
		return 100
	}
	count := 0
	for _, received := range w.received {
		if received {
			count++
		}
	}
	return float64(count) / float64(len(w.received)) * 100
}

// Bytes returns the reassembled payload.
func (w *ChunkWriter) Bytes() []byte {
	return w.buf
}
