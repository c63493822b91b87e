package content

import (
	"bytes"
	"testing"
)

func TestProcessorRoundTripSmall(t *testing.T) {
	p := NewProcessor(NewGzipCodec(), 512*1024, 6)
	plaintext := []byte("Hello, ZKIM!")

	result, err := p.Process(plaintext)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("chunkCount = %v, want 1", len(result.Chunks))
	}

	reassembled, err := p.Reassemble(result.CompressionType, result.Chunks)
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if !bytes.Equal(reassembled, plaintext) {
		t.Errorf("Reassemble = %q, want %q", reassembled, plaintext)
	}
}

func TestProcessorRoundTrip10MB(t *testing.T) {
	p := NewProcessor(NewGzipCodec(), 512*1024, 6)
	plaintext := bytes.Repeat([]byte{0x41}, 10*1024*1024)

	result, err := p.Process(plaintext)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Chunks) != 20 {
		t.Fatalf("chunkCount = %v, want 20", len(result.Chunks))
	}
	if result.CompressedSize >= result.OriginalSize {
		t.Errorf("expected compressed size to shrink highly repetitive data")
	}

	reassembled, err := p.Reassemble(result.CompressionType, result.Chunks)
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if !bytes.Equal(reassembled, plaintext) {
		t.Error("reassembled 10MB payload does not match original")
	}
}

func TestProcessorChunkPadding(t *testing.T) {
	p := NewProcessor(NewGzipCodec(), 512*1024, 6)
	result, err := p.Process([]byte("short"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	chunk := result.Chunks[0]
	if len(chunk.Plaintext) != 64 {
		t.Errorf("padded chunk len = %v, want 64 (smallest bucket)", len(chunk.Plaintext))
	}
	if chunk.PlaintextSize >= len(chunk.Plaintext) {
		t.Errorf("PlaintextSize should be less than padded length for short input")
	}
}

func TestProcessorIntegrityMismatchDetected(t *testing.T) {
	p := NewProcessor(NewGzipCodec(), 512*1024, 6)
	result, err := p.Process([]byte("tamper me"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	result.Chunks[0].Plaintext[0] ^= 0xFF

	if _, err := p.Reassemble(result.CompressionType, result.Chunks); err != ErrIntegrityMismatch {
		t.Errorf("error = %v, want ErrIntegrityMismatch", err)
	}
}

func TestProcessorNoCompression(t *testing.T) {
	p := NewProcessor(NoopCodec{}, 512*1024, 6)
	plaintext := []byte("not compressed")

	result, err := p.Process(plaintext)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.CompressionType != CompressionNone {
		t.Errorf("CompressionType = %v, want CompressionNone", result.CompressionType)
	}

	reassembled, err := p.Reassemble(result.CompressionType, result.Chunks)
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if !bytes.Equal(reassembled, plaintext) {
		t.Error("round trip mismatch with NoopCodec")
	}
}
