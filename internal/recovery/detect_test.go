package recovery

import (
	"testing"

	"github.com/zkimio/zkim-core/pkg/wire"
)

func sampleContainerBytes(t *testing.T) []byte {
	t.Helper()
	c := &wire.Container{
		Version: wire.Version,
		Header: wire.Header{
			FileID:          [16]byte{1, 2, 3},
			TotalSize:       4,
			ChunkCount:      1,
			CompressionType: wire.CompressionNone,
			EncryptionType:  wire.EncryptionXChaCha20Poly1305,
			HashType:        wire.HashBlake3_256,
			SignatureType:   wire.SignatureMLDSA65,
		},
		MetadataCT: []byte{0xAA},
		KEMCT:      []byte{0xBB, 0xCC},
		Chunks: []wire.EncryptedChunk{
			{ChunkIndex: 0, ChunkSize: 4, CompressedSize: 4, EncryptedData: []byte{1, 2, 3, 4}},
		},
	}
	data, err := wire.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return data
}

func TestDetectCleanContainerNotCorrupt(t *testing.T) {
	data := sampleContainerBytes(t)
	diag := Detect(data)
	if diag.IsCorrupt() {
		t.Errorf("expected a clean container, got diagnosis %+v", diag)
	}
}

func TestDetectTooShort(t *testing.T) {
	diag := Detect([]byte{1, 2, 3})
	if diag.Type != CorruptionHeader || diag.Severity != SeverityCritical {
		t.Errorf("got %+v, want header/critical", diag)
	}
}

func TestDetectBadMagic(t *testing.T) {
	data := sampleContainerBytes(t)
	corrupted := append([]byte(nil), data...)
	copy(corrupted[0:4], []byte{0xFF, 0xFF, 0xFF, 0xFF})

	diag := Detect(corrupted)
	if diag.Type != CorruptionHeader || diag.Severity != SeverityCritical {
		t.Errorf("got %+v, want header/critical", diag)
	}
}

func TestDetectUnsupportedVersion(t *testing.T) {
	data := sampleContainerBytes(t)
	corrupted := append([]byte(nil), data...)
	corrupted[4] = 0xFF
	corrupted[5] = 0xFF

	diag := Detect(corrupted)
	if diag.Type != CorruptionHeader {
		t.Errorf("got %+v, want header type", diag)
	}
}
