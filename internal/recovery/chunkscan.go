package recovery

import (
	"bytes"
	"encoding/binary"

	"github.com/zkimio/zkim-core/pkg/wire"
)

// Wire TLV tag bytes, mirrored from pkg/wire/tlv.go's private tlvType
// enum, so this package can scan chunk frames byte-by-byte instead of
// failing an all-or-nothing wire.Decode.
const (
	tagHeader        byte = 0x01
	tagMetadata      byte = 0x02
	tagKEMCiphertext byte = 0x03
	tagChunk         byte = 0x04
)

const sigTrailerSize = wire.SignatureSize * 3

// readFrame reads one type(u8)|length(u32-LE)|payload TLV frame from
// the start of buf, returning the tag, payload, and bytes consumed.
func readFrame(buf []byte) (tag byte, payload []byte, n int, ok bool) {
	if len(buf) < 5 {
		return 0, nil, 0, false
	}
	tag = buf[0]
	length := binary.LittleEndian.Uint32(buf[1:5])
	end := 5 + int(length)
	if end > len(buf) || end < 5 {
		return 0, nil, 0, false
	}
	return tag, buf[5:end], end, true
}

// frameLayout locates the header TLV frame and the chunk region,
// validating that the fixed magic/version/flags prefix and the
// metadata/KEM singleton frames all parse cleanly ahead of them.
// Chunk-range repair only applies when corruption is isolated to the
// chunk area, so any failure here reports ok=false.
func frameLayout(data []byte) (headerPayload []byte, headerStart, headerEnd, chunkStart, chunkEnd int, ok bool) {
	if len(data) < 8 {
		return nil, 0, 0, 0, 0, false
	}
	offset := 8
	headerStart = offset
	tag, payload, n, frameOK := readFrame(data[offset:])
	if !frameOK || tag != tagHeader {
		return nil, 0, 0, 0, 0, false
	}
	headerPayload = payload
	offset += n
	headerEnd = offset

	for _, want := range []byte{tagMetadata, tagKEMCiphertext} {
		t, _, n, frameOK := readFrame(data[offset:])
		if !frameOK || t != want {
			return nil, 0, 0, 0, 0, false
		}
		offset += n
	}

	chunkStart = offset
	chunkEnd = len(data) - sigTrailerSize
	if chunkEnd < chunkStart {
		return nil, 0, 0, 0, 0, false
	}
	return headerPayload, headerStart, headerEnd, chunkStart, chunkEnd, true
}

// scanChunks walks the chunk region in strict index order (0, 1, 2,
// ...), collecting the raw TLV bytes and decoded form of every chunk
// that parses cleanly up to the first one that doesn't. firstBadIndex
// is the sequential index at which scanning stopped, or -1 if the
// whole region parsed cleanly.
func scanChunks(data []byte) (survivingBytes [][]byte, surviving []wire.EncryptedChunk, firstBadIndex, chunkStart, chunkEnd int, ok bool) {
	_, _, _, chunkStart, chunkEnd, ok = frameLayout(data)
	if !ok {
		return nil, nil, -1, 0, 0, false
	}

	pos := chunkStart
	expected := uint32(0)
	for pos < chunkEnd {
		tag, payload, n, frameOK := readFrame(data[pos:chunkEnd])
		if !frameOK || tag != tagChunk {
			return survivingBytes, surviving, int(expected), chunkStart, chunkEnd, true
		}
		chunk, err := wire.DecodeChunk(payload)
		if err != nil || chunk.ChunkIndex != expected {
			return survivingBytes, surviving, int(expected), chunkStart, chunkEnd, true
		}
		survivingBytes = append(survivingBytes, data[pos:pos+n])
		surviving = append(surviving, *chunk)
		pos += n
		expected++
	}
	return survivingBytes, surviving, -1, chunkStart, chunkEnd, true
}

// locateFirstBadChunkIndex reports the index of the first chunk TLV
// that fails to parse in sequence, or -1 when the chunk region cannot
// be scanned at all or every chunk frame present parses cleanly.
func locateFirstBadChunkIndex(data []byte) int {
	_, _, firstBad, _, _, ok := scanChunks(data)
	if !ok {
		return -1
	}
	return firstBad
}

// dropCorruptChunks rebuilds data with every chunk frame from the
// first parse failure onward removed, and the header's chunkCount
// corrected to match. droppedFrom is the sequential index repair
// started dropping from, or -1 if every present chunk frame parsed
// cleanly and only the header's declared chunkCount needed
// correcting. ok is false when the chunk region can't be located, or
// when the rebuilt bytes don't form a valid container per
// wire.Decode.
func dropCorruptChunks(data []byte) (repaired []byte, droppedFrom int, ok bool) {
	headerPayload, headerStart, headerEnd, chunkStart, chunkEnd, laid := frameLayout(data)
	if !laid {
		return nil, -1, false
	}

	survivingBytes, _, firstBad, _, _, scanned := scanChunks(data)
	if !scanned {
		return nil, -1, false
	}

	header, err := wire.DecodeHeader(headerPayload)
	if err != nil {
		return nil, -1, false
	}
	header.ChunkCount = uint32(len(survivingBytes))

	newHeaderPayload, err := wire.EncodeHeader(header)
	if err != nil {
		return nil, -1, false
	}

	var buf bytes.Buffer
	buf.Write(data[:headerStart])
	buf.Write(encodeFrame(tagHeader, newHeaderPayload))
	buf.Write(data[headerEnd:chunkStart])
	for _, cb := range survivingBytes {
		buf.Write(cb)
	}
	buf.Write(data[chunkEnd:])

	out := buf.Bytes()
	if _, err := wire.Decode(out); err != nil {
		return nil, firstBad, false
	}
	return out, firstBad, true
}

func encodeFrame(tag byte, payload []byte) []byte {
	out := make([]byte, 0, 5+len(payload))
	out = append(out, tag)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:]...)
	return append(out, payload...)
}
