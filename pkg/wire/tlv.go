// Package wire implements the bit-exact container serialization
// format: magic/version/flags, TLV-framed header/metadata/KEM blocks,
// variable chunk TLVs, and three fixed-size post-quantum signature
// blocks.
package wire

import (
	"encoding/binary"
	"errors"
)

// TLV type tags. Closed enum — an unrecognized tag on decode is a
// DuplicateFrame or InvalidEnum condition at the caller, never
// silently skipped.
type tlvType byte

const (
	tlvHeader        tlvType = 0x01
	tlvMetadata      tlvType = 0x02
	tlvKEMCiphertext tlvType = 0x03
	tlvChunk         tlvType = 0x04
)

var (
	// ErrTruncated indicates a TLV's declared length overruns the buffer.
	ErrTruncated = errors.New("wire: truncated TLV frame")
	// ErrDuplicateFrame indicates a singleton TLV appeared more than once.
	ErrDuplicateFrame = errors.New("wire: duplicate TLV frame")
)

// encodeTLV writes type(u8) | length(u32-LE) | payload.
func encodeTLV(t tlvType, payload []byte) []byte {
	out := make([]byte, 0, 1+4+len(payload))
	out = append(out, byte(t))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	return out
}

// decodeTLV reads one TLV frame starting at buf[0], returning the tag,
// payload, and the number of bytes consumed.
func decodeTLV(buf []byte) (tlvType, []byte, int, error) {
	if len(buf) < 5 {
		return 0, nil, 0, ErrTruncated
	}
	t := tlvType(buf[0])
	length := binary.LittleEndian.Uint32(buf[1:5])
	end := 5 + int(length)
	if end > len(buf) || end < 5 {
		return 0, nil, 0, ErrTruncated
	}
	return t, buf[5:end], end, nil
}
