// Package bucket implements the size-bucketing policy shared by the
// Content Processor (chunk padding) and the Search Index (result-list
// padding): round a length up to a discrete public size so observers
// cannot infer the true value from ciphertext or response size alone.
package bucket

// ContentSizes is the chunk-padding ladder from the wire format spec.
var ContentSizes = []int{64, 256, 1024, 4096, 16384, 65536, 262144, 524288, 1048576}

// Next returns the smallest value in sizes that is >= n. If n exceeds
// every bucket, the largest bucket is returned (no unbounded padding).
// sizes must be non-empty and ascending.
func Next(sizes []int, n int) int {
	for _, s := range sizes {
		if n <= s {
			return s
		}
	}
	return sizes[len(sizes)-1]
}

// PadTo returns data right-padded with zero bytes to the next bucket
// size at or above len(data). If len(data) already meets or exceeds
// every configured bucket, data is returned unchanged.
func PadTo(sizes []int, data []byte) []byte {
	target := Next(sizes, len(data))
	if target <= len(data) {
		return data
	}
	padded := make([]byte, target)
	copy(padded, data)
	return padded
}
