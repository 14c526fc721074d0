package utils

import "bytes"

// BinarySampleSize is the number of leading bytes inspected when detecting binary content.
const BinarySampleSize = 1024

// IsBinary reports whether the leading sample of data contains a NUL byte.
func IsBinary(data []byte) bool {
	sample := data
	if len(sample) > BinarySampleSize {
		sample = sample[:BinarySampleSize]
	}
	return bytes.IndexByte(sample, 0) >= 0
}
