package utils

import (
	"github.com/dustin/go-humanize"
)

// FormatFileSize converts a byte length into a human-readable IEC unit string.
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		return humanize.IBytes(0)
	}
	return humanize.IBytes(uint64(bytes))
}
