// Package util holds the positional byte readers and timestamp formatters
// shared by the MPLS, PGS and subtitle decoders: small, allocation-free
// helpers over a byte slice and an explicit cursor, in the same style the
// teacher uses for its own binary formats.
package util

import "fmt"

// ReadString reads count bytes as a string, truncating at the end of data
// rather than panicking on a short read.
func ReadString(data []byte, count int, pos *int) string {
	if *pos+count > len(data) {
		count = len(data) - *pos
		if count < 0 {
			count = 0
		}
	}
	val := string(data[*pos : *pos+count])
	*pos += count
	return val
}

func ReadByte(data []byte, pos *int) byte {
	if *pos >= len(data) {
		return 0
	}
	b := data[*pos]
	*pos++
	return b
}

func ReadUint16(data []byte, pos *int) uint16 {
	if *pos+2 > len(data) {
		return 0
	}
	val := uint16(data[*pos])<<8 | uint16(data[*pos+1])
	*pos += 2
	return val
}

func ReadUint32(data []byte, pos *int) uint32 {
	if *pos+4 > len(data) {
		return 0
	}
	val := uint32(data[*pos])<<24 | uint32(data[*pos+1])<<16 | uint32(data[*pos+2])<<8 | uint32(data[*pos+3])
	*pos += 4
	return val
}

func ReadInt32(data []byte, pos *int) int32 {
	return int32(ReadUint32(data, pos))
}

// Skip advances pos by n bytes, clamped to the slice length.
func Skip(data []byte, pos *int, n int) {
	*pos += n
	if *pos > len(data) {
		*pos = len(data)
	}
}

// FormatClock renders seconds as H:MM:SS with a fractional tail of the given
// number of digits (2 for ASS centiseconds, 3 for SRT milliseconds),
// truncating extra precision and zero-padding missing precision.
func FormatClock(seconds float64, fracDigits int, padHours bool) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	ms := totalMillis % 1000
	totalSeconds := totalMillis / 1000
	s := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	m := totalMinutes % 60
	h := totalMinutes / 60

	frac := ms
	switch fracDigits {
	case 2:
		frac = ms / 10
	case 3:
		frac = ms
	}

	hourFmt := "%d"
	if padHours {
		hourFmt = "%02d"
	}
	return fmt.Sprintf(hourFmt+":%02d:%02d.%0*d", h, m, s, fracDigits, frac)
}
