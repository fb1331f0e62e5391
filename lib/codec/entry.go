package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

const (
	// Live marks an entry whose key/value pair is part of the store
	Live byte = 1
	// Dead marks a tombstoned entry
	Dead byte = 0

	// lengthFieldSize is the width of each of the two length prefixes
	lengthFieldSize = 4
	// HeaderSize is the number of bytes preceding the key bytes of every entry
	HeaderSize = 1 + 2*lengthFieldSize
)

var (
	// ErrEncoding is returned if a key or value is not valid utf-8 or exceeds the length fields
	ErrEncoding = errors.New("encoding error")
	// ErrCorruption is returned if a record cannot be decoded
	ErrCorruption = errors.New("corrupted record")
)

// Entry is a single decoded log record.
// Offset and Len are derived while decoding and are not stored on disk.
type Entry struct {
	Live   bool
	Key    string
	Value  string
	Offset int
	Len    int
}

// EncodedLen returns the number of bytes an entry for key and value occupies on disk
func EncodedLen(key, value string) int {
	return HeaderSize + len(key) + len(value)
}

// Encode serializes key and value into a new live entry.
func Encode(key, value string) ([]byte, error) {
	buf := make([]byte, 0, EncodedLen(key, value))
	return AppendEncoded(buf, key, value)
}

// AppendEncoded appends a live entry for key and value to dst and returns the extended buffer.
// On error dst is returned unchanged.
func AppendEncoded(dst []byte, key, value string) ([]byte, error) {
	if err := checkLen("key", len(key)); err != nil {
		return dst, err
	}
	if err := checkLen("value", len(value)); err != nil {
		return dst, err
	}
	if !utf8.ValidString(key) {
		return dst, fmt.Errorf("%w: key is not valid utf-8", ErrEncoding)
	}
	if !utf8.ValidString(value) {
		return dst, fmt.Errorf("%w: value is not valid utf-8", ErrEncoding)
	}

	dst = append(dst, Live)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(key)))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(value)))
	dst = append(dst, key...)
	dst = append(dst, value...)
	return dst, nil
}

// checkLen reports whether n bytes fit into a length field
func checkLen(field string, n int) error {
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: %s length %d exceeds %d bytes", ErrEncoding, field, n, uint32(math.MaxUint32))
	}
	return nil
}

// Decode parses the entry starting at offset start of buf.
// The returned entry has Offset set to start and Len set to its total on-disk length.
func Decode(buf []byte, start int) (Entry, error) {
	if start < 0 || start >= len(buf) {
		return Entry{}, fmt.Errorf("%w: offset %d outside of buffer (len %d)", ErrCorruption, start, len(buf))
	}

	rest := buf[start:]
	if len(rest) < HeaderSize {
		return Entry{}, fmt.Errorf("%w: truncated header at offset %d (%d of %d bytes)", ErrCorruption, start, len(rest), HeaderSize)
	}

	var live bool
	switch rest[0] {
	case Live:
		live = true
	case Dead:
		live = false
	default:
		return Entry{}, fmt.Errorf("%w: invalid liveness byte 0x%02x at offset %d", ErrCorruption, rest[0], start)
	}

	keyLen := uint64(binary.BigEndian.Uint32(rest[1 : 1+lengthFieldSize]))
	valueLen := uint64(binary.BigEndian.Uint32(rest[1+lengthFieldSize : HeaderSize]))

	// computed in uint64 so that huge declared lengths cannot overflow int on 32 bit platforms
	total := uint64(HeaderSize) + keyLen + valueLen
	if total > uint64(len(rest)) {
		return Entry{}, fmt.Errorf("%w: entry at offset %d declares %d bytes, only %d remain", ErrCorruption, start, total, len(rest))
	}

	keyEnd := HeaderSize + int(keyLen)
	key := rest[HeaderSize:keyEnd]
	value := rest[keyEnd : keyEnd+int(valueLen)]

	if !utf8.Valid(key) {
		return Entry{}, fmt.Errorf("%w: key at offset %d is not valid utf-8", ErrCorruption, start)
	}
	if !utf8.Valid(value) {
		return Entry{}, fmt.Errorf("%w: value at offset %d is not valid utf-8", ErrCorruption, start)
	}

	return Entry{
		Live:   live,
		Key:    string(key),
		Value:  string(value),
		Offset: start,
		Len:    int(total),
	}, nil
}
