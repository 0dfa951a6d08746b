package protocol

import (
	"encoding/binary"
	"fmt"
)

// Field widths (in bytes)
const (
	Uint8Size  = 1
	Uint16Size = 2
	Uint32Size = 4
)

// checkField reports ErrTruncatedInput when data cannot hold width bytes at offset.
func checkField(data []byte, offset, width int) error {
	if offset < 0 || len(data)-offset < width {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedInput, width, offset, len(data))
	}
	return nil
}

// ReadUint8 reads one byte at offset
func ReadUint8(data []byte, offset int) (uint8, int, error) {
	if err := checkField(data, offset, Uint8Size); err != nil {
		return 0, 0, err
	}
	return data[offset], Uint8Size, nil
}

// ReadUint16 reads a big-endian uint16 at offset
func ReadUint16(data []byte, offset int) (uint16, int, error) {
	if err := checkField(data, offset, Uint16Size); err != nil {
		return 0, 0, err
	}
	return binary.BigEndian.Uint16(data[offset : offset+Uint16Size]), Uint16Size, nil
}

// ReadUint32 reads a big-endian uint32 at offset
func ReadUint32(data []byte, offset int) (uint32, int, error) {
	if err := checkField(data, offset, Uint32Size); err != nil {
		return 0, 0, err
	}
	return binary.BigEndian.Uint32(data[offset : offset+Uint32Size]), Uint32Size, nil
}

// AppendUint8 appends one byte
func AppendUint8(dst []byte, v uint8) []byte {
	return append(dst, v)
}

// AppendUint16 appends v in network byte order
func AppendUint16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

// AppendUint32 appends v in network byte order
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

// appendZeros appends n zero bytes
func appendZeros(dst []byte, n int) []byte {
	for i := 0; i < n; i++ {
		dst = append(dst, 0)
	}
	return dst
}
