package protocol

import (
	"fmt"
)

// Record is one variable parameter record: a type+length header and a payload.
// Payload is one of the registered shapes, or RawPayload when the type is not
// registered.
type Record struct {
	Type    uint16  // record_type
	Length  uint16  // record_length as declared on the wire (header and padding included)
	Payload Payload // Record-specific fields
}

// RawPayload keeps the body of a record whose type has no registered codec.
// It holds every byte after the header, padding included, so the record
// re-encodes to the bytes it was decoded from.
type RawPayload []byte

// Size returns the number of retained bytes
func (p RawPayload) Size() int { return len(p) }

// AppendTo appends the retained bytes
func (p RawPayload) AppendTo(dst []byte) []byte { return append(dst, p...) }

// PaddedLength rounds n up to the next multiple of PaddingUnit
func PaddedLength(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + PaddingUnit - 1) / PaddingUnit * PaddingUnit
}

// NewRecord builds a record with its length computed from the payload
func NewRecord(recordType uint16, payload Payload) Record {
	r := Record{Type: recordType, Payload: payload}
	if payload != nil {
		if n := PaddedLength(RecordHeaderSize + payload.Size()); n <= MaxRecordLength {
			r.Length = uint16(n)
		}
	}
	return r
}

// Known reports whether the payload was interpreted by a registered codec
func (r Record) Known() bool {
	_, raw := r.Payload.(RawPayload)
	return r.Payload != nil && !raw
}

// EncodedLength returns the number of bytes AppendTo writes. A declared Length
// larger than the minimum (extra trailing padding on the wire) is honoured.
func (r Record) EncodedLength() int {
	n := RecordHeaderSize
	if r.Payload != nil {
		n += r.Payload.Size()
	}
	n = PaddedLength(n)
	if declared := PaddedLength(int(r.Length)); declared > n {
		n = declared
	}
	return n
}

// AppendTo appends the wire encoding of r to dst. Padding is always written as
// zeros: a known shape decoded from a record with non-zero padding does not
// re-encode to the same bytes. RawPayload records keep their padding bytes and
// re-encode exactly.
func (r Record) AppendTo(dst []byte) ([]byte, error) {
	if r.Payload == nil {
		return dst, fmt.Errorf("%w: record type %d has no payload", ErrInvalidLength, r.Type)
	}
	length := r.EncodedLength()
	if length > MaxRecordLength {
		return dst, fmt.Errorf("%w: record type %d needs %d bytes (max %d)", ErrInvalidLength, r.Type, length, MaxRecordLength)
	}

	start := len(dst)
	dst = AppendUint16(dst, r.Type)
	dst = AppendUint16(dst, uint16(length))
	dst = r.Payload.AppendTo(dst)

	written := len(dst) - start
	if written > length {
		return dst[:start], fmt.Errorf("%w: record type %d payload wrote %d bytes, expected at most %d", ErrInvalidLength, r.Type, written, length)
	}
	return appendZeros(dst, length-written), nil
}

// MarshalBinary encodes the record
func (r Record) MarshalBinary() ([]byte, error) {
	return r.AppendTo(make([]byte, 0, r.EncodedLength()))
}

// readRecordHeader reads record_type and record_length at offset and checks the
// length against the header size and padding rules.
func readRecordHeader(data []byte, offset int) (uint16, uint16, error) {
	recordType, _, err := ReadUint16(data, offset+RecordOffsetType)
	if err != nil {
		return 0, 0, err
	}
	length, _, err := ReadUint16(data, offset+RecordOffsetLength)
	if err != nil {
		return recordType, 0, err
	}
	if length < RecordHeaderSize {
		return recordType, length, fmt.Errorf("%w: record type %d declares %d bytes, header alone is %d",
			ErrInvalidLength, recordType, length, RecordHeaderSize)
	}
	if length%PaddingUnit != 0 {
		return recordType, length, fmt.Errorf("%w: record type %d declares %d bytes, not a multiple of %d",
			ErrInvalidLength, recordType, length, PaddingUnit)
	}
	return recordType, length, nil
}

// DecodeRecord decodes the record starting at offset. consumed always equals
// the declared record_length on success. A nil registry means DefaultRegistry().
func DecodeRecord(data []byte, offset int, registry *Registry) (Record, int, error) {
	recordType, length, err := readRecordHeader(data, offset)
	if err != nil {
		return Record{}, 0, err
	}
	end := offset + int(length)
	if end > len(data) {
		return Record{}, 0, fmt.Errorf("%w: record type %d declares %d bytes, %d available",
			ErrInvalidLength, recordType, length, len(data)-offset)
	}
	body := data[offset+RecordOffsetBody : end]

	rec := Record{Type: recordType, Length: length}
	codec, ok := registryOrDefault(registry).Lookup(recordType)
	if !ok {
		raw := make(RawPayload, len(body))
		copy(raw, body)
		rec.Payload = raw
		return rec, int(length), nil
	}

	payload, err := codec.Decode(body)
	if err != nil {
		return Record{}, 0, fmt.Errorf("%s record: %w", codec.Name, err)
	}
	rec.Payload = payload
	return rec, int(length), nil
}

// ParseRecord decodes a single record occupying the start of data
func ParseRecord(data []byte) (*Record, error) {
	r, _, err := DecodeRecord(data, 0, nil)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
