package protocol

import (
	"fmt"
)

// DecodeRecords decodes the record region of a PDU with the default registry
func DecodeRecords(data []byte, budget int) ([]Record, error) {
	return DefaultRegistry().DecodeRecords(data, budget)
}

// DecodeRecords walks data from offset 0 until exactly budget bytes have been
// consumed. Records come back in wire order. A record whose declared length
// would cross the budget stops the walk with ErrOverrunBudget before any of its
// bytes are interpreted.
func (r *Registry) DecodeRecords(data []byte, budget int) ([]Record, error) {
	if budget < 0 {
		return nil, fmt.Errorf("%w: negative budget %d", ErrInvalidLength, budget)
	}
	if budget == 0 {
		return nil, nil
	}

	records := make([]Record, 0, budget/PaddingUnit)
	for cursor := 0; cursor < budget; {
		index := len(records)
		if budget-cursor < RecordHeaderSize {
			return nil, &RecordError{Index: index, Offset: cursor,
				Err: fmt.Errorf("%w: %d budget bytes left, record header needs %d", ErrTruncatedInput, budget-cursor, RecordHeaderSize)}
		}

		recordType, length, err := readRecordHeader(data, cursor)
		if err != nil {
			return nil, &RecordError{Index: index, Offset: cursor, Type: recordType, Err: err}
		}
		if cursor+int(length) > budget {
			return nil, &RecordError{Index: index, Offset: cursor, Type: recordType,
				Err: fmt.Errorf("%w: declares %d bytes, %d left in budget", ErrOverrunBudget, length, budget-cursor)}
		}

		rec, consumed, err := DecodeRecord(data, cursor, r)
		if err != nil {
			return nil, &RecordError{Index: index, Offset: cursor, Type: recordType, Err: err}
		}
		records = append(records, rec)
		cursor += consumed
	}
	return records, nil
}

// RecordsLength returns the encoded size of records
func RecordsLength(records []Record) int {
	total := 0
	for _, rec := range records {
		total += rec.EncodedLength()
	}
	return total
}

// EncodeRecords concatenates the encodings of records in order
func EncodeRecords(records []Record) ([]byte, error) {
	return AppendRecords(make([]byte, 0, RecordsLength(records)), records)
}

// AppendRecords appends the encodings of records to dst
func AppendRecords(dst []byte, records []Record) ([]byte, error) {
	start := len(dst)
	for i, rec := range records {
		var err error
		dst, err = rec.AppendTo(dst)
		if err != nil {
			return dst[:start], &RecordError{Index: i, Offset: len(dst) - start, Type: rec.Type, Err: err}
		}
	}
	return dst, nil
}

// EncodeRecordsInto writes records into the fixed-size buffer dst and returns
// the number of bytes written. dst is left untouched when it is too small.
func EncodeRecordsInto(dst []byte, records []Record) (int, error) {
	need := RecordsLength(records)
	if need > len(dst) {
		return 0, fmt.Errorf("%w: need %d bytes, buffer holds %d", ErrBudgetExceeded, need, len(dst))
	}
	out, err := AppendRecords(dst[:0], records)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}
