package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrTruncatedInput    = errors.New("protocol: truncated input")
	ErrInvalidLength     = errors.New("protocol: invalid record length")
	ErrOverrunBudget     = errors.New("protocol: record overruns byte budget")
	ErrBudgetExceeded    = errors.New("protocol: encode buffer too small")
	ErrInvalidPDUHeader  = errors.New("protocol: invalid PDU header")
	ErrUnexpectedPDUType = errors.New("protocol: unexpected PDU type")
)

// RecordError locates a failure inside a record sequence.
type RecordError struct {
	Index  int    // Position of the failing record in the sequence
	Offset int    // Byte offset of the record header
	Type   uint16 // record_type, zero if the header could not be read
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (type %d) at offset %d: %v", e.Index, e.Type, e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// ErrorKind returns a short label for err, used for metrics and logs
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTruncatedInput):
		return "truncated"
	case errors.Is(err, ErrInvalidLength):
		return "invalid_length"
	case errors.Is(err, ErrOverrunBudget):
		return "overrun_budget"
	case errors.Is(err, ErrBudgetExceeded):
		return "budget_exceeded"
	case errors.Is(err, ErrInvalidPDUHeader):
		return "invalid_header"
	case errors.Is(err, ErrUnexpectedPDUType):
		return "unexpected_type"
	default:
		return "other"
	}
}
