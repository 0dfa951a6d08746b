package protocol

import (
	"encoding/binary"
	"fmt"
)

// PDUHeader is the 12-byte header shared by every DIS PDU
type PDUHeader struct {
	ProtocolVersion uint8  `json:"protocol_version"`
	ExerciseID      uint8  `json:"exercise_id"`
	PDUType         uint8  `json:"pdu_type"`
	ProtocolFamily  uint8  `json:"protocol_family"`
	Timestamp       uint32 `json:"timestamp"`
	Length          uint16 `json:"length"` // Total PDU length in bytes, header included
	Status          uint8  `json:"status"`
}

// ParsePDUHeader parses the header at the start of data and checks that the
// declared length fits in data
func ParsePDUHeader(data []byte) (PDUHeader, error) {
	if len(data) < PDUHeaderSize {
		return PDUHeader{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncatedInput, len(data), PDUHeaderSize)
	}

	h := PDUHeader{
		ProtocolVersion: data[PDUOffsetVersion],
		ExerciseID:      data[PDUOffsetExercise],
		PDUType:         data[PDUOffsetType],
		ProtocolFamily:  data[PDUOffsetFamily],
		Timestamp:       binary.BigEndian.Uint32(data[PDUOffsetTimestamp : PDUOffsetTimestamp+4]),
		Length:          binary.BigEndian.Uint16(data[PDUOffsetLength : PDUOffsetLength+2]),
		Status:          data[PDUOffsetStatus],
	}

	if h.Length < PDUHeaderSize {
		return PDUHeader{}, fmt.Errorf("%w: declared length %d shorter than header", ErrInvalidPDUHeader, h.Length)
	}
	if int(h.Length) > len(data) {
		return PDUHeader{}, fmt.Errorf("%w: declared length %d, received %d bytes", ErrTruncatedInput, h.Length, len(data))
	}
	return h, nil
}

// AppendTo appends the 12-byte header encoding
func (h PDUHeader) AppendTo(dst []byte) []byte {
	dst = append(dst, h.ProtocolVersion, h.ExerciseID, h.PDUType, h.ProtocolFamily)
	dst = AppendUint32(dst, h.Timestamp)
	dst = AppendUint16(dst, h.Length)
	return append(dst, h.Status, 0)
}

// PDUTypeName returns a readable name for the radio communications PDU types
func PDUTypeName(t uint8) string {
	switch t {
	case PDUTypeTransmitter:
		return "transmitter"
	case PDUTypeSignal:
		return "signal"
	case PDUTypeReceiver:
		return "receiver"
	case PDUTypeIntercomSignal:
		return "intercom_signal"
	case PDUTypeIntercomControl:
		return "intercom_control"
	default:
		return fmt.Sprintf("type_%d", t)
	}
}
