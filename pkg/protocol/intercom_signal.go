package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encoding classes (top two bits of the encoding scheme)
const (
	EncodingClassEncodedAudio    = 0
	EncodingClassRawBinary       = 1
	EncodingClassApplicationData = 2
	EncodingClassDatabaseIndex   = 3
)

// Encoding types for the encoded audio class
const (
	EncodingTypeMuLaw8  = 1
	EncodingTypeCVSD    = 2
	EncodingTypeADPCM   = 3
	EncodingTypePCM16BE = 4
	EncodingTypePCM8    = 5
	EncodingTypePCM16LE = 100
)

const encodingTypeMask = 0x3FFF

// IntercomSignalPDU carries the audio or data transmitted on an intercom line
type IntercomSignalPDU struct {
	Header         PDUHeader
	EntityID       EntityID
	RadioID        uint16
	DeviceID       uint16 // Communications device id
	EncodingScheme uint16
	TDLType        uint16
	SampleRate     uint32
	DataLength     uint16 // In bits
	Samples        uint16
	Data           []byte
}

// EncodingClass returns the class bits of the encoding scheme
func (p *IntercomSignalPDU) EncodingClass() uint8 {
	return uint8(p.EncodingScheme >> 14)
}

// EncodingType returns the encoding type (or TDL message count) bits
func (p *IntercomSignalPDU) EncodingType() uint16 {
	return p.EncodingScheme & encodingTypeMask
}

func signalDataBytes(bits uint16) int {
	return (int(bits) + 7) / 8
}

func paddedSignalData(n int) int {
	return (n + SignalDataAlignment - 1) / SignalDataAlignment * SignalDataAlignment
}

// Parse parses an Intercom Signal PDU. Padding after the data is skipped.
func (p *IntercomSignalPDU) Parse(data []byte) error {
	header, err := ParsePDUHeader(data)
	if err != nil {
		return err
	}
	if header.PDUType != PDUTypeIntercomSignal {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedPDUType,
			PDUTypeName(header.PDUType), PDUTypeName(PDUTypeIntercomSignal))
	}
	if header.ProtocolFamily != ProtocolFamilyRadioCommunications {
		return fmt.Errorf("%w: protocol family %d", ErrInvalidPDUHeader, header.ProtocolFamily)
	}

	data = data[:header.Length]
	if len(data) < ISOffsetData {
		return fmt.Errorf("%w: intercom signal PDU is %d bytes, fixed part needs %d",
			ErrTruncatedInput, len(data), ISOffsetData)
	}

	p.Header = header
	p.EntityID, _, _ = ReadEntityID(data, ISOffsetEntity)
	p.RadioID = binary.BigEndian.Uint16(data[ISOffsetRadioID:])
	p.DeviceID = binary.BigEndian.Uint16(data[ISOffsetDeviceID:])
	p.EncodingScheme = binary.BigEndian.Uint16(data[ISOffsetEncodingScheme:])
	p.TDLType = binary.BigEndian.Uint16(data[ISOffsetTDLType:])
	p.SampleRate = binary.BigEndian.Uint32(data[ISOffsetSampleRate:])
	p.DataLength = binary.BigEndian.Uint16(data[ISOffsetDataLength:])
	p.Samples = binary.BigEndian.Uint16(data[ISOffsetSamples:])

	n := signalDataBytes(p.DataLength)
	if len(data)-ISOffsetData < n {
		return fmt.Errorf("%w: data length %d bits needs %d bytes, %d follow the fixed body",
			ErrTruncatedInput, p.DataLength, n, len(data)-ISOffsetData)
	}
	p.Data = make([]byte, n)
	copy(p.Data, data[ISOffsetData:ISOffsetData+n])
	return nil
}

// Encode encodes the PDU with its data zero-padded to a 32-bit boundary. A zero
// DataLength is taken as every bit of Data; otherwise it must fit Data exactly.
func (p *IntercomSignalPDU) Encode() ([]byte, error) {
	bits := p.DataLength
	if bits == 0 {
		if len(p.Data)*8 > 0xFFFF {
			return nil, fmt.Errorf("%w: %d data bytes exceed the data length field", ErrInvalidLength, len(p.Data))
		}
		bits = uint16(len(p.Data) * 8)
	}
	if signalDataBytes(bits) != len(p.Data) {
		return nil, fmt.Errorf("%w: data length %d bits, %d data bytes", ErrInvalidLength, bits, len(p.Data))
	}

	total := ISOffsetData + paddedSignalData(len(p.Data))
	if total > 0xFFFF {
		return nil, fmt.Errorf("%w: PDU would be %d bytes", ErrInvalidLength, total)
	}

	head := p.Header
	if head.ProtocolVersion == 0 {
		head.ProtocolVersion = ProtocolVersionDIS7
	}
	head.PDUType = PDUTypeIntercomSignal
	head.ProtocolFamily = ProtocolFamilyRadioCommunications
	head.Length = uint16(total)

	data := make([]byte, 0, total)
	data = head.AppendTo(data)
	data = p.EntityID.AppendTo(data)
	data = AppendUint16(data, p.RadioID)
	data = AppendUint16(data, p.DeviceID)
	data = AppendUint16(data, p.EncodingScheme)
	data = AppendUint16(data, p.TDLType)
	data = AppendUint32(data, p.SampleRate)
	data = AppendUint16(data, bits)
	data = AppendUint16(data, p.Samples)
	data = append(data, p.Data...)
	data = appendZeros(data, total-len(data))

	p.Header = head
	p.DataLength = bits
	return data, nil
}

// ParseIntercomSignalPDU parses an Intercom Signal PDU from raw bytes
func ParseIntercomSignalPDU(data []byte) (*IntercomSignalPDU, error) {
	p := &IntercomSignalPDU{}
	err := p.Parse(data)
	return p, err
}
