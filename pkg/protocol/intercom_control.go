package protocol

import (
	"encoding/binary"
	"fmt"
)

// IntercomControlPDU communicates the state of an intercom device and carries a
// trailing sequence of intercom communications parameters records
type IntercomControlPDU struct {
	Header                    PDUHeader
	EntityID                  EntityID // Entity issuing the PDU
	RadioID                   uint16
	ControlType               uint8
	CommunicationsChannelType uint8
	SourceEntityID            EntityID
	SourceDeviceID            uint8
	SourceLineID              uint8
	TransmitPriority          uint8
	TransmitLineState         uint8
	Command                   uint8
	MasterEntityID            EntityID
	MasterDeviceID            uint16
	ParametersLength          uint32 // Number of parameter records that follow the fixed body
	Records                   []Record
}

// Parse parses an Intercom Control PDU. A nil registry means DefaultRegistry().
//
// The record region runs from the end of the fixed body to the end of the PDU
// as declared by the header; that byte count is the budget for the record walk.
// ParametersLength must then match the number of records decoded.
func (p *IntercomControlPDU) Parse(data []byte, registry *Registry) error {
	header, err := ParsePDUHeader(data)
	if err != nil {
		return err
	}
	if header.PDUType != PDUTypeIntercomControl {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedPDUType,
			PDUTypeName(header.PDUType), PDUTypeName(PDUTypeIntercomControl))
	}
	if header.ProtocolFamily != ProtocolFamilyRadioCommunications {
		return fmt.Errorf("%w: protocol family %d", ErrInvalidPDUHeader, header.ProtocolFamily)
	}

	// Only the bytes the header declares belong to this PDU
	data = data[:header.Length]
	if len(data) < ICOffsetRecords {
		return fmt.Errorf("%w: intercom control PDU is %d bytes, fixed part needs %d",
			ErrTruncatedInput, len(data), ICOffsetRecords)
	}

	p.Header = header
	p.EntityID, _, _ = ReadEntityID(data, ICOffsetEntity)
	p.RadioID = binary.BigEndian.Uint16(data[ICOffsetRadioID : ICOffsetRadioID+2])
	p.ControlType = data[ICOffsetControlType]
	p.CommunicationsChannelType = data[ICOffsetChannelType]
	p.SourceEntityID, _, _ = ReadEntityID(data, ICOffsetSourceEntity)
	p.SourceDeviceID = data[ICOffsetSourceDevice]
	p.SourceLineID = data[ICOffsetSourceLine]
	p.TransmitPriority = data[ICOffsetTransmitPriority]
	p.TransmitLineState = data[ICOffsetLineState]
	p.Command = data[ICOffsetCommand]
	p.MasterEntityID, _, _ = ReadEntityID(data, ICOffsetMasterEntity)
	p.MasterDeviceID = binary.BigEndian.Uint16(data[ICOffsetMasterDevice : ICOffsetMasterDevice+2])
	p.ParametersLength = binary.BigEndian.Uint32(data[ICOffsetParamsLength : ICOffsetParamsLength+4])

	region := data[ICOffsetRecords:]
	records, err := registryOrDefault(registry).DecodeRecords(region, len(region))
	if err != nil {
		return fmt.Errorf("intercom parameters: %w", err)
	}
	if uint64(len(records)) != uint64(p.ParametersLength) {
		return fmt.Errorf("%w: parameters length declares %d records, %d bytes hold %d",
			ErrInvalidLength, p.ParametersLength, len(region), len(records))
	}
	p.Records = records
	return nil
}

// Encode encodes the PDU. ParametersLength and Header.Length are recomputed
// from the records; PDUType and ProtocolFamily are forced.
func (p *IntercomControlPDU) Encode() ([]byte, error) {
	total := ICOffsetRecords + RecordsLength(p.Records)
	if total > 0xFFFF {
		return nil, fmt.Errorf("%w: PDU would be %d bytes", ErrInvalidLength, total)
	}

	head := p.Header
	if head.ProtocolVersion == 0 {
		head.ProtocolVersion = ProtocolVersionDIS7
	}
	head.PDUType = PDUTypeIntercomControl
	head.ProtocolFamily = ProtocolFamilyRadioCommunications
	head.Length = uint16(total)
	count := uint32(len(p.Records))

	data := make([]byte, 0, total)
	data = head.AppendTo(data)
	data = p.EntityID.AppendTo(data)
	data = AppendUint16(data, p.RadioID)
	data = append(data, p.ControlType, p.CommunicationsChannelType)
	data = p.SourceEntityID.AppendTo(data)
	data = append(data, p.SourceDeviceID, p.SourceLineID, p.TransmitPriority, p.TransmitLineState, p.Command)
	data = p.MasterEntityID.AppendTo(data)
	data = AppendUint16(data, p.MasterDeviceID)
	data = AppendUint32(data, count)

	data, err := AppendRecords(data, p.Records)
	if err != nil {
		return nil, fmt.Errorf("intercom parameters: %w", err)
	}

	p.Header = head
	p.ParametersLength = count
	return data, nil
}

// ParseIntercomControlPDU parses an Intercom Control PDU from raw bytes
func ParseIntercomControlPDU(data []byte, registry *Registry) (*IntercomControlPDU, error) {
	p := &IntercomControlPDU{}
	err := p.Parse(data, registry)
	return p, err
}
