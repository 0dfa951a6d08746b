package protocol

// Variable parameter record layout (in bytes)
const (
	RecordHeaderSize   = 4      // record_type (2) + record_length (2)
	PaddingUnit        = 8      // Every record_length is a multiple of this
	MaxRecordLength    = 0xFFF8 // Largest padded length that fits the 16-bit length field
	RecordOffsetType   = 0      // 2 bytes: record_type
	RecordOffsetLength = 2      // 2 bytes: record_length
	RecordOffsetBody   = 4      // record-specific fields, then zero padding
)

// Intercom communications parameters record types
const (
	RecordTypeIntercomParameters uint16 = 1 // Single 32-bit record-specific field
	RecordTypeGroupDestination   uint16 = 2 // Group bit field + priority + line state command
	RecordTypeGroupAssignment    uint16 = 3 // Group bit field + assigned entity
)

// Record body sizes (fields only, before padding)
const (
	IntercomParametersSize = 4
	GroupDestinationSize   = 8 // 4 + 1 + 1 + 2 reserved
	GroupAssignmentSize    = 10
)

// PDU header layout
const (
	PDUHeaderSize = 12

	PDUOffsetVersion   = 0  // 1 byte: protocol version
	PDUOffsetExercise  = 1  // 1 byte: exercise ID
	PDUOffsetType      = 2  // 1 byte: PDU type
	PDUOffsetFamily    = 3  // 1 byte: protocol family
	PDUOffsetTimestamp = 4  // 4 bytes: timestamp
	PDUOffsetLength    = 8  // 2 bytes: total PDU length
	PDUOffsetStatus    = 10 // 1 byte: PDU status
	PDUOffsetPadding   = 11 // 1 byte: padding
)

// Protocol versions
const (
	ProtocolVersionDIS6 = 6 // IEEE 1278.1A-1998
	ProtocolVersionDIS7 = 7 // IEEE 1278.1-2012
)

// Protocol families
const (
	ProtocolFamilyRadioCommunications = 4
)

// Radio communications PDU types
const (
	PDUTypeTransmitter     = 25
	PDUTypeSignal          = 26
	PDUTypeReceiver        = 27
	PDUTypeIntercomSignal  = 31
	PDUTypeIntercomControl = 32
)

// Intercom Control PDU fixed body (after the PDU header)
const (
	EntityIDSize = 6

	IntercomControlFixedSize = 33 // Body bytes before the parameter records

	ICOffsetEntity           = PDUHeaderSize      // 6 bytes: issuing entity
	ICOffsetRadioID          = PDUHeaderSize + 6  // 2 bytes
	ICOffsetControlType      = PDUHeaderSize + 8  // 1 byte
	ICOffsetChannelType      = PDUHeaderSize + 9  // 1 byte
	ICOffsetSourceEntity     = PDUHeaderSize + 10 // 6 bytes
	ICOffsetSourceDevice     = PDUHeaderSize + 16 // 1 byte
	ICOffsetSourceLine       = PDUHeaderSize + 17 // 1 byte
	ICOffsetTransmitPriority = PDUHeaderSize + 18 // 1 byte
	ICOffsetLineState        = PDUHeaderSize + 19 // 1 byte
	ICOffsetCommand          = PDUHeaderSize + 20 // 1 byte
	ICOffsetMasterEntity     = PDUHeaderSize + 21 // 6 bytes
	ICOffsetMasterDevice     = PDUHeaderSize + 27 // 2 bytes
	ICOffsetParamsLength     = PDUHeaderSize + 29 // 4 bytes: number of parameter records
	ICOffsetRecords          = PDUHeaderSize + IntercomControlFixedSize
)

// Intercom Signal PDU fixed body (after the PDU header)
const (
	IntercomSignalFixedSize = 22 // Body bytes before the signal data
	SignalDataAlignment     = 4  // Signal data is padded to a 32-bit boundary

	ISOffsetEntity         = PDUHeaderSize      // 6 bytes
	ISOffsetRadioID        = PDUHeaderSize + 6  // 2 bytes
	ISOffsetDeviceID       = PDUHeaderSize + 8  // 2 bytes
	ISOffsetEncodingScheme = PDUHeaderSize + 10 // 2 bytes
	ISOffsetTDLType        = PDUHeaderSize + 12 // 2 bytes
	ISOffsetSampleRate     = PDUHeaderSize + 14 // 4 bytes
	ISOffsetDataLength     = PDUHeaderSize + 18 // 2 bytes: data length in bits
	ISOffsetSamples        = PDUHeaderSize + 20 // 2 bytes
	ISOffsetData           = PDUHeaderSize + IntercomSignalFixedSize
)

// Intercom control types
const (
	ControlTypeStatus                = 1
	ControlTypeRequestAcknowledgeReq = 2
	ControlTypeRequestNoAcknowledge  = 3
	ControlTypeAckRequestGranted     = 4
	ControlTypeNack                  = 5
)

// Transmit line states
const (
	LineStateNotValid        = 0
	LineStateNotTransmitting = 1
	LineStateTransmitting    = 2
)
