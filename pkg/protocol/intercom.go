package protocol

// IntercomParameters is the minimal intercom communications parameters shape:
// one 32-bit record-specific field, 8 bytes on the wire. The field is opaque
// here; consumers interpret it (control-code bit patterns and the like).
type IntercomParameters struct {
	SpecificField uint32 `json:"specific_field"`
}

func (p IntercomParameters) Size() int { return IntercomParametersSize }

func (p IntercomParameters) AppendTo(dst []byte) []byte {
	return AppendUint32(dst, p.SpecificField)
}

func decodeIntercomParameters(body []byte) (Payload, error) {
	v, _, err := ReadUint32(body, 0)
	if err != nil {
		return nil, err
	}
	return IntercomParameters{SpecificField: v}, nil
}

// NewIntercomParametersRecord builds an 8-byte intercom parameters record
func NewIntercomParametersRecord(field uint32) Record {
	return NewRecord(RecordTypeIntercomParameters, IntercomParameters{SpecificField: field})
}

// IntercomParameters returns the payload when r carries the minimal intercom shape
func (r Record) IntercomParameters() (IntercomParameters, bool) {
	p, ok := r.Payload.(IntercomParameters)
	return p, ok
}

// GroupDestination addresses an intercom group
type GroupDestination struct {
	GroupBitField       uint32 `json:"group_bit_field"`
	DestinationPriority uint8  `json:"destination_priority"`
	LineStateCommand    uint8  `json:"line_state_command"`
}

func (g GroupDestination) Size() int { return GroupDestinationSize }

func (g GroupDestination) AppendTo(dst []byte) []byte {
	dst = AppendUint32(dst, g.GroupBitField)
	dst = AppendUint8(dst, g.DestinationPriority)
	dst = AppendUint8(dst, g.LineStateCommand)
	return appendZeros(dst, 2) // reserved
}

func decodeGroupDestination(body []byte) (Payload, error) {
	if err := checkField(body, 0, GroupDestinationSize); err != nil {
		return nil, err
	}
	bits, _, _ := ReadUint32(body, 0)
	return GroupDestination{
		GroupBitField:       bits,
		DestinationPriority: body[4],
		LineStateCommand:    body[5],
	}, nil
}

// GroupAssignment assigns an entity to intercom groups
type GroupAssignment struct {
	GroupBitField uint32   `json:"group_bit_field"`
	Entity        EntityID `json:"entity"`
}

func (g GroupAssignment) Size() int { return GroupAssignmentSize }

func (g GroupAssignment) AppendTo(dst []byte) []byte {
	dst = AppendUint32(dst, g.GroupBitField)
	return g.Entity.AppendTo(dst)
}

func decodeGroupAssignment(body []byte) (Payload, error) {
	bits, n, err := ReadUint32(body, 0)
	if err != nil {
		return nil, err
	}
	entity, _, err := ReadEntityID(body, n)
	if err != nil {
		return nil, err
	}
	return GroupAssignment{GroupBitField: bits, Entity: entity}, nil
}

func registerIntercomShapes(r *Registry) {
	r.Register(RecordTypeIntercomParameters, PayloadCodec{Name: "intercom_parameters", Decode: decodeIntercomParameters})
	r.Register(RecordTypeGroupDestination, PayloadCodec{Name: "group_destination", Decode: decodeGroupDestination})
	r.Register(RecordTypeGroupAssignment, PayloadCodec{Name: "group_assignment", Decode: decodeGroupAssignment})
}
