package testhelpers

import (
	"net"
	"sync"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

// MockEntity simulates a DIS simulator owning one intercom device
type MockEntity struct {
	EntityID   protocol.EntityID
	ExerciseID uint8
	RadioID    uint16
	DeviceID   uint8
	LineID     uint8
	conn       *net.UDPConn
	target     *net.UDPAddr
	mu         sync.RWMutex
	sent       [][]byte
	closed     bool
}

// NewMockEntity creates a new mock entity
func NewMockEntity(id protocol.EntityID, exerciseID uint8) *MockEntity {
	return &MockEntity{
		EntityID:   id,
		ExerciseID: exerciseID,
		RadioID:    1,
		DeviceID:   1,
		LineID:     1,
		sent:       make([][]byte, 0),
	}
}

// Connect points the entity at a listener address
func (m *MockEntity) Connect(target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return err
	}
	m.target = addr

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return err
	}
	m.conn = conn

	return nil
}

// IntercomControl builds an Intercom Control PDU from this entity
func (m *MockEntity) IntercomControl(lineState uint8, records ...protocol.Record) *protocol.IntercomControlPDU {
	return &protocol.IntercomControlPDU{
		Header: protocol.PDUHeader{
			ProtocolVersion: protocol.ProtocolVersionDIS7,
			ExerciseID:      m.ExerciseID,
			Timestamp:       uint32(time.Now().Unix()),
		},
		EntityID:          m.EntityID,
		RadioID:           m.RadioID,
		ControlType:       protocol.ControlTypeStatus,
		SourceEntityID:    m.EntityID,
		SourceDeviceID:    m.DeviceID,
		SourceLineID:      m.LineID,
		TransmitLineState: lineState,
		Records:           records,
	}
}

// SendIntercomControl encodes and sends an Intercom Control PDU
func (m *MockEntity) SendIntercomControl(lineState uint8, records ...protocol.Record) error {
	data, err := m.IntercomControl(lineState, records...).Encode()
	if err != nil {
		return err
	}
	return m.SendRaw(data)
}

// SendIntercomSignal sends 8 kHz mu-law audio on this entity's intercom
func (m *MockEntity) SendIntercomSignal(samples []byte) error {
	pdu := &protocol.IntercomSignalPDU{
		Header: protocol.PDUHeader{
			ProtocolVersion: protocol.ProtocolVersionDIS7,
			ExerciseID:      m.ExerciseID,
			Timestamp:       uint32(time.Now().Unix()),
		},
		EntityID:       m.EntityID,
		RadioID:        m.RadioID,
		DeviceID:       uint16(m.DeviceID),
		EncodingScheme: protocol.EncodingTypeMuLaw8,
		SampleRate:     8000,
		Samples:        uint16(len(samples)),
		Data:           samples,
	}
	data, err := pdu.Encode()
	if err != nil {
		return err
	}
	return m.SendRaw(data)
}

// SendRaw sends bytes as-is, for malformed PDU tests
func (m *MockEntity) SendRaw(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}

	if _, err := m.conn.Write(data); err != nil {
		return err
	}
	packet := make([]byte, len(data))
	copy(packet, data)
	m.sent = append(m.sent, packet)
	return nil
}

// GetSentPackets returns every datagram sent so far
func (m *MockEntity) GetSentPackets() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	packets := make([][]byte, len(m.sent))
	copy(packets, m.sent)
	return packets
}

// Close closes the entity's socket
func (m *MockEntity) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// IsConnected returns whether the entity has an open socket
func (m *MockEntity) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn != nil && !m.closed
}
