package network

import (
	"fmt"
	"net"
	"sync"

	"github.com/dbehnke/dis-nexus/pkg/logger"
	"github.com/dbehnke/dis-nexus/pkg/metrics"
	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

// Sender transmits DIS PDUs to a unicast, broadcast or multicast destination
type Sender struct {
	target    string
	log       *logger.Logger
	conn      *net.UDPConn
	mu        sync.Mutex
	collector *metrics.Collector
}

// NewSender creates a sender for target ("host:port")
func NewSender(target string, log *logger.Logger) *Sender {
	return &Sender{
		target: target,
		log:    log.WithComponent("network.sender"),
	}
}

// WithCollector counts sent PDUs on c
func (s *Sender) WithCollector(c *metrics.Collector) *Sender {
	s.collector = c
	return s
}

// Dial resolves the target and opens the socket
func (s *Sender) Dial() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	addr, err := net.ResolveUDPAddr("udp", s.target)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", s.target, err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	s.conn = conn

	s.log.Info("Sender ready",
		logger.String("target", addr.String()),
		logger.String("local", conn.LocalAddr().String()))
	return nil
}

// SendIntercomControl encodes and sends an Intercom Control PDU
func (s *Sender) SendIntercomControl(pdu *protocol.IntercomControlPDU) error {
	data, err := pdu.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode intercom control PDU: %w", err)
	}
	if err := s.Send(data); err != nil {
		return err
	}

	s.log.Debug("Sent intercom control",
		logger.String("source", pdu.SourceEntityID.String()),
		logger.Int("records", len(pdu.Records)),
		logger.Int("size", len(data)))
	return nil
}

// SendIntercomSignal encodes and sends an Intercom Signal PDU
func (s *Sender) SendIntercomSignal(pdu *protocol.IntercomSignalPDU) error {
	data, err := pdu.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode intercom signal PDU: %w", err)
	}
	if err := s.Send(data); err != nil {
		return err
	}

	s.log.Debug("Sent intercom signal",
		logger.String("entity", pdu.EntityID.String()),
		logger.Int("radio_id", int(pdu.RadioID)),
		logger.Int("data_bits", int(pdu.DataLength)))
	return nil
}

// Send writes one already encoded PDU
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("sender not connected")
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to send PDU: %w", err)
	}
	if s.collector != nil {
		s.collector.PDUSent(len(data))
	}
	return nil
}

// Close closes the socket
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
