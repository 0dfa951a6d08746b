package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/config"
	"github.com/dbehnke/dis-nexus/pkg/logger"
	"github.com/dbehnke/dis-nexus/pkg/metrics"
	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

const defaultReadBufferSize = 8192

// IntercomHandler receives every Intercom Control PDU that decoded cleanly
type IntercomHandler func(pdu *protocol.IntercomControlPDU, src *net.UDPAddr)

// IntercomSignalHandler receives every Intercom Signal PDU that decoded cleanly
type IntercomSignalHandler func(pdu *protocol.IntercomSignalPDU, src *net.UDPAddr)

// DecodeErrorHandler receives PDUs that failed to decode. data is owned by the callee.
type DecodeErrorHandler func(err error, data []byte, src *net.UDPAddr)

// Listener receives DIS PDUs over UDP unicast or multicast
type Listener struct {
	config    config.ListenerConfig
	log       *logger.Logger
	conn      *net.UDPConn
	connMu    sync.RWMutex
	registry  *protocol.Registry
	collector *metrics.Collector
	siteACL   *ACL
	// started is closed once the UDP socket is bound and ready
	started chan struct{}

	handlerMu     sync.RWMutex
	onIntercom    IntercomHandler
	onSignal      IntercomSignalHandler
	onDecodeError DecodeErrorHandler
}

// NewListener creates a new DIS listener
func NewListener(cfg config.ListenerConfig, log *logger.Logger) *Listener {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}
	return &Listener{
		config:   cfg,
		log:      log.WithComponent("network.listener"),
		registry: protocol.DefaultRegistry(),
		started:  make(chan struct{}),
	}
}

// WithRegistry decodes records with r instead of the default registry
func (l *Listener) WithRegistry(r *protocol.Registry) *Listener {
	if r != nil {
		l.registry = r
	}
	return l
}

// WithCollector counts received and filtered PDUs on c
func (l *Listener) WithCollector(c *metrics.Collector) *Listener {
	l.collector = c
	return l
}

// SetHandlers sets the callbacks for decoded PDUs and decode failures
func (l *Listener) SetHandlers(onIntercom IntercomHandler, onDecodeError DecodeErrorHandler) {
	l.handlerMu.Lock()
	defer l.handlerMu.Unlock()
	l.onIntercom = onIntercom
	l.onDecodeError = onDecodeError
}

// SetSignalHandler sets the callback for decoded Intercom Signal PDUs
func (l *Listener) SetSignalHandler(onSignal IntercomSignalHandler) {
	l.handlerMu.Lock()
	defer l.handlerMu.Unlock()
	l.onSignal = onSignal
}

// Start binds the socket and receives until ctx is canceled
func (l *Listener) Start(ctx context.Context) error {
	acl, err := ParseACL(l.config.SiteACL)
	if err != nil {
		return fmt.Errorf("invalid site ACL: %w", err)
	}
	l.siteACL = acl

	conn, err := l.listen()
	if err != nil {
		return err
	}
	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	// Signal that the listener is ready to accept packets
	select {
	case <-l.started:
	default:
		close(l.started)
	}
	defer func() {
		_ = conn.Close()
	}()

	l.log.Info("Listener started",
		logger.String("addr", conn.LocalAddr().String()),
		logger.String("multicast_group", l.config.MulticastGroup),
		logger.Int("exercise_id", l.config.ExerciseID),
		logger.String("site_acl", l.config.SiteACL))

	errChan := make(chan error, 1)
	go func() {
		errChan <- l.receiveLoop(ctx, conn)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

func (l *Listener) listen() (*net.UDPConn, error) {
	if l.config.MulticastGroup == "" {
		localAddr := &net.UDPAddr{
			IP:   net.ParseIP(l.config.Host),
			Port: l.config.Port,
		}
		conn, err := net.ListenUDP("udp", localAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on UDP: %w", err)
		}
		return conn, nil
	}

	group := net.ParseIP(l.config.MulticastGroup)
	if group == nil || !group.IsMulticast() {
		return nil, fmt.Errorf("invalid multicast group %q", l.config.MulticastGroup)
	}

	var ifi *net.Interface
	if l.config.Interface != "" {
		iface, err := net.InterfaceByName(l.config.Interface)
		if err != nil {
			return nil, fmt.Errorf("failed to find interface %q: %w", l.config.Interface, err)
		}
		ifi = iface
	}

	conn, err := net.ListenMulticastUDP("udp4", ifi, &net.UDPAddr{IP: group, Port: l.config.Port})
	if err != nil {
		return nil, fmt.Errorf("failed to join multicast group %s: %w", group, err)
	}
	return conn, nil
}

// WaitStarted blocks until the UDP socket is bound or the context is canceled.
func (l *Listener) WaitStarted(ctx context.Context) error {
	select {
	case <-l.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the local UDP address the listener is bound to. It should be called after WaitStarted.
func (l *Listener) Addr() (*net.UDPAddr, error) {
	l.connMu.RLock()
	defer l.connMu.RUnlock()
	if l.conn == nil {
		return nil, fmt.Errorf("listener not started")
	}
	udpAddr, ok := l.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("not a UDP address")
	}
	return udpAddr, nil
}

// receiveLoop continuously receives and processes datagrams
func (l *Listener) receiveLoop(ctx context.Context, conn *net.UDPConn) error {
	buffer := make([]byte, l.config.ReadBufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Set read deadline to allow context checking
		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			l.log.Warn("Failed to set read deadline", logger.Error(err))
			continue
		}
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.log.Error("Failed to read from UDP", logger.Error(err))
			continue
		}

		packet := make([]byte, n)
		copy(packet, buffer[:n])
		l.handlePacket(packet, addr)
	}
}

// handlePacket decodes one datagram and dispatches it
func (l *Listener) handlePacket(data []byte, addr *net.UDPAddr) {
	if len(data) == 0 {
		return
	}

	header, err := protocol.ParsePDUHeader(data)
	if err != nil {
		l.decodeFailed(err, data, addr)
		return
	}

	if l.collector != nil {
		l.collector.PDUReceived(header.PDUType, len(data))
	}

	if l.config.ExerciseID != 0 && int(header.ExerciseID) != l.config.ExerciseID {
		if l.collector != nil {
			l.collector.PDUFiltered()
		}
		l.log.Debug("Dropping PDU from other exercise",
			logger.Int("exercise_id", int(header.ExerciseID)),
			logger.String("addr", addr.String()))
		return
	}

	switch header.PDUType {
	case protocol.PDUTypeIntercomControl:
		l.handleIntercomControl(data, addr)
	case protocol.PDUTypeIntercomSignal:
		l.handleIntercomSignal(data, addr)
	default:
		l.log.Debug("Ignoring PDU",
			logger.String("type", protocol.PDUTypeName(header.PDUType)),
			logger.String("addr", addr.String()),
			logger.Int("size", len(data)))
	}
}

func (l *Listener) handleIntercomControl(data []byte, addr *net.UDPAddr) {
	pdu, err := protocol.ParseIntercomControlPDU(data, l.registry)
	if err != nil {
		l.decodeFailed(err, data, addr)
		return
	}

	if !l.allowSite(pdu.SourceEntityID, addr) {
		return
	}

	l.log.Debug("Received intercom control",
		logger.String("source", pdu.SourceEntityID.String()),
		logger.String("addr", addr.String()),
		logger.Int("records", len(pdu.Records)))

	l.handlerMu.RLock()
	handler := l.onIntercom
	l.handlerMu.RUnlock()
	if handler != nil {
		handler(pdu, addr)
	}
}

func (l *Listener) handleIntercomSignal(data []byte, addr *net.UDPAddr) {
	pdu, err := protocol.ParseIntercomSignalPDU(data)
	if err != nil {
		l.decodeFailed(err, data, addr)
		return
	}

	if !l.allowSite(pdu.EntityID, addr) {
		return
	}

	l.log.Debug("Received intercom signal",
		logger.String("entity", pdu.EntityID.String()),
		logger.String("addr", addr.String()),
		logger.Int("data_bytes", len(pdu.Data)))

	l.handlerMu.RLock()
	handler := l.onSignal
	l.handlerMu.RUnlock()
	if handler != nil {
		handler(pdu, addr)
	}
}

// allowSite applies the site ACL, counting denied PDUs as filtered
func (l *Listener) allowSite(id protocol.EntityID, addr *net.UDPAddr) bool {
	if l.siteACL.Allows(id.Site) {
		return true
	}
	if l.collector != nil {
		l.collector.PDUFiltered()
	}
	l.log.Debug("Dropping PDU denied by site ACL",
		logger.String("source", id.String()),
		logger.String("addr", addr.String()))
	return false
}

func (l *Listener) decodeFailed(err error, data []byte, addr *net.UDPAddr) {
	l.log.Debug("Failed to decode PDU",
		logger.String("addr", addr.String()),
		logger.String("kind", protocol.ErrorKind(err)),
		logger.Error(err))

	l.handlerMu.RLock()
	handler := l.onDecodeError
	l.handlerMu.RUnlock()
	if handler != nil {
		handler(err, data, addr)
	}
}
