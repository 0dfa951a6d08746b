package monitor

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/database"
	"github.com/dbehnke/dis-nexus/pkg/logger"
	"github.com/dbehnke/dis-nexus/pkg/metrics"
	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

// EventWriter persists decoded intercom events
type EventWriter interface {
	Create(ev *database.IntercomEvent) error
	DeleteOlderThan(before time.Time) (int64, error)
}

// Broadcaster pushes events to live dashboard clients
type Broadcaster interface {
	BroadcastIntercomControl(ev *database.IntercomEvent)
	BroadcastIntercomSignal(pdu *protocol.IntercomSignalPDU, source string)
	BroadcastDecodeError(source string, kind string, err error)
}

// Recorder turns decoded Intercom Control PDUs into stored events. Any of
// repo, hub and collector may be nil.
type Recorder struct {
	repo      EventWriter
	hub       Broadcaster
	collector *metrics.Collector
	registry  *protocol.Registry
	logger    *logger.Logger

	activeLines map[lineKey]*activeLine
	mu          sync.RWMutex
}

// lineKey identifies one intercom line of one device
type lineKey struct {
	entity protocol.EntityID
	device uint8
	line   uint8
}

// activeLine tracks a line that is currently transmitting
type activeLine struct {
	startTime time.Time
	lastSeen  time.Time
	pduCount  int
}

// NewRecorder creates a new recorder
func NewRecorder(repo EventWriter, hub Broadcaster, collector *metrics.Collector, log *logger.Logger) *Recorder {
	return &Recorder{
		repo:        repo,
		hub:         hub,
		collector:   collector,
		registry:    protocol.DefaultRegistry(),
		logger:      log,
		activeLines: make(map[lineKey]*activeLine),
	}
}

// WithRegistry names record shapes using r instead of the default registry
func (r *Recorder) WithRegistry(reg *protocol.Registry) *Recorder {
	if reg != nil {
		r.registry = reg
	}
	return r
}

// HandleIntercomControl records one decoded PDU received from src
func (r *Recorder) HandleIntercomControl(pdu *protocol.IntercomControlPDU, src *net.UDPAddr) {
	source := ""
	if src != nil {
		source = src.String()
	}

	if r.collector != nil {
		r.collector.IntercomDecoded(pdu.Records)
	}
	r.trackLine(pdu)

	ev := NewEvent(pdu, source, r.registry)
	if r.repo != nil {
		if err := r.repo.Create(ev); err != nil {
			r.logger.Error("Failed to save intercom event",
				logger.Error(err),
				logger.String("source_entity", ev.SourceEntity))
		} else {
			r.logger.Debug("Saved intercom event",
				logger.Uint("id", ev.ID),
				logger.String("source_entity", ev.SourceEntity),
				logger.Int("records", ev.RecordCount))
		}
	}

	if r.hub != nil {
		r.hub.BroadcastIntercomControl(ev)
	}
}

// HandleIntercomSignal counts a decoded Intercom Signal PDU and pushes its
// metadata to live clients. Signal data is not stored.
func (r *Recorder) HandleIntercomSignal(pdu *protocol.IntercomSignalPDU, src *net.UDPAddr) {
	source := ""
	if src != nil {
		source = src.String()
	}

	if r.collector != nil {
		r.collector.IntercomSignalDecoded(len(pdu.Data))
	}
	r.logger.Debug("Intercom signal",
		logger.String("entity", pdu.EntityID.String()),
		logger.Int("radio_id", int(pdu.RadioID)),
		logger.Int("encoding_type", int(pdu.EncodingType())),
		logger.Int("data_bits", int(pdu.DataLength)))

	if r.hub != nil {
		r.hub.BroadcastIntercomSignal(pdu, source)
	}
}

// HandleDecodeError records a PDU that failed to decode
func (r *Recorder) HandleDecodeError(err error, data []byte, src *net.UDPAddr) {
	source := ""
	if src != nil {
		source = src.String()
	}
	kind := protocol.ErrorKind(err)

	if r.collector != nil {
		r.collector.DecodeError(err)
	}
	r.logger.Warn("Dropped undecodable PDU",
		logger.String("source", source),
		logger.String("kind", kind),
		logger.Int("size", len(data)),
		logger.Error(err))

	if r.hub != nil {
		r.hub.BroadcastDecodeError(source, kind, err)
	}
}

// NewEvent converts a decoded PDU into its storage form. Record payloads are
// stored as encoded, without header or padding.
func NewEvent(pdu *protocol.IntercomControlPDU, source string, registry *protocol.Registry) *database.IntercomEvent {
	if registry == nil {
		registry = protocol.DefaultRegistry()
	}

	ev := &database.IntercomEvent{
		ExerciseID:        pdu.Header.ExerciseID,
		SourceAddr:        source,
		Entity:            pdu.EntityID.String(),
		RadioID:           pdu.RadioID,
		SourceEntity:      pdu.SourceEntityID.String(),
		SourceDeviceID:    pdu.SourceDeviceID,
		SourceLineID:      pdu.SourceLineID,
		MasterEntity:      pdu.MasterEntityID.String(),
		ControlType:       pdu.ControlType,
		ChannelType:       pdu.CommunicationsChannelType,
		TransmitPriority:  pdu.TransmitPriority,
		TransmitLineState: pdu.TransmitLineState,
		Command:           pdu.Command,
		Timestamp:         pdu.Header.Timestamp,
		ParametersLength:  pdu.ParametersLength,
		RecordCount:       len(pdu.Records),
		ReceivedAt:        time.Now(),
		Records:           make([]database.ParameterRecord, 0, len(pdu.Records)),
	}

	for i, rec := range pdu.Records {
		stored := database.ParameterRecord{
			Position:     i,
			RecordType:   rec.Type,
			RecordLength: rec.Length,
			Shape:        registry.Name(rec.Type),
			Known:        rec.Known(),
		}
		if rec.Payload != nil {
			stored.Payload = rec.Payload.AppendTo(nil)
		}
		if p, ok := rec.IntercomParameters(); ok {
			field := p.SpecificField
			stored.SpecificField = &field
		}
		ev.Records = append(ev.Records, stored)
	}
	return ev
}

// trackLine follows transmit line state per source line
func (r *Recorder) trackLine(pdu *protocol.IntercomControlPDU) {
	key := lineKey{entity: pdu.SourceEntityID, device: pdu.SourceDeviceID, line: pdu.SourceLineID}
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	line, exists := r.activeLines[key]
	if pdu.TransmitLineState != protocol.LineStateTransmitting {
		if exists {
			r.logger.Debug("Line stopped transmitting",
				logger.String("source_entity", key.entity.String()),
				logger.Int("line", int(key.line)),
				logger.Duration("duration", now.Sub(line.startTime)),
				logger.Int("pdu_count", line.pduCount+1))
			delete(r.activeLines, key)
		}
		return
	}

	if !exists {
		r.activeLines[key] = &activeLine{startTime: now, lastSeen: now, pduCount: 1}
		r.logger.Debug("Line started transmitting",
			logger.String("source_entity", key.entity.String()),
			logger.Int("line", int(key.line)))
		return
	}
	line.lastSeen = now
	line.pduCount++
}

// CleanupStaleLines forgets transmitting lines not heard from within maxAge
func (r *Recorder) CleanupStaleLines(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, line := range r.activeLines {
		if now.Sub(line.lastSeen) > maxAge {
			delete(r.activeLines, key)
			removed++
		}
	}
	return removed
}

// GetActiveLineCount returns the number of lines currently transmitting
func (r *Recorder) GetActiveLineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeLines)
}

// PruneOlderThan deletes stored events older than retention
func (r *Recorder) PruneOlderThan(retention time.Duration) (int64, error) {
	if r.repo == nil || retention <= 0 {
		return 0, nil
	}
	return r.repo.DeleteOlderThan(time.Now().Add(-retention))
}

// RunMaintenance prunes stale lines and expired events every interval until ctx is done
func (r *Recorder) RunMaintenance(ctx context.Context, interval, retention, lineTimeout time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := r.CleanupStaleLines(lineTimeout); removed > 0 {
				r.logger.Info("Cleaned up stale lines", logger.Int("count", removed))
			}
			deleted, err := r.PruneOlderThan(retention)
			if err != nil {
				r.logger.Error("Failed to prune events", logger.Error(err))
				continue
			}
			if deleted > 0 {
				r.logger.Info("Pruned expired events", logger.Int64("count", deleted))
			}
		}
	}
}
