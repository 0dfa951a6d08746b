package metrics

import (
	"sort"
	"sync"

	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

// Collector collects DIS-Nexus metrics
type Collector struct {
	mu sync.RWMutex

	// PDU metrics
	pdusReceived  map[uint8]uint64
	bytesReceived uint64
	pdusFiltered  uint64
	pdusSent      uint64
	bytesSent     uint64

	// Intercom metrics
	intercomDecoded uint64
	recordsDecoded  map[uint16]uint64
	unknownRecords  uint64
	signalDecoded   uint64
	signalBytes     uint64

	// Error metrics
	decodeErrors map[string]uint64
}

// TypeCount pairs a type code with a counter value
type TypeCount struct {
	Type  uint16
	Count uint64
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		pdusReceived:   make(map[uint8]uint64),
		recordsDecoded: make(map[uint16]uint64),
		decodeErrors:   make(map[string]uint64),
	}
}

// PDUReceived records a received datagram carrying the given PDU type
func (c *Collector) PDUReceived(pduType uint8, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pdusReceived[pduType]++
	c.bytesReceived += uint64(bytes)
}

// PDUSent records a transmitted PDU
func (c *Collector) PDUSent(bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pdusSent++
	c.bytesSent += uint64(bytes)
}

// PDUFiltered records a PDU dropped by the exercise filter
func (c *Collector) PDUFiltered() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pdusFiltered++
}

// IntercomDecoded records a fully decoded Intercom Control PDU and its records
func (c *Collector) IntercomDecoded(records []protocol.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.intercomDecoded++
	for _, rec := range records {
		c.recordsDecoded[rec.Type]++
		if !rec.Known() {
			c.unknownRecords++
		}
	}
}

// IntercomSignalDecoded records a decoded Intercom Signal PDU carrying dataBytes of audio or data
func (c *Collector) IntercomSignalDecoded(dataBytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.signalDecoded++
	c.signalBytes += uint64(dataBytes)
}

// DecodeError records a failed decode, bucketed by protocol.ErrorKind
func (c *Collector) DecodeError(err error) {
	kind := protocol.ErrorKind(err)
	if kind == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.decodeErrors[kind]++
}

// GetPDUsReceived returns the total PDUs received across all types
func (c *Collector) GetPDUsReceived() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total uint64
	for _, n := range c.pdusReceived {
		total += n
	}
	return total
}

// GetPDUsReceivedByType returns per-type receive counts ordered by type
func (c *Collector) GetPDUsReceivedByType() []TypeCount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]TypeCount, 0, len(c.pdusReceived))
	for t, n := range c.pdusReceived {
		out = append(out, TypeCount{Type: uint16(t), Count: n})
	}
	sortTypeCounts(out)
	return out
}

// GetBytesReceived returns the total bytes received
func (c *Collector) GetBytesReceived() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytesReceived
}

// GetPDUsSent returns the number of PDUs sent
func (c *Collector) GetPDUsSent() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pdusSent
}

// GetBytesSent returns the total bytes sent
func (c *Collector) GetBytesSent() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytesSent
}

// GetPDUsFiltered returns the number of PDUs dropped by the exercise filter
func (c *Collector) GetPDUsFiltered() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pdusFiltered
}

// GetIntercomDecoded returns the number of decoded Intercom Control PDUs
func (c *Collector) GetIntercomDecoded() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.intercomDecoded
}

// GetIntercomSignalDecoded returns the number of decoded Intercom Signal PDUs
func (c *Collector) GetIntercomSignalDecoded() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signalDecoded
}

// GetIntercomSignalBytes returns the signal data bytes carried by decoded Intercom Signal PDUs
func (c *Collector) GetIntercomSignalBytes() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signalBytes
}

// GetRecordsDecoded returns the total number of decoded records
func (c *Collector) GetRecordsDecoded() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total uint64
	for _, n := range c.recordsDecoded {
		total += n
	}
	return total
}

// GetRecordsDecodedByType returns per-record_type counts ordered by type
func (c *Collector) GetRecordsDecodedByType() []TypeCount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]TypeCount, 0, len(c.recordsDecoded))
	for t, n := range c.recordsDecoded {
		out = append(out, TypeCount{Type: t, Count: n})
	}
	sortTypeCounts(out)
	return out
}

// GetUnknownRecords returns how many decoded records had no registered shape
func (c *Collector) GetUnknownRecords() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unknownRecords
}

// GetDecodeErrors returns a copy of the decode error counts keyed by kind
func (c *Collector) GetDecodeErrors() map[string]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]uint64, len(c.decodeErrors))
	for k, n := range c.decodeErrors {
		out[k] = n
	}
	return out
}

func sortTypeCounts(counts []TypeCount) {
	sort.Slice(counts, func(i, j int) bool { return counts[i].Type < counts[j].Type })
}
