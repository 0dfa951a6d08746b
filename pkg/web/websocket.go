package web

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/database"
	"github.com/dbehnke/dis-nexus/pkg/logger"
	"github.com/dbehnke/dis-nexus/pkg/protocol"
	"github.com/gorilla/websocket"
)

// Event represents a WebSocket event to be broadcast to clients
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Marshal converts an event to JSON bytes
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	conn     *websocket.Conn
	messages chan []byte
}

// WebSocketHub manages WebSocket client connections and broadcasts
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(log *logger.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// Run starts the WebSocket hub event loop
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered",
				logger.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.messages)
			}
			h.mu.Unlock()
			h.logger.Debug("WebSocket client unregistered",
				logger.String("client_id", client.ID))

		case event := <-h.broadcast:
			// Marshal event to JSON
			data, err := event.Marshal()
			if err != nil {
				h.logger.Error("Failed to marshal event",
					logger.Error(err))
				continue
			}

			// Broadcast to all clients
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.messages <- data:
				default:
					// Client buffer full, skip
					h.logger.Warn("Client message buffer full, skipping",
						logger.String("client_id", client.ID))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			// Close all client connections
			h.mu.Lock()
			for client := range h.clients {
				close(client.messages)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends an event to all connected clients
func (h *WebSocketHub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			logger.String("event_type", event.Type))
	}
}

// Handler returns an HTTP handler for WebSocket connections
func (h *WebSocketHub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		client := &Client{ID: r.RemoteAddr, conn: conn, messages: make(chan []byte, 256)}
		h.register <- client

		// Reader goroutine: drain read to detect close
		go func() {
			defer func() {
				h.unregister <- client
				_ = client.conn.Close()
			}()
			client.conn.SetReadLimit(1024)
			for {
				if _, _, err := client.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		// Writer loop
		go func() {
			for msg := range client.messages {
				_ = client.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastIntercomControl broadcasts a decoded Intercom Control PDU
func (h *WebSocketHub) BroadcastIntercomControl(ev *database.IntercomEvent) {
	records := make([]map[string]interface{}, 0, len(ev.Records))
	for _, rec := range ev.Records {
		r := map[string]interface{}{
			"position":      rec.Position,
			"record_type":   rec.RecordType,
			"record_length": rec.RecordLength,
			"shape":         rec.Shape,
			"known":         rec.Known,
			"payload":       hex.EncodeToString(rec.Payload),
		}
		if rec.SpecificField != nil {
			r["specific_field"] = *rec.SpecificField
		}
		records = append(records, r)
	}

	h.Broadcast(Event{
		Type:      "intercom_control",
		Timestamp: ev.ReceivedAt,
		Data: map[string]interface{}{
			"id":                  ev.ID,
			"exercise_id":         ev.ExerciseID,
			"source_addr":         ev.SourceAddr,
			"entity":              ev.Entity,
			"radio_id":            ev.RadioID,
			"source_entity":       ev.SourceEntity,
			"control_type":        ev.ControlType,
			"transmit_line_state": ev.TransmitLineState,
			"command":             ev.Command,
			"parameters_length":   ev.ParametersLength,
			"records":             records,
		},
	})
}

// BroadcastIntercomSignal broadcasts the metadata of an Intercom Signal PDU.
// The signal data itself is not forwarded.
func (h *WebSocketHub) BroadcastIntercomSignal(pdu *protocol.IntercomSignalPDU, source string) {
	h.Broadcast(Event{
		Type:      "intercom_signal",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"source":         source,
			"entity":         pdu.EntityID.String(),
			"radio_id":       pdu.RadioID,
			"device_id":      pdu.DeviceID,
			"encoding_class": pdu.EncodingClass(),
			"encoding_type":  pdu.EncodingType(),
			"sample_rate":    pdu.SampleRate,
			"data_bits":      pdu.DataLength,
			"samples":        pdu.Samples,
		},
	})
}

// BroadcastDecodeError broadcasts a PDU that failed to decode
func (h *WebSocketHub) BroadcastDecodeError(source string, kind string, err error) {
	h.Broadcast(Event{
		Type:      "decode_error",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"source": source,
			"kind":   kind,
			"error":  err.Error(),
		},
	})
}
