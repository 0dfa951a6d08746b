package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/logger"
	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{
		collector: collector,
	}
}

// ServeHTTP handles HTTP requests for metrics
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var output strings.Builder

	// PDU metrics
	writeHeader(&output, "dis_pdus_received_total", "counter", "Total PDUs received by PDU type")
	for _, tc := range h.collector.GetPDUsReceivedByType() {
		output.WriteString(fmt.Sprintf("dis_pdus_received_total{pdu_type=%q} %d\n",
			protocol.PDUTypeName(uint8(tc.Type)), tc.Count))
	}

	writeHeader(&output, "dis_bytes_received_total", "counter", "Total bytes received")
	output.WriteString(fmt.Sprintf("dis_bytes_received_total %d\n", h.collector.GetBytesReceived()))

	writeHeader(&output, "dis_pdus_filtered_total", "counter", "PDUs dropped by the exercise filter")
	output.WriteString(fmt.Sprintf("dis_pdus_filtered_total %d\n", h.collector.GetPDUsFiltered()))

	writeHeader(&output, "dis_pdus_sent_total", "counter", "Total PDUs sent")
	output.WriteString(fmt.Sprintf("dis_pdus_sent_total %d\n", h.collector.GetPDUsSent()))

	writeHeader(&output, "dis_bytes_sent_total", "counter", "Total bytes sent")
	output.WriteString(fmt.Sprintf("dis_bytes_sent_total %d\n", h.collector.GetBytesSent()))

	// Intercom metrics
	writeHeader(&output, "dis_intercom_control_decoded_total", "counter", "Intercom Control PDUs decoded")
	output.WriteString(fmt.Sprintf("dis_intercom_control_decoded_total %d\n", h.collector.GetIntercomDecoded()))

	writeHeader(&output, "dis_intercom_signal_decoded_total", "counter", "Intercom Signal PDUs decoded")
	output.WriteString(fmt.Sprintf("dis_intercom_signal_decoded_total %d\n", h.collector.GetIntercomSignalDecoded()))

	writeHeader(&output, "dis_intercom_signal_bytes_total", "counter", "Signal data bytes carried by Intercom Signal PDUs")
	output.WriteString(fmt.Sprintf("dis_intercom_signal_bytes_total %d\n", h.collector.GetIntercomSignalBytes()))

	writeHeader(&output, "dis_records_decoded_total", "counter", "Variable records decoded by record type")
	for _, tc := range h.collector.GetRecordsDecodedByType() {
		output.WriteString(fmt.Sprintf("dis_records_decoded_total{record_type=\"%d\",shape=%q} %d\n",
			tc.Type, protocol.DefaultRegistry().Name(tc.Type), tc.Count))
	}

	writeHeader(&output, "dis_records_unknown_total", "counter", "Variable records preserved as raw payload")
	output.WriteString(fmt.Sprintf("dis_records_unknown_total %d\n", h.collector.GetUnknownRecords()))

	// Error metrics
	writeHeader(&output, "dis_decode_errors_total", "counter", "Decode failures by kind")
	errs := h.collector.GetDecodeErrors()
	kinds := make([]string, 0, len(errs))
	for k := range errs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		output.WriteString(fmt.Sprintf("dis_decode_errors_total{kind=%q} %d\n", k, errs[k]))
	}

	_, _ = w.Write([]byte(output.String()))
}

func writeHeader(b *strings.Builder, name, kind, help string) {
	b.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
	b.WriteString(fmt.Sprintf("# TYPE %s %s\n", name, kind))
}

// PrometheusServer is an HTTP server for Prometheus metrics
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	// Use a listener to get the actual port (useful for testing with port 0)
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{
		Handler: mux,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", s.config.Path))

	// Start server
	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop stops the Prometheus metrics server
func (s *PrometheusServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
}
