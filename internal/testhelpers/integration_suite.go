package testhelpers

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/config"
	"github.com/dbehnke/dis-nexus/pkg/database"
	"github.com/dbehnke/dis-nexus/pkg/logger"
	"github.com/dbehnke/dis-nexus/pkg/metrics"
	"github.com/dbehnke/dis-nexus/pkg/monitor"
	"github.com/dbehnke/dis-nexus/pkg/network"
	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

// IntegrationSuite provides infrastructure for integration tests
type IntegrationSuite struct {
	T            *testing.T
	Logger       *logger.Logger
	Ctx          context.Context
	Cancel       context.CancelFunc
	MockEntities []*MockEntity
	Pipeline     *Pipeline
}

// Pipeline is a running listener wired to a recorder and a SQLite store
type Pipeline struct {
	Addr      string
	Listener  *network.Listener
	Recorder  *monitor.Recorder
	Repo      *database.EventRepository
	Collector *metrics.Collector
	db        *database.DB
	cancel    context.CancelFunc
	done      chan error
}

// NewIntegrationSuite creates a new integration test suite
func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	log := logger.New(logger.Config{
		Level:  "debug",
		Format: "text",
	})

	return &IntegrationSuite{
		T:            t,
		Logger:       log,
		Ctx:          ctx,
		Cancel:       cancel,
		MockEntities: make([]*MockEntity, 0),
	}
}

// CreateMockEntity creates a new mock entity and adds it to the suite
func (s *IntegrationSuite) CreateMockEntity(id protocol.EntityID, exerciseID uint8) *MockEntity {
	entity := NewMockEntity(id, exerciseID)
	s.MockEntities = append(s.MockEntities, entity)
	return entity
}

// StartPipeline starts a listener on a loopback port feeding a recorder
// backed by a fresh database in the test's temp dir.
func (s *IntegrationSuite) StartPipeline(cfg config.ListenerConfig) *Pipeline {
	s.T.Helper()

	db, err := database.NewDB(database.Config{Path: filepath.Join(s.T.TempDir(), "integration.db")}, s.Logger)
	if err != nil {
		s.T.Fatalf("Failed to create database: %v", err)
	}

	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	collector := metrics.NewCollector()
	repo := database.NewEventRepository(db.GetDB())
	recorder := monitor.NewRecorder(repo, nil, collector, s.Logger)
	listener := network.NewListener(cfg, s.Logger).WithCollector(collector)
	listener.SetHandlers(recorder.HandleIntercomControl, recorder.HandleDecodeError)
	listener.SetSignalHandler(recorder.HandleIntercomSignal)

	ctx, cancel := context.WithCancel(s.Ctx)
	p := &Pipeline{
		Listener:  listener,
		Recorder:  recorder,
		Repo:      repo,
		Collector: collector,
		db:        db,
		cancel:    cancel,
		done:      make(chan error, 1),
	}
	go func() { p.done <- listener.Start(ctx) }()

	if err := listener.WaitStarted(ctx); err != nil {
		s.T.Fatalf("Listener failed to start: %v", err)
	}
	addr, err := listener.Addr()
	if err != nil {
		s.T.Fatalf("Listener has no address: %v", err)
	}
	p.Addr = addr.String()

	s.Pipeline = p
	return p
}

// StopPipeline stops the listener and closes the database
func (s *IntegrationSuite) StopPipeline() {
	p := s.Pipeline
	if p == nil {
		return
	}
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		s.T.Log("Listener did not stop in time")
	}
	_ = p.db.Close()
	s.Pipeline = nil
}

// GetFreePort gets a free UDP port for testing
func (s *IntegrationSuite) GetFreePort() int {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		s.T.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	return conn.LocalAddr().(*net.UDPAddr).Port
}

// Cleanup cleans up resources
func (s *IntegrationSuite) Cleanup() {
	// Close all mock entities
	for _, entity := range s.MockEntities {
		_ = entity.Close()
	}

	s.StopPipeline()

	// Cancel context
	s.Cancel()
}

// WaitFor waits for a condition to be true
func (s *IntegrationSuite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.T.Logf("WaitFor timeout: %s", message)
	return false
}

// AssertEventually asserts that a condition becomes true within timeout
func (s *IntegrationSuite) AssertEventually(condition func() bool, timeout time.Duration, message string) {
	if !s.WaitFor(condition, timeout, message) {
		s.T.Errorf("Assertion failed: %s", message)
	}
}

// CreateDefaultConfig creates a default test configuration
func CreateDefaultConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Name:        "Test Server",
			Description: "Integration Test Server",
		},
		Listener: config.ListenerConfig{
			Enabled:        true,
			Host:           "127.0.0.1",
			ReadBufferSize: 8192,
		},
		Database: config.DatabaseConfig{
			Enabled:       true,
			RetentionDays: 1,
		},
		Web: config.WebConfig{
			Enabled: false,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "text",
		},
		Metrics: config.MetricsConfig{
			Enabled: false,
		},
	}
}
