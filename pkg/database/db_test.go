package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/logger"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "test.db")}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func u32(v uint32) *uint32 { return &v }

func sampleEvent(entity string, receivedAt time.Time) *IntercomEvent {
	return &IntercomEvent{
		ExerciseID:        1,
		SourceAddr:        "127.0.0.1:3000",
		Entity:            "9:9:9",
		RadioID:           4,
		SourceEntity:      entity,
		ControlType:       1,
		TransmitLineState: 2,
		ReceivedAt:        receivedAt,
		Records: []ParameterRecord{
			{Position: 0, RecordType: 1, RecordLength: 8, Shape: "intercom_parameters", Known: true,
				SpecificField: u32(0xDEADBEEF), Payload: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
			{Position: 1, RecordType: 0x0777, RecordLength: 16, Shape: "unknown",
				Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}},
		},
	}
}

func TestNewDB(t *testing.T) {
	db := newTestDB(t)
	if db.db == nil {
		t.Error("Expected non-nil database connection")
	}
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	path := filepath.Join(t.TempDir(), "nested", "dir", "events.db")

	db, err := NewDB(Config{Path: path}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected database file to exist: %v", err)
	}
}

func TestNewDB_ConnectionPragmas(t *testing.T) {
	db := newTestDB(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			got, err := db.Pragma(tt.pragma)
			if err != nil {
				t.Fatalf("Pragma(%q) error: %v", tt.pragma, err)
			}
			if got != tt.want {
				t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	got := dsn(Config{Path: "events.db", BusyTimeout: 250 * time.Millisecond})
	want := "events.db?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(250)&_pragma=foreign_keys(1)"
	if got != want {
		t.Errorf("dsn() = %q, want %q", got, want)
	}
}

func TestIntercomEvent_BeforeCreate(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db.GetDB())

	ev := sampleEvent("1:2:3", time.Time{})
	if err := repo.Create(ev); err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	if ev.ID == 0 {
		t.Error("Expected non-zero ID after creation")
	}
	if ev.ReceivedAt.IsZero() || ev.CreatedAt.IsZero() {
		t.Error("Expected timestamps to be set by hook")
	}
	if ev.RecordCount != 2 {
		t.Errorf("Expected RecordCount 2, got %d", ev.RecordCount)
	}
	for _, rec := range ev.Records {
		if rec.EventID != ev.ID {
			t.Errorf("Record not linked to event: %d != %d", rec.EventID, ev.ID)
		}
	}
}

func TestEventRepository_GetByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db.GetDB())

	ev := sampleEvent("1:2:3", time.Now())
	if err := repo.Create(ev); err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	got, err := repo.GetByID(ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(got.Records))
	}
	if got.Records[0].Position != 0 || got.Records[1].Position != 1 {
		t.Errorf("Records not in wire order: %+v", got.Records)
	}
	if got.Records[0].SpecificField == nil || *got.Records[0].SpecificField != 0xDEADBEEF {
		t.Errorf("Unexpected specific field: %v", got.Records[0].SpecificField)
	}
	if got.Records[1].SpecificField != nil {
		t.Error("Expected nil specific field for unknown record")
	}
	if len(got.Records[1].Payload) != 12 {
		t.Errorf("Expected 12 payload bytes, got %d", len(got.Records[1].Payload))
	}
}

func TestEventRepository_GetRecent(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db.GetDB())

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		if err := repo.Create(sampleEvent("1:2:3", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Failed to create event %d: %v", i, err)
		}
	}

	events, err := repo.GetRecent(3)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].ReceivedAt.After(events[i-1].ReceivedAt) {
			t.Error("Expected events newest first")
		}
	}
	if len(events[0].Records) != 2 {
		t.Errorf("Expected records preloaded, got %d", len(events[0].Records))
	}
}

func TestEventRepository_GetBySourceEntity(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db.GetDB())

	now := time.Now()
	for _, entity := range []string{"1:2:3", "1:2:3", "4:5:6"} {
		if err := repo.Create(sampleEvent(entity, now)); err != nil {
			t.Fatalf("Failed to create event: %v", err)
		}
	}

	events, err := repo.GetBySourceEntity("1:2:3", 10)
	if err != nil {
		t.Fatalf("GetBySourceEntity failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.SourceEntity != "1:2:3" {
			t.Errorf("Unexpected entity %q", ev.SourceEntity)
		}
	}
}

func TestEventRepository_GetByTimeRange(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db.GetDB())

	now := time.Now()
	for _, age := range []time.Duration{0, time.Minute, 2 * time.Hour} {
		if err := repo.Create(sampleEvent("1:2:3", now.Add(-age))); err != nil {
			t.Fatalf("Failed to create event: %v", err)
		}
	}

	events, err := repo.GetByTimeRange(now.Add(-time.Hour), now.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events in range, got %d", len(events))
	}
	if !events[0].ReceivedAt.After(events[1].ReceivedAt) {
		t.Error("Expected newest event first")
	}
}

func TestEventRepository_CountByRecordType(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db.GetDB())

	for i := 0; i < 3; i++ {
		if err := repo.Create(sampleEvent("1:2:3", time.Now())); err != nil {
			t.Fatalf("Failed to create event: %v", err)
		}
	}

	counts, err := repo.CountByRecordType()
	if err != nil {
		t.Fatalf("CountByRecordType failed: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("Expected 2 record types, got %d", len(counts))
	}
	if counts[0].RecordType != 1 || counts[0].Count != 3 || counts[0].Shape != "intercom_parameters" {
		t.Errorf("Unexpected first count: %+v", counts[0])
	}
	if counts[1].RecordType != 0x0777 || counts[1].Count != 3 {
		t.Errorf("Unexpected second count: %+v", counts[1])
	}
}

func TestEventRepository_DeleteOlderThan(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db.GetDB())

	now := time.Now()
	if err := repo.Create(sampleEvent("1:2:3", now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("Failed to create old event: %v", err)
	}
	if err := repo.Create(sampleEvent("1:2:3", now)); err != nil {
		t.Fatalf("Failed to create new event: %v", err)
	}

	deleted, err := repo.DeleteOlderThan(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted event, got %d", deleted)
	}

	total, err := repo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected 1 remaining event, got %d", total)
	}

	var orphans int64
	db.GetDB().Model(&ParameterRecord{}).Where("event_id NOT IN (?)", db.GetDB().Model(&IntercomEvent{}).Select("id")).Count(&orphans)
	if orphans != 0 {
		t.Errorf("Expected no orphaned records, got %d", orphans)
	}
}
