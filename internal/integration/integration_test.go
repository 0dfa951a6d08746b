//go:build integration
// +build integration

package integration

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/dbehnke/dis-nexus/internal/testhelpers"
	"github.com/dbehnke/dis-nexus/pkg/config"
	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

// TestIntercomControlPersisted sends a PDU through the full pipeline and
// reads it back from the database
func TestIntercomControlPersisted(t *testing.T) {
	suite := testhelpers.NewIntegrationSuite(t)
	defer suite.Cleanup()

	p := suite.StartPipeline(config.ListenerConfig{})
	entity := suite.CreateMockEntity(protocol.EntityID{Site: 1, Application: 2, Entity: 3}, 1)
	if err := entity.Connect(p.Addr); err != nil {
		t.Fatalf("Failed to connect entity: %v", err)
	}

	err := entity.SendIntercomControl(protocol.LineStateTransmitting,
		protocol.NewIntercomParametersRecord(0xDEADBEEF),
		protocol.NewRecord(protocol.RecordTypeGroupAssignment, protocol.GroupAssignment{
			GroupBitField: 0x1,
			Entity:        protocol.EntityID{Site: 4, Application: 5, Entity: 6},
		}),
		protocol.NewRecord(0x0777, protocol.RawPayload{0xCA, 0xFE, 0xBA, 0xBE}),
	)
	if err != nil {
		t.Fatalf("Failed to send PDU: %v", err)
	}

	suite.AssertEventually(func() bool {
		n, _ := p.Repo.Count()
		return n == 1
	}, 2*time.Second, "event stored")

	events, err := p.Repo.GetBySourceEntity("1:2:3", 10)
	if err != nil {
		t.Fatalf("GetBySourceEntity failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.ParametersLength != 3 {
		t.Errorf("Expected parameters length of 3 records, got %d", ev.ParametersLength)
	}
	if ev.Entity != "1:2:3" || ev.RadioID != 1 {
		t.Errorf("Unexpected intercom owner %q radio %d", ev.Entity, ev.RadioID)
	}
	if len(ev.Records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(ev.Records))
	}
	if ev.Records[0].SpecificField == nil || *ev.Records[0].SpecificField != 0xDEADBEEF {
		t.Errorf("Unexpected specific field %v", ev.Records[0].SpecificField)
	}
	if ev.Records[1].Shape != "group_assignment" {
		t.Errorf("Expected group_assignment shape, got %q", ev.Records[1].Shape)
	}
	if ev.Records[2].Known || !bytes.Equal(ev.Records[2].Payload, []byte{0xCA, 0xFE, 0xBA, 0xBE}) {
		t.Errorf("Unknown record not preserved: %+v", ev.Records[2])
	}

	if n := p.Collector.GetUnknownRecords(); n != 1 {
		t.Errorf("Expected 1 unknown record counted, got %d", n)
	}
	if n := p.Recorder.GetActiveLineCount(); n != 1 {
		t.Errorf("Expected 1 active line, got %d", n)
	}
}

// TestIntercomSignalCounted sends audio through the pipeline and checks it is
// counted without being stored
func TestIntercomSignalCounted(t *testing.T) {
	suite := testhelpers.NewIntegrationSuite(t)
	defer suite.Cleanup()

	p := suite.StartPipeline(config.ListenerConfig{})
	entity := suite.CreateMockEntity(protocol.EntityID{Site: 1, Application: 2, Entity: 3}, 1)
	if err := entity.Connect(p.Addr); err != nil {
		t.Fatalf("Failed to connect entity: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := entity.SendIntercomSignal(bytes.Repeat([]byte{0xFF}, 160)); err != nil {
			t.Fatalf("Failed to send signal: %v", err)
		}
	}

	suite.AssertEventually(func() bool {
		return p.Collector.GetIntercomSignalDecoded() == 3
	}, 2*time.Second, "signal PDUs counted")

	if n := p.Collector.GetIntercomSignalBytes(); n != 480 {
		t.Errorf("Expected 480 signal bytes, got %d", n)
	}
	if n, _ := p.Repo.Count(); n != 0 {
		t.Errorf("Expected no stored events, got %d", n)
	}
}

// TestMalformedPDUsCounted checks that decode failures are counted and not stored
func TestMalformedPDUsCounted(t *testing.T) {
	suite := testhelpers.NewIntegrationSuite(t)
	defer suite.Cleanup()

	p := suite.StartPipeline(config.ListenerConfig{})
	entity := suite.CreateMockEntity(protocol.EntityID{Site: 1, Application: 1, Entity: 1}, 1)
	if err := entity.Connect(p.Addr); err != nil {
		t.Fatalf("Failed to connect entity: %v", err)
	}

	good, err := entity.IntercomControl(protocol.LineStateNotTransmitting,
		protocol.NewIntercomParametersRecord(1)).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Record length not a multiple of 8
	unpadded := append([]byte(nil), good...)
	unpadded[protocol.ICOffsetRecords+3] = 0x0C

	// Header cut short
	truncated := good[:8]

	for _, data := range [][]byte{unpadded, truncated} {
		if err := entity.SendRaw(data); err != nil {
			t.Fatalf("SendRaw failed: %v", err)
		}
	}

	suite.AssertEventually(func() bool {
		errs := p.Collector.GetDecodeErrors()
		return errs["invalid_length"] == 1 && errs["truncated"] == 1
	}, 2*time.Second, "decode errors counted")

	if n, _ := p.Repo.Count(); n != 0 {
		t.Errorf("Expected no stored events, got %d", n)
	}
}

// TestMultipleEntities sends from several entities concurrently
func TestMultipleEntities(t *testing.T) {
	suite := testhelpers.NewIntegrationSuite(t)
	defer suite.Cleanup()

	p := suite.StartPipeline(config.ListenerConfig{ExerciseID: 2})

	const perEntity = 5
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		entity := suite.CreateMockEntity(protocol.EntityID{Site: 1, Application: 1, Entity: uint16(i)}, 2)
		if err := entity.Connect(p.Addr); err != nil {
			t.Fatalf("Failed to connect entity %d: %v", i, err)
		}
		wg.Add(1)
		go func(e *testhelpers.MockEntity) {
			defer wg.Done()
			for j := 0; j < perEntity; j++ {
				if err := e.SendIntercomControl(protocol.LineStateTransmitting, protocol.NewIntercomParametersRecord(uint32(j))); err != nil {
					t.Errorf("Send failed: %v", err)
				}
				time.Sleep(5 * time.Millisecond)
			}
		}(entity)
	}

	// Different exercise, must be filtered
	stranger := suite.CreateMockEntity(protocol.EntityID{Site: 9, Application: 9, Entity: 9}, 3)
	if err := stranger.Connect(p.Addr); err != nil {
		t.Fatalf("Failed to connect stranger: %v", err)
	}
	if err := stranger.SendIntercomControl(protocol.LineStateTransmitting); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	wg.Wait()

	suite.AssertEventually(func() bool {
		n, _ := p.Repo.Count()
		return n == 3*perEntity
	}, 3*time.Second, "all events stored")

	suite.AssertEventually(func() bool {
		return p.Collector.GetPDUsFiltered() == 1
	}, time.Second, "stranger filtered")

	if n := p.Recorder.GetActiveLineCount(); n != 3 {
		t.Errorf("Expected 3 active lines, got %d", n)
	}
}

// TestRetentionPrune checks that the recorder prunes stored events
func TestRetentionPrune(t *testing.T) {
	suite := testhelpers.NewIntegrationSuite(t)
	defer suite.Cleanup()

	p := suite.StartPipeline(config.ListenerConfig{})
	entity := suite.CreateMockEntity(protocol.EntityID{Site: 1, Application: 1, Entity: 1}, 1)
	if err := entity.Connect(p.Addr); err != nil {
		t.Fatalf("Failed to connect entity: %v", err)
	}
	if err := entity.SendIntercomControl(protocol.LineStateNotTransmitting); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	suite.AssertEventually(func() bool {
		n, _ := p.Repo.Count()
		return n == 1
	}, 2*time.Second, "event stored")

	time.Sleep(20 * time.Millisecond)
	deleted, err := p.Recorder.PruneOlderThan(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 pruned event, got %d", deleted)
	}
}
