package database

import (
	"time"

	"gorm.io/gorm"
)

// IntercomEvent is one decoded Intercom Control PDU
type IntercomEvent struct {
	ID                uint              `gorm:"primarykey" json:"id"`
	ExerciseID        uint8             `gorm:"index;not null" json:"exercise_id"`
	SourceAddr        string            `gorm:"size:64" json:"source_addr"`
	Entity            string            `gorm:"size:32" json:"entity"` // Entity owning the intercom, site:application:entity
	RadioID           uint16            `json:"radio_id"`
	SourceEntity      string            `gorm:"index;size:32;not null" json:"source_entity"` // site:application:entity
	SourceDeviceID    uint8             `json:"source_device_id"`
	SourceLineID      uint8             `json:"source_line_id"`
	MasterEntity      string            `gorm:"size:32" json:"master_entity"`
	ControlType       uint8             `gorm:"not null" json:"control_type"`
	ChannelType       uint8             `json:"channel_type"`
	TransmitPriority  uint8             `json:"transmit_priority"`
	TransmitLineState uint8             `json:"transmit_line_state"`
	Command           uint8             `json:"command"`
	Timestamp         uint32            `json:"timestamp"` // DIS header timestamp
	ParametersLength  uint32            `json:"parameters_length"` // Declared record count
	RecordCount       int               `gorm:"default:0" json:"record_count"`
	ReceivedAt        time.Time         `gorm:"index;not null" json:"received_at"`
	Records           []ParameterRecord `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"records,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// TableName specifies the table name for IntercomEvent
func (IntercomEvent) TableName() string {
	return "intercom_events"
}

// BeforeCreate hook to ensure ReceivedAt and RecordCount are set
func (e *IntercomEvent) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	if e.RecordCount == 0 {
		e.RecordCount = len(e.Records)
	}
	return nil
}

// ParameterRecord is one intercom communications parameters record of an event
type ParameterRecord struct {
	ID            uint    `gorm:"primarykey" json:"id"`
	EventID       uint    `gorm:"index;not null" json:"event_id"`
	Position      int     `gorm:"not null" json:"position"` // Wire order within the PDU
	RecordType    uint16  `gorm:"index;not null" json:"record_type"`
	RecordLength  uint16  `gorm:"not null" json:"record_length"`
	Shape         string  `gorm:"size:32" json:"shape"` // Registered shape name or "unknown"
	Known         bool    `json:"known"`
	SpecificField *uint32 `json:"specific_field,omitempty"` // Set for the 32-bit intercom shape
	Payload       []byte  `json:"payload"`                  // Payload bytes as encoded, without header or padding
}

// TableName specifies the table name for ParameterRecord
func (ParameterRecord) TableName() string {
	return "parameter_records"
}

// RecordTypeCount is an aggregate row for CountByRecordType
type RecordTypeCount struct {
	RecordType uint16 `json:"record_type"`
	Shape      string `json:"shape"`
	Count      int64  `json:"count"`
}
