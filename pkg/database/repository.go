package database

import (
	"time"

	"gorm.io/gorm"
)

// EventRepository handles intercom event database operations
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create stores an event together with its parameter records
func (r *EventRepository) Create(ev *IntercomEvent) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(ev).Error
	})
}

// GetByID retrieves one event with its records in wire order
func (r *EventRepository) GetByID(id uint) (*IntercomEvent, error) {
	var ev IntercomEvent
	err := r.db.Preload("Records", orderByPosition).First(&ev, id).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// GetRecent retrieves the most recent N events with their records
func (r *EventRepository) GetRecent(limit int) ([]IntercomEvent, error) {
	var events []IntercomEvent
	err := r.db.Preload("Records", orderByPosition).
		Order("received_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// GetBySourceEntity retrieves events sent by one entity (site:application:entity)
func (r *EventRepository) GetBySourceEntity(entity string, limit int) ([]IntercomEvent, error) {
	var events []IntercomEvent
	err := r.db.Preload("Records", orderByPosition).
		Where("source_entity = ?", entity).
		Order("received_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// GetByTimeRange retrieves events received within a time range
func (r *EventRepository) GetByTimeRange(start, end time.Time, limit int) ([]IntercomEvent, error) {
	var events []IntercomEvent
	err := r.db.Preload("Records", orderByPosition).
		Where("received_at BETWEEN ? AND ?", start, end).
		Order("received_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Count returns the number of stored events
func (r *EventRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&IntercomEvent{}).Count(&total).Error
	return total, err
}

// CountByRecordType aggregates stored records by record_type
func (r *EventRepository) CountByRecordType() ([]RecordTypeCount, error) {
	var counts []RecordTypeCount
	err := r.db.Model(&ParameterRecord{}).
		Select("record_type, MAX(shape) AS shape, COUNT(*) AS count").
		Group("record_type").
		Order("record_type ASC").
		Scan(&counts).Error
	return counts, err
}

// DeleteOlderThan deletes events (and their records) received before the given time
func (r *EventRepository) DeleteOlderThan(before time.Time) (int64, error) {
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&IntercomEvent{}).Select("id").Where("received_at < ?", before)
		if err := tx.Where("event_id IN (?)", stale).Delete(&ParameterRecord{}).Error; err != nil {
			return err
		}
		result := tx.Where("received_at < ?", before).Delete(&IntercomEvent{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
