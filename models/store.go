package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/utils"
	"gorm.io/gorm"
)

// Store is the MySQL-backed persistence used by the message workflow.
type Store struct {
	DB           *gorm.DB
	Serials      *SerialAllocator
	Dictionaries *DictionaryCache
}

func NewStore(db *gorm.DB, serialTracking bool, lockTimeout, dictionaryTTL time.Duration) *Store {
	return &Store{
		DB:           db,
		Serials:      &SerialAllocator{DB: db, Enabled: serialTracking, LockTimeout: lockTimeout},
		Dictionaries: NewDictionaryCache(db, dictionaryTTL),
	}
}

func (s *Store) CreateMessage(ctx context.Context, msg *ChatMessage) error {
	msg.Status = MessageStatusNew
	msg.StatusText = nil
	if err := s.Serials.CreateWithSerial(ctx, msg); err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id uint) (*ChatMessage, error) {
	var msg ChatMessage
	if err := s.DB.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// FindMessage looks a message up by its chat coordinates.
func (s *Store) FindMessage(ctx context.Context, chatID, messageID int64) (*ChatMessage, error) {
	var msg ChatMessage
	err := s.DB.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (s *Store) TransitionStatus(ctx context.Context, id uint, from, to MessageStatus, text *string) error {
	return TransitionMessageStatus(s.DB.WithContext(ctx), id, from, to, text)
}

// TransitionMessageStatus moves a message from one status to the next as a
// compare-and-set. It fails with ErrInvalidTransition when the edge is not allowed
// or the stored status is no longer from.
func TransitionMessageStatus(db *gorm.DB, id uint, from, to MessageStatus, text *string) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	res := db.Model(&ChatMessage{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "status_text": text})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: message %d is not %s", ErrInvalidTransition, id, from)
	}
	return nil
}

func (s *Store) LoadDictionaries(ctx context.Context) (*DictionarySnapshot, error) {
	return s.Dictionaries.Get(ctx)
}

// SaveReports inserts all entries of one message atomically.
func (s *Store) SaveReports(ctx context.Context, reports []*Report) error {
	if len(reports) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("ChatMessage", "Department", "Operation", "Crop").CreateInBatches(reports, 100).Error
	})
}

// ReportsOn returns every entry of a reporting date in insertion order.
func (s *Store) ReportsOn(ctx context.Context, date time.Time) ([]*Report, error) {
	var reports []*Report
	day := date.Format("2006-01-02")
	err := s.DB.WithContext(ctx).
		Where("worked_on = ?", day).
		Order("id").
		Find(&reports).Error
	return reports, err
}
