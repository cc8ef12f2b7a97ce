package models

import (
	"time"
)

// ChatMessage is one inbound chat message and its processing status.
type ChatMessage struct {
	ID          uint          `gorm:"primary_key" json:"id"`
	SerialNum   int           `gorm:"not null;default:0;index:idx_chat_messages_user_serial,priority:2" json:"serial_num"`
	Username    string        `gorm:"size:255" json:"username"`
	UserID      int64         `gorm:"not null;index:idx_chat_messages_user_serial,priority:1" json:"user_id"`
	ChatID      int64         `gorm:"not null;index:uniq_chat_message,unique,priority:1" json:"chat_id"`
	MessageID   int64         `gorm:"not null;index:uniq_chat_message,unique,priority:2" json:"message_id"`
	MessageText string        `gorm:"type:text;not null" json:"message_text"`
	CreatedAt   time.Time     `gorm:"not null;index" json:"created_at"`
	Status      MessageStatus `gorm:"size:20;not null;default:new;index" json:"status"`
	StatusText  *string       `gorm:"type:text" json:"status_text"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewChatMessageInput is the ingestion payload. Any client-supplied status is ignored.
type NewChatMessageInput struct {
	Username    string    `json:"username"`
	UserID      int64     `json:"user_id" binding:"required"`
	ChatID      int64     `json:"chat_id" binding:"required"`
	MessageID   int64     `json:"message_id" binding:"required"`
	MessageText string    `json:"message_text" binding:"required"`
	CreatedAt   time.Time `json:"created_at" binding:"required"`
	Status      string    `json:"status,omitempty"`
}

// NewChatMessage builds a message in status new with created_at moved into loc.
func NewChatMessage(input NewChatMessageInput, loc *time.Location) *ChatMessage {
	createdAt := input.CreatedAt
	if loc != nil {
		createdAt = createdAt.In(loc)
	}
	return &ChatMessage{
		Username:    input.Username,
		UserID:      input.UserID,
		ChatID:      input.ChatID,
		MessageID:   input.MessageID,
		MessageText: input.MessageText,
		CreatedAt:   createdAt,
		Status:      MessageStatusNew,
	}
}
