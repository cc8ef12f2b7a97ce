package models

import (
	"errors"
	"fmt"
)

type MessageStatus string

const (
	MessageStatusNew        MessageStatus = "new"
	MessageStatusSpam       MessageStatus = "spam"
	MessageStatusProcessing MessageStatus = "processing"
	MessageStatusProcessed  MessageStatus = "processed"
	MessageStatusFailed     MessageStatus = "failed"
)

var ErrInvalidTransition = errors.New("invalid message status transition")

// allowed transitions; terminal states have no entry
var messageTransitions = map[MessageStatus][]MessageStatus{
	MessageStatusNew:        {MessageStatusSpam, MessageStatusProcessing},
	MessageStatusProcessing: {MessageStatusProcessed, MessageStatusFailed},
}

// IsTerminal reports whether no further transition is allowed from s.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSpam || s == MessageStatusProcessed || s == MessageStatusFailed
}

func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageStatusNew, MessageStatusSpam, MessageStatusProcessing, MessageStatusProcessed, MessageStatusFailed:
		return true
	}
	return false
}

func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	for _, n := range messageTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// UnmarshalText accepts only known statuses.
func (s *MessageStatus) UnmarshalText(b []byte) error {
	v := MessageStatus(b)
	if !v.IsValid() {
		return fmt.Errorf("invalid message status %q", string(b))
	}
	*s = v
	return nil
}

// ClassificationKind is the verdict of the message classifier.
type ClassificationKind string

const (
	ClassificationFieldReport ClassificationKind = "field_report"
	ClassificationNonReport   ClassificationKind = "non_report"
)
