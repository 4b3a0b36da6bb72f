package chat

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Message is one entry in a thread's ordered log.
type Message struct {
	ID       string
	SenderID string
	Body     string
	SentAt   time.Time
	Read     bool
}

// Thread is the domain entity corresponding to the `chat_threads` table.
// Invariant: a ride thread's participants are always a subset of the ride's
// rider and bound driver; exactly one driver_group thread exists.
type Thread struct {
	ID        string
	CreatedAt time.Time

	Kind         Kind
	Participants []string // user ids, unique, order irrelevant
	RideID       *string  // set only for Kind == ride

	Messages     []Message
	LastActivity time.Time
}

var (
	ErrNotFound       = errors.New("thread not found")
	ErrNotParticipant = errors.New("sender is not a thread participant")
	ErrBodyRequired   = errors.New("message body is required")
)

// NewThread creates an empty thread. rideID is required for ride threads
// and ignored otherwise.
func NewThread(id string, kind Kind, participants []string, rideID string) (*Thread, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	now := time.Now().UTC()
	thread := &Thread{
		ID:           id,
		CreatedAt:    now,
		Kind:         kind,
		LastActivity: now,
	}
	for _, p := range participants {
		thread.AddParticipant(p)
	}
	if kind == KindRide {
		if rideID = strings.TrimSpace(rideID); rideID == "" {
			return nil, errors.New("ride thread requires a ride id")
		}
		thread.RideID = &rideID
	}
	return thread, nil
}

// HasParticipant reports whether userID may read and post in the thread.
func (thread *Thread) HasParticipant(userID string) bool {
	return slices.Contains(thread.Participants, userID)
}

// AddParticipant admits a user to the thread. Idempotent.
func (thread *Thread) AddParticipant(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" || thread.HasParticipant(userID) {
		return false
	}
	thread.Participants = append(thread.Participants, userID)
	return true
}

// Post appends a message and bumps the activity timestamp.
func (thread *Thread) Post(messageID, senderID, body string) (Message, error) {
	if !thread.HasParticipant(senderID) {
		return Message{}, ErrNotParticipant
	}
	if body = strings.TrimSpace(body); body == "" {
		return Message{}, ErrBodyRequired
	}

	now := time.Now().UTC()
	msg := Message{
		ID:       messageID,
		SenderID: senderID,
		Body:     body,
		SentAt:   now,
	}
	thread.Messages = append(thread.Messages, msg)
	thread.LastActivity = now
	return msg, nil
}

// MarkRead flips read on every message not authored by readerID. Idempotent;
// returns how many messages changed.
func (thread *Thread) MarkRead(readerID string) int {
	if !thread.HasParticipant(readerID) {
		return 0
	}
	changed := 0
	for i := range thread.Messages {
		if thread.Messages[i].SenderID != readerID && !thread.Messages[i].Read {
			thread.Messages[i].Read = true
			changed++
		}
	}
	return changed
}
