package chat

import (
	"errors"
	"testing"
)

func TestPostRequiresParticipant(t *testing.T) {
	thread, err := NewThread("t-1", KindRide, []string{"rider-1"}, "ride-1")
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}

	if _, err := thread.Post("m-1", "stranger", "hello"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("got %v, want ErrNotParticipant", err)
	}

	msg, err := thread.Post("m-1", "rider-1", "  waiting at the corner ")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if msg.Body != "waiting at the corner" || msg.Read {
		t.Errorf("unexpected message %+v", msg)
	}
	if !thread.LastActivity.Equal(msg.SentAt) {
		t.Error("lastActivity not bumped to the message time")
	}
}

func TestAddParticipantIdempotent(t *testing.T) {
	thread, _ := NewThread("t-1", KindRide, []string{"rider-1"}, "ride-1")

	if !thread.AddParticipant("driver-1") {
		t.Fatal("first add should report a change")
	}
	if thread.AddParticipant("driver-1") {
		t.Fatal("second add should be a no-op")
	}
	if len(thread.Participants) != 2 {
		t.Fatalf("participants = %v", thread.Participants)
	}
}

func TestMarkReadSkipsOwnMessages(t *testing.T) {
	thread, _ := NewThread("t-1", KindRide, []string{"rider-1", "driver-1"}, "ride-1")
	_, _ = thread.Post("m-1", "rider-1", "here")
	_, _ = thread.Post("m-2", "driver-1", "two minutes out")
	_, _ = thread.Post("m-3", "rider-1", "ok")

	if changed := thread.MarkRead("rider-1"); changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}
	for _, msg := range thread.Messages {
		wantRead := msg.SenderID != "rider-1"
		if msg.Read != wantRead {
			t.Errorf("message %s read = %v, want %v", msg.ID, msg.Read, wantRead)
		}
	}

	// idempotent
	if changed := thread.MarkRead("rider-1"); changed != 0 {
		t.Fatalf("second MarkRead changed %d messages", changed)
	}
}

func TestNewThreadRequiresRideID(t *testing.T) {
	if _, err := NewThread("t-1", KindRide, nil, ""); err == nil {
		t.Fatal("expected error for ride thread without ride id")
	}
	if _, err := NewThread("t-2", KindDriverGroup, nil, ""); err != nil {
		t.Fatalf("driver group thread: %v", err)
	}
}
