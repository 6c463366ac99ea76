package session

import (
	"sync"
	"testing"
)

func TestNewStateStartsIdleWithNoCurrentIndex(t *testing.T) {
	state := NewState()
	if state.CurrentPhase() != PhaseIdle {
		t.Fatalf("expected idle phase, got %q", state.CurrentPhase())
	}
	if _, ok := state.Current(); ok {
		t.Fatalf("expected no current index on a fresh state")
	}
	if state.HasUnseen() {
		t.Fatalf("fresh state should not report an unseen message")
	}
	if state.IsRead() {
		t.Fatalf("fresh state should not report read")
	}
}

func TestUploadThenConsumeMovesThroughPhases(t *testing.T) {
	state := NewState()

	state.NoteUploaded()
	if !state.HasUnseen() {
		t.Fatalf("upload should leave an unseen message")
	}
	if state.IsRead() {
		t.Fatalf("upload should clear the read acknowledgement")
	}

	if !state.ConsumeUnseen(4) {
		t.Fatalf("first consume should claim the pending message")
	}
	index, ok := state.Current()
	if !ok || index != 4 {
		t.Fatalf("consume should establish the current index, got (%d, %v)", index, ok)
	}
	if state.CurrentPhase() != PhaseSeenUnread {
		t.Fatalf("expected seen-unread after consume, got %q", state.CurrentPhase())
	}

	if state.ConsumeUnseen(4) {
		t.Fatalf("second consume without an upload should report nothing pending")
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	state := NewState()
	state.NoteUploaded()
	state.ConsumeUnseen(1)

	state.MarkRead()
	if !state.IsRead() {
		t.Fatalf("expected read after acknowledgement")
	}
	state.MarkRead()
	if !state.IsRead() {
		t.Fatalf("expected read to remain set after repeated acknowledgement")
	}
}

func TestMarkReadDoesNotSwallowPendingUpload(t *testing.T) {
	state := NewState()
	state.NoteUploaded()

	state.MarkRead()
	if !state.HasUnseen() {
		t.Fatalf("acknowledgement must not consume a pending message")
	}
	if state.IsRead() {
		t.Fatalf("an unpolled upload cannot be read")
	}
}

func TestUploadResetsReadAcknowledgement(t *testing.T) {
	state := NewState()
	state.NoteUploaded()
	state.ConsumeUnseen(1)
	state.MarkRead()

	state.NoteUploaded()
	if state.IsRead() {
		t.Fatalf("a new upload should reset the read acknowledgement")
	}
	if !state.HasUnseen() {
		t.Fatalf("a new upload should be reported as unseen")
	}
}

func TestSetCurrentEstablishesNavigation(t *testing.T) {
	state := NewState()
	state.SetCurrent(9)
	index, ok := state.Current()
	if !ok || index != 9 {
		t.Fatalf("expected current index 9, got (%d, %v)", index, ok)
	}
}

func TestConcurrentConsumersClaimExactlyOnce(t *testing.T) {
	state := NewState()
	state.NoteUploaded()

	const workers = 32
	var wg sync.WaitGroup
	claims := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claims <- state.ConsumeUnseen(1)
		}()
	}
	wg.Wait()
	close(claims)

	claimed := 0
	for ok := range claims {
		if ok {
			claimed++
		}
	}
	if claimed != 1 {
		t.Fatalf("expected exactly one consumer to claim the message, got %d", claimed)
	}
}
