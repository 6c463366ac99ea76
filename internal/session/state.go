package session

import "sync"

// Phase enumerates the receiver's consumption state for the current message.
type Phase string

const (
	// PhaseIdle means no message has ever been announced to the receiver.
	PhaseIdle Phase = "idle"
	// PhaseUnseen means an upload happened that the receiver has not polled yet.
	PhaseUnseen Phase = "unseen"
	// PhaseSeenUnread means the receiver consumed the notification but has not
	// acknowledged reading the message.
	PhaseSeenUnread Phase = "seen_unread"
	// PhaseSeenRead means the receiver acknowledged the current message.
	PhaseSeenRead Phase = "seen_read"
)

// State tracks the receiver session shared by all concurrent request
// handlers: the consumption phase of the latest message plus the index the
// receiver last navigated to. It is held in memory only and resets on
// process restart; the receiver re-establishes its position with the next
// poll. Compound transitions run under a single mutex so no handler observes
// a half-updated state.
type State struct {
	mu           sync.Mutex
	phase        Phase
	currentIndex int64
}

// NewState returns session state with no pending message and no current index.
func NewState() *State {
	return &State{phase: PhaseIdle}
}

// NoteUploaded records a successful upload: the new message is unseen and the
// previous read acknowledgement no longer applies.
func (s *State) NoteUploaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseUnseen
}

// ConsumeUnseen claims the pending notification. It reports whether a new
// message was pending; when it was, the receiver is moved to seen-unread and
// the supplied index becomes current.
func (s *State) ConsumeUnseen(index int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseUnseen {
		return false
	}
	s.phase = PhaseSeenUnread
	s.currentIndex = index
	return true
}

// SetCurrent records the index the receiver navigated to.
func (s *State) SetCurrent(index int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentIndex = index
}

// Current returns the index the receiver last navigated to. The boolean is
// false until a poll, latest-index query, or indexed fetch has established one.
func (s *State) Current() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex, s.currentIndex > 0
}

// HasUnseen reports whether an upload is pending that no poll has consumed.
func (s *State) HasUnseen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseUnseen
}

// MarkRead acknowledges the current message. Calling it repeatedly is
// harmless. A pending unseen message stays unseen: acknowledgement applies
// only to what the receiver has actually consumed, so an unpolled upload can
// never sit in a read-but-new state.
func (s *State) MarkRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseUnseen {
		return
	}
	s.phase = PhaseSeenRead
}

// IsRead reports whether the receiver has acknowledged the current message.
func (s *State) IsRead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseSeenRead
}

// CurrentPhase exposes the consumption phase, primarily for logging.
func (s *State) CurrentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}
