package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MaxSubscriptions caps the number of feeds a single conversation may follow.
const MaxSubscriptions = 100

// DefaultRefreshRate is stored on every new RunState.
const DefaultRefreshRate = 15 * time.Minute

var (
	ErrAlreadySubscribed    = errors.New("already subscribed")
	ErrTooManySubscriptions = errors.New("too many subscriptions")
	ErrIndexOutOfRange      = errors.New("subscription index out of range")
	ErrInvalidSaveID        = errors.New("invalid id")
	ErrAlreadySaved         = errors.New("already saved")
)

// Stage tags which variant a Dialogue holds.
type Stage string

const (
	StageStart Stage = "start"
	StageRun   Stage = "run"
)

// Dialogue is the persisted state of one conversation. The zero value is the
// Start variant; Run is non-nil exactly when Stage is StageRun.
type Dialogue struct {
	Stage Stage     `json:"stage"`
	Run   *RunState `json:"run,omitempty"`
}

// Start returns the initial dialogue for a conversation never seen before.
func Start() Dialogue {
	return Dialogue{Stage: StageStart}
}

// Running wraps s into the Run variant.
func Running(s *RunState) Dialogue {
	return Dialogue{Stage: StageRun, Run: s}
}

// IsRun reports whether the dialogue carries an active session.
func (d Dialogue) IsRun() bool {
	return d.Stage == StageRun && d.Run != nil
}

// RunState stores the subscription session of a conversation.
type RunState struct {
	Owner         int64         `json:"owner"`
	ChatID        int64         `json:"chat_id"`
	Subscriptions []string      `json:"subscriptions"`
	RefreshRate   time.Duration `json:"refresh_rate"`
	Saved         []uint64      `json:"saved"`
	LastMessageID *uint64       `json:"last_message_id,omitempty"`
	LastRefresh   *time.Time    `json:"last_refresh,omitempty"`
}

// NewRunState creates a session owned by the user that opened it.
func NewRunState(owner, chatID int64) *RunState {
	return &RunState{
		Owner:         owner,
		ChatID:        chatID,
		Subscriptions: []string{},
		RefreshRate:   DefaultRefreshRate,
		Saved:         []uint64{},
	}
}

// Clone returns a deep copy.
func (s *RunState) Clone() *RunState {
	c := *s
	c.Subscriptions = append([]string{}, s.Subscriptions...)
	c.Saved = append([]uint64{}, s.Saved...)
	if s.LastMessageID != nil {
		id := *s.LastMessageID
		c.LastMessageID = &id
	}
	if s.LastRefresh != nil {
		t := *s.LastRefresh
		c.LastRefresh = &t
	}
	return &c
}

// HasSubscription reports whether url is already in the list.
func (s *RunState) HasSubscription(url string) bool {
	for _, u := range s.Subscriptions {
		if u == url {
			return true
		}
	}
	return false
}

// AddSubscription appends url, keeping the list unique and bounded.
func (s *RunState) AddSubscription(url string) error {
	if s.HasSubscription(url) {
		return ErrAlreadySubscribed
	}
	if len(s.Subscriptions) >= MaxSubscriptions {
		return ErrTooManySubscriptions
	}
	s.Subscriptions = append(s.Subscriptions, url)
	return nil
}

// RemoveSubscription deletes the entry at idx and shifts the rest down.
func (s *RunState) RemoveSubscription(idx int) (string, error) {
	if idx < 0 || idx >= len(s.Subscriptions) {
		return "", fmt.Errorf("%w: %d", ErrIndexOutOfRange, idx)
	}
	removed := s.Subscriptions[idx]
	s.Subscriptions = append(s.Subscriptions[:idx:idx], s.Subscriptions[idx+1:]...)
	return removed, nil
}

// SaveMessage flags an already issued notification id. Ids at or above
// LastMessageID were never issued and are refused.
func (s *RunState) SaveMessage(id uint64) error {
	var last uint64
	if s.LastMessageID != nil {
		last = *s.LastMessageID
	}
	if id >= last {
		return ErrInvalidSaveID
	}
	for _, v := range s.Saved {
		if v == id {
			return ErrAlreadySaved
		}
	}
	s.Saved = append(s.Saved, id)
	return nil
}

// Encode serializes a dialogue for a StateStore value.
func Encode(d Dialogue) ([]byte, error) {
	if d.Stage == "" {
		d.Stage = StageStart
	}
	return json.Marshal(d)
}

// Decode parses a StateStore value. A Run stage without payload is rejected.
func Decode(b []byte) (Dialogue, error) {
	var d Dialogue
	if err := json.Unmarshal(b, &d); err != nil {
		return Dialogue{}, err
	}
	switch d.Stage {
	case StageStart:
		d.Run = nil
	case StageRun:
		if d.Run == nil {
			return Dialogue{}, errors.New("run dialogue without state")
		}
	default:
		return Dialogue{}, fmt.Errorf("unknown dialogue stage %q", d.Stage)
	}
	return d, nil
}
