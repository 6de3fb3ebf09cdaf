// Package state holds the per-chat scene model: the anchored scene text and one
// action slot per participant.
package state

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var ErrAlreadyActed = errors.New("participant already acted in this scene")

// Action is one participant's submission. Outcome is empty while it is being generated.
type Action struct {
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Text        string    `json:"text"`
	Outcome     string    `json:"outcome,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Pending reports whether the outcome is still being generated.
func (a *Action) Pending() bool {
	return a.Outcome == ""
}

// Scene is the single active story unit of a chat. It is not safe for concurrent
// use; the owner serializes access.
type Scene struct {
	MessageID   int       `json:"message_id"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	actions map[int64]*Action
	order   []int64
}

// NewScene creates a scene anchored to the posted message messageID.
func NewScene(messageID int, description, imageURL string) *Scene {
	return &Scene{
		MessageID:   messageID,
		Description: description,
		ImageURL:    imageURL,
		CreatedAt:   time.Now(),
		actions:     make(map[int64]*Action),
	}
}

// Reserve claims the participant's slot before the outcome is generated.
func (s *Scene) Reserve(userID int64, name, text string) (*Action, error) {
	if _, ok := s.actions[userID]; ok {
		return nil, ErrAlreadyActed
	}
	a := &Action{UserID: userID, Name: name, Text: text, SubmittedAt: time.Now()}
	s.actions[userID] = a
	s.order = append(s.order, userID)
	return a, nil
}

// Fill records the generated outcome for a reserved slot. It reports false if the
// slot no longer exists.
func (s *Scene) Fill(userID int64, outcome string) bool {
	a, ok := s.actions[userID]
	if !ok {
		return false
	}
	a.Outcome = outcome
	return true
}

// Release drops a reservation so the participant can try again.
func (s *Scene) Release(userID int64) {
	if _, ok := s.actions[userID]; !ok {
		return
	}
	delete(s.actions, userID)
	for i, id := range s.order {
		if id == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// HasActed reports whether the participant holds a slot, filled or not.
func (s *Scene) HasActed(userID int64) bool {
	_, ok := s.actions[userID]
	return ok
}

// Action returns the participant's action, if any.
func (s *Scene) Action(userID int64) (*Action, bool) {
	a, ok := s.actions[userID]
	return a, ok
}

// Actions returns copies of all actions in submission order.
func (s *Scene) Actions() []Action {
	out := make([]Action, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.actions[id])
	}
	return out
}

// ReplyCount counts every held slot, including those still generating.
func (s *Scene) ReplyCount() int {
	return len(s.actions)
}

// Outcomes joins the non-empty outcomes in submission order with blank lines.
func (s *Scene) Outcomes() string {
	var parts []string
	for _, id := range s.order {
		if o := s.actions[id].Outcome; o != "" {
			parts = append(parts, o)
		}
	}
	return strings.Join(parts, "\n\n")
}

// HasMajority reports whether more than half of the chat's members have replied.
func (s *Scene) HasMajority(members int) bool {
	return s.ReplyCount() > members/2
}

// DisplayName picks the first non-empty of first name, last name and username,
// falling back to the numeric id.
func DisplayName(first, last, username string, id int64) string {
	for _, candidate := range []string{first, last, username} {
		if c := strings.TrimSpace(candidate); c != "" {
			return norm.NFC.String(c)
		}
	}
	return strconv.FormatInt(id, 10)
}
