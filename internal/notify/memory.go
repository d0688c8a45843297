package notify

import (
	"context"
	"sync"
)

// Memory records notifications for tests.
type Memory struct {
	mu   sync.Mutex
	sent []Sent
	err  error
}

// Sent is one recorded notification.
type Sent struct {
	UserID  int64
	Text    string
	Actions []Action
}

func NewMemory() *Memory {
	return &Memory{}
}

// WithError makes every Notify call fail with err.
func (m *Memory) WithError(err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *Memory) Notify(_ context.Context, userID int64, text string, actions ...Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, Sent{UserID: userID, Text: text, Actions: actions})
	return nil
}

// SentTo returns the notifications recorded for one user.
func (m *Memory) SentTo(userID int64) []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sent
	for _, s := range m.sent {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// All returns every recorded notification in send order.
func (m *Memory) All() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}
