package groups

import (
	"context"
	"sync"
)

// MemoryInspector is an in-memory Inspector used by tests in place of the
// userbot sidecar.
type MemoryInspector struct {
	mu     sync.Mutex
	groups map[string]Info
	admins map[string]bool
	left   []string
	err    error
}

func NewMemoryInspector() *MemoryInspector {
	return &MemoryInspector{
		groups: make(map[string]Info),
		admins: make(map[string]bool),
	}
}

// AddGroup registers a link the inspector can resolve.
func (m *MemoryInspector) AddGroup(link string, info Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[link] = info
}

// SetAdministrator flips whether the automated account holds admin rights in
// the group.
func (m *MemoryInspector) SetAdministrator(link string, isAdmin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[link] = isAdmin
}

// WithError forces every call to fail with err, simulating an unreachable
// sidecar.
func (m *MemoryInspector) WithError(err error) *MemoryInspector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Left returns the links the inspector was asked to leave.
func (m *MemoryInspector) Left() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.left...)
}

func (m *MemoryInspector) Resolve(_ context.Context, link string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Info{}, m.err
	}
	info, ok := m.groups[link]
	if !ok {
		return Info{}, ErrNotFound
	}
	return info, nil
}

func (m *MemoryInspector) IsAdministrator(_ context.Context, link string, _ int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.groups[link]; !ok {
		return false, ErrNotFound
	}
	return m.admins[link], nil
}

func (m *MemoryInspector) Leave(_ context.Context, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.left = append(m.left, link)
	return nil
}
