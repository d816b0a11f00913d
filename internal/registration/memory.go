package registration

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Registration
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Registration), now: time.Now}
}

func (m *MemoryStore) Insert(_ context.Context, reg *Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[reg.UID]; ok {
		return ErrConflict
	}
	reg.CreatedAt = m.now().UTC()
	m.rows[reg.UID] = cloneRegistration(*reg)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, uid string) (Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.rows[uid]
	if !ok {
		return Registration{}, ErrNotFound
	}
	return cloneRegistration(reg), nil
}

func (m *MemoryStore) List(_ context.Context, f Filter) (Page, error) {
	f = f.normalized()
	q := strings.ToLower(f.Query)

	m.mu.RLock()
	matched := make([]Registration, 0, len(m.rows))
	for _, reg := range m.rows {
		if f.Kind != "" && string(reg.Kind) != f.Kind {
			continue
		}
		if f.Status != "" && string(reg.Status) != f.Status {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(reg.Name), q) &&
			!strings.Contains(strings.ToLower(reg.Email), q) &&
			!strings.Contains(strings.ToLower(reg.Phone), q) {
			continue
		}
		matched = append(matched, cloneRegistration(reg))
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].UID > matched[j].UID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := Page{Count: len(matched), Data: []Registration{}}
	if f.Offset < len(matched) {
		end := f.Offset + f.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Data = matched[f.Offset:end]
	}
	return page, nil
}

func (m *MemoryStore) Update(_ context.Context, uid string, ch Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.rows[uid]
	if !ok {
		return ErrNotFound
	}
	if ch.CheckedIn != nil {
		reg.CheckedIn = *ch.CheckedIn
		reg.CheckInAt = ch.CheckInAt
	}
	if ch.Status != nil {
		reg.Status = *ch.Status
	}
	m.rows[uid] = reg
	return nil
}

func (m *MemoryStore) CheckIn(_ context.Context, uid string, at time.Time) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.rows[uid]
	if !ok {
		return false, false, nil
	}
	was := reg.CheckedIn
	stamp := at.UTC()
	reg.CheckedIn = true
	reg.Status = StatusCheckedIn
	reg.CheckInAt = &stamp
	m.rows[uid] = reg
	return was, true, nil
}

func cloneRegistration(r Registration) Registration {
	if r.Skills != nil {
		r.Skills = append([]string(nil), r.Skills...)
	}
	if r.CheckInAt != nil {
		t := *r.CheckInAt
		r.CheckInAt = &t
	}
	return r
}
