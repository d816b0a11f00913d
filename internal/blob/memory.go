package blob

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Object is a stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// Memory keeps objects in process memory. Used for development and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
}

// NewMemory returns an empty store whose URLs start with baseURL.
func NewMemory(baseURL string) *Memory {
	return &Memory{objects: make(map[string]Object), baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *Memory) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = Object{ContentType: contentType, Data: data}
	m.mu.Unlock()
	return nil
}

func (m *Memory) URL(key string) string {
	return m.baseURL + "/files/" + key
}

// Get returns the object stored under key.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}
